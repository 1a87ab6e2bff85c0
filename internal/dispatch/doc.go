// Package dispatch paces delivery of the conversation state to the
// downstream analysis service and implements the HTTP sink.
package dispatch
