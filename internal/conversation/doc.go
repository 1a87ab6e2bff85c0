// Package conversation turns recognition results into speaker segments and
// maintains the evolving interview state: full transcript, current question,
// candidate answer, and turn tracking for the two conversational roles.
package conversation
