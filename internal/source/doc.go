// Package source provides the audio byte producers feeding the pipeline:
// an ffmpeg PulseAudio capture subprocess and a generic reader source.
package source
