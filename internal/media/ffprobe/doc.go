// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no bridge-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, format name)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result expose the duration in seconds and milliseconds;
// the millisecond form is what push-message payloads carry.
package ffprobe
