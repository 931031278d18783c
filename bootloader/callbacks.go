package bootloader

import "time"

// Phase names reported in Progress.
const (
	PhaseIdentifying = "identifying"
	PhaseErasing     = "erasing"
	PhaseWriting     = "writing"
	PhaseVerifying   = "verifying"
	PhaseEnding      = "ending"
	PhaseRestarting  = "restarting"
	PhaseComplete    = "complete"
)

// Progress contains information about the flashing progress.
// Passed to ProgressCallback during Program, Write and Verify.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// Packet is the number of packets sent in the current pass
	Packet int

	// Bytes is the number of image bytes covered in the current pass
	Bytes int

	// TotalBytes is the image size, or 0 when unknown
	TotalBytes int

	// Percentage is the completion of the whole Program run (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the run started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically to report progress.
// Implementations should return quickly to avoid stalling the bootloader.
//
// Example:
//
//	s := bootloader.New(device,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %d/%d bytes\n", p.Phase, p.Bytes, p.TotalBytes)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the session.
// This allows integration with any logging framework.
//
// Example with the standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Warn(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Warn logs a condition that does not abort the session
	Warn(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
