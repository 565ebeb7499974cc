package types

// EventKind discriminates the conversion event variants
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventFinished EventKind = "finished"
	EventError    EventKind = "error"

	// EventCancelled is synthesized by the coordinator when a cancelled
	// job's channel closes; workers themselves never emit it
	EventCancelled EventKind = "cancelled"
)

// ConversionEvent is emitted by a conversion worker on its job channel.
// Progress events carry Fraction and Filename; the terminal event is either
// Finished (OutputPath, Elapsed) or Error (Message), after which the channel
// is closed.
type ConversionEvent struct {
	Kind       EventKind `json:"kind"`
	JobID      string    `json:"jobId"`
	Fraction   float64   `json:"fraction,omitempty"` // 0..1 of the current file
	Filename   string    `json:"filename,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Elapsed    float64   `json:"elapsed,omitempty"` // seconds
	Message    string    `json:"message,omitempty"`
}

// Terminal reports whether the event ends its job's stream
func (e ConversionEvent) Terminal() bool {
	return e.Kind == EventFinished || e.Kind == EventError
}
