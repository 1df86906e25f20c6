package extract

import "fmt"

// Reason classifies an extraction failure.
type Reason string

const (
	// ReasonService is a failed call to the extraction service.
	ReasonService Reason = "service"
	// ReasonEmpty is a response with no text.
	ReasonEmpty Reason = "empty"
	// ReasonMalformed is text that is not a single JSON object.
	ReasonMalformed Reason = "malformed"
	// ReasonSchema is JSON that does not match the candidate schema.
	ReasonSchema Reason = "schema"
)

// ExtractionError reports that no candidate could be produced.
type ExtractionError struct {
	Reason     Reason
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction %s", e.Reason)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
