package domain

// ConflictError reports a recording-session state conflict (HTTP 409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// MalformedInputError reports an administrative request body that cannot be parsed (HTTP 400).
type MalformedInputError struct {
	Message string
	Err     error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
