package generation

import "fmt"

// ExhaustedRetriesError reports that every generation attempt failed. The
// last underlying error is preserved for the caller.
type ExhaustedRetriesError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("all %d generation attempts failed: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.LastErr
}

// withAttempts runs fn up to attempts times and returns the first success.
// Attempts are fixed-count with no backoff; a failed attempt never aborts
// the loop early.
func withAttempts(attempts int, fn func(attempt int) (string, error)) (string, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := fn(i)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return "", &ExhaustedRetriesError{Attempts: attempts, LastErr: lastErr}
}
