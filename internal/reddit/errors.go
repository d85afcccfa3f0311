package reddit

import "fmt"

// AuthError indicates bad or expired platform credentials. Fatal for the
// current run; not retryable without operator action.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("reddit authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError wraps a platform-side failure. Retryable by the caller.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("reddit API error during %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("reddit API error during %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// ValidationError indicates a caller-supplied invalid parameter, e.g. an
// unknown sort mode. A programming or config error, not retryable.
type ValidationError struct {
	Param string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Param, e.Value)
}
