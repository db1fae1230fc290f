package store

import "fmt"

// AuthError reports a credential failure (HTTP 401 or an unusable
// service-account key). It is never retried.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("store: authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PermissionError reports an HTTP 403 that is not quota-related. It is
// never retried.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("store: permission denied: %s", e.Reason)
}

// RateLimitError reports quota exhaustion after all retries were spent.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("store: rate limit exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ConnectionError reports a transient failure (server error or transport
// problem) that survived all retries. Err is the last underlying error.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store: operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StoreError is any other remote failure, carrying the HTTP status and a
// snippet of the response body. It is never retried.
type StoreError struct {
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: http %d: %s", e.StatusCode, e.Body)
}
