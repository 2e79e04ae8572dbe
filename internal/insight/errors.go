package insight

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned by a single attempt that got HTTP 429.
	ErrRateLimited = errors.New("upstream rate limited the credential")
	// ErrAllKeysRateLimited means every configured credential was rate limited.
	ErrAllKeysRateLimited = errors.New("all api keys are rate limited")
	// ErrTimeout means the upstream call exceeded its deadline.
	ErrTimeout = errors.New("upstream request timed out")
	// ErrMalformedResponse means a 2xx reply did not carry the expected text.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// StatusError is a non-2xx, non-429 reply from the upstream API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Code)
}
