package classify

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a locally rejected payload. It is never retried.
var ErrInvalidInput = errors.New("invalid input")

// ErrMalformedResponse marks an answer the classifier API did return but
// whose content could not be located or parsed as JSON. Not retried.
var ErrMalformedResponse = errors.New("malformed classifier response")

// StatusError is a non-2xx answer from the classifier API. The server is
// actively rejecting the request, so the call fails immediately instead of
// retrying.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier API returned status %d", e.Code)
}
