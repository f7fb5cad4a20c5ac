package wikibase

import "fmt"

// NotFoundError indicates the remote knowledge base has no entity with the
// requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %s not found in knowledge base", e.ID)
}

// TransportError indicates a network or HTTP-level failure talking to a
// remote endpoint. StatusCode is zero when the request never got a response.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FormatError indicates the remote endpoint answered, but with a body that
// does not parse as the expected shape.
type FormatError struct {
	URL string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
