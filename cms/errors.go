package cms

import "fmt"

// NotFoundError is returned when no document has the requested UID.
type NotFoundError struct {
	Type string
	UID  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cms: %s %q not found", e.Type, e.UID)
}

// StatusError reports a non-2xx API response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cms: GET %s: status %d", e.URL, e.Code)
}
