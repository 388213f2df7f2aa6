package chat

import "errors"

// Error taxonomy shared by the websocket and HTTP surfaces. Handlers wrap
// these with context via fmt.Errorf("%w: ...") and map them with errors.Is.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
)

// CodeFor maps an error to the stable machine-readable code carried by
// websocket error events.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	default:
		return "internal_error"
	}
}
