package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// The gateway maps every non-2xx response onto one of four error types.
// Callers branch with errors.As (or the Is* helpers); nothing here is fatal.

// AuthError is a 401/403. Encountered while loading the profile it triggers an
// implicit logout; elsewhere it surfaces as a notification.
type AuthError struct {
	StatusCode int
	Detail     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed (%d): %s", e.StatusCode, e.Detail)
}

// ValidationError is a client- or server-side field failure, shown inline.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Detail)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Detail)
}

// NotFoundOrForeignError is a 404: the resource does not exist or belongs to
// another user (the server hides foreign bookings rather than admitting them).
type NotFoundOrForeignError struct {
	Detail string
}

func (e *NotFoundOrForeignError) Error() string {
	return fmt.Sprintf("not found or not yours: %s", e.Detail)
}

// ServerError is any other failure, carrying the server-provided detail when
// present.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Detail)
}

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFoundOrForeign(err error) bool {
	var e *NotFoundOrForeignError
	return errors.As(err, &e)
}

// Detail extracts the server-provided message from any gateway error, falling
// back to the error's own string.
func Detail(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Detail != "" {
		return ve.Detail
	}
	var ne *NotFoundOrForeignError
	if errors.As(err, &ne) && ne.Detail != "" {
		return ne.Detail
	}
	var se *ServerError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// errorFromResponse classifies a non-2xx response. Bodies follow the backend's
// conventions: {"detail": "..."} for general errors, {"field": ["msg"]} for
// field validation failures.
func errorFromResponse(status int, body []byte) error {
	detail, field := parseErrorBody(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if detail == "" {
			detail = "authentication required"
		}
		return &AuthError{StatusCode: status, Detail: detail}
	case status == http.StatusNotFound:
		if detail == "" {
			detail = "resource not found"
		}
		return &NotFoundOrForeignError{Detail: detail}
	case status == http.StatusBadRequest:
		if detail == "" {
			detail = "invalid request"
		}
		return &ValidationError{Field: field, Detail: detail}
	default:
		if detail == "" {
			detail = "the server could not process the request"
		}
		return &ServerError{StatusCode: status, Detail: detail}
	}
}

func parseErrorBody(body []byte) (detail, field string) {
	if len(body) == 0 {
		return "", ""
	}

	var withDetail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &withDetail); err == nil && withDetail.Detail != "" {
		return withDetail.Detail, ""
	}

	// Field errors arrive as {"reason": ["too short"], ...}; report the first.
	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil {
		for name, msgs := range fields {
			if len(msgs) > 0 {
				return msgs[0], name
			}
		}
	}
	return "", ""
}
