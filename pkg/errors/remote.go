package errors

import (
	"fmt"
	"net/http"
)

// Detail keys carried by REMOTE_ERROR values.
const (
	DetailStatus   = "status"
	DetailBody     = "body"
	DetailNetwork  = "network"
	DetailRejected = "rejected"
)

// RemoteStatus reports a non-2xx response from the order service.
func RemoteStatus(status int, body string) *Error {
	return New(CodeRemote, fmt.Sprintf("order service responded with status %d", status)).
		WithDetails(map[string]any{DetailStatus: status, DetailBody: body})
}

// RemoteNetwork reports a transport failure before any response arrived.
func RemoteNetwork(err error) *Error {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return Wrap(CodeRemote, err, "order service unreachable").
		WithDetails(map[string]any{DetailNetwork: msg})
}

// RemoteRejected reports a well-formed response whose success flag was false.
func RemoteRejected(message string, status int, body string) *Error {
	if message == "" {
		message = "order service rejected the request"
	}
	return New(CodeRemote, message).
		WithDetails(map[string]any{DetailStatus: status, DetailBody: body, DetailRejected: true})
}

// IsTransientRemote reports whether err is a REMOTE_ERROR worth re-attempting:
// a transport failure or a non-2xx status, but not an explicit rejection and
// not a 409 conflict.
func IsTransientRemote(err error) bool {
	typed := As(err)
	if typed == nil || typed.code != CodeRemote {
		return false
	}
	if details, ok := typed.details.(map[string]any); ok {
		if rejected, _ := details[DetailRejected].(bool); rejected {
			return false
		}
		if status, _ := details[DetailStatus].(int); status == http.StatusConflict {
			return false
		}
	}
	return true
}
