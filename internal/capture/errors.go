package capture

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorType tags the failure class of a capture error.
type ErrorType string

// Failure classes surfaced in results and worker histories.
const (
	ErrorHTTP       ErrorType = "http"
	ErrorTimeout    ErrorType = "timeout"
	ErrorConnection ErrorType = "connection"
	ErrorInternal   ErrorType = "internal"
)

// ErrorDetails describes one capture failure.
type ErrorDetails struct {
	Type           ErrorType `json:"type"`
	Message        string    `json:"message"`
	HTTPStatusCode int       `json:"httpStatusCode,omitempty"`
	HTTPStatusText string    `json:"httpStatusText,omitempty"`
	TimeoutMs      int64     `json:"timeoutMs,omitempty"`
}

// statusTextFallback supplies status text when the browser response omits it.
var statusTextFallback = map[int]string{
	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	429: "Too Many Requests",
	500: "Internal Server Error",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

var timeoutMsPattern = regexp.MustCompile(`\((\d+)ms\)`)

// HTTPError builds ErrorDetails for a non-2xx navigation response. When the
// transport did not supply status text, the fallback table is consulted;
// unknown codes produce only "HTTP {code}".
func HTTPError(code int, text string) ErrorDetails {
	if text == "" {
		text = statusTextFallback[code]
	}
	msg := fmt.Sprintf("HTTP %d", code)
	if text != "" {
		msg = fmt.Sprintf("HTTP %d %s", code, text)
	}
	return ErrorDetails{
		Type:           ErrorHTTP,
		Message:        msg,
		HTTPStatusCode: code,
		HTTPStatusText: text,
	}
}

// TimeoutError builds ErrorDetails for an operation that exceeded its bound.
func TimeoutError(timeoutMs int64, op string) ErrorDetails {
	return ErrorDetails{
		Type:      ErrorTimeout,
		Message:   fmt.Sprintf("Timeout: %s exceeded (%dms)", op, timeoutMs),
		TimeoutMs: timeoutMs,
	}
}

// ConnectionError builds ErrorDetails for a dropped browser session.
func ConnectionError(reason string) ErrorDetails {
	return ErrorDetails{Type: ErrorConnection, Message: reason}
}

// InternalError builds ErrorDetails for any other failure.
func InternalError(msg string) ErrorDetails {
	return ErrorDetails{Type: ErrorInternal, Message: msg}
}

// FromError classifies a raw error into tagged ErrorDetails. A typed
// context deadline is preferred; the "Timeout" substring plus "(Nms)"
// extraction remains as the fallback for errors the CDP layer surfaces as
// plain strings.
func FromError(err error) ErrorDetails {
	if err == nil {
		return InternalError("unknown error")
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "Timeout") {
		details := ErrorDetails{Type: ErrorTimeout, Message: msg}
		if m := timeoutMsPattern.FindStringSubmatch(msg); m != nil {
			if ms, perr := strconv.ParseInt(m[1], 10, 64); perr == nil {
				details.TimeoutMs = ms
			}
		}
		return details
	}
	if IsDisconnect(msg) {
		return ErrorDetails{Type: ErrorConnection, Message: msg}
	}
	return ErrorDetails{Type: ErrorInternal, Message: msg}
}

// IsDisconnect reports whether an error message indicates a dropped or
// closed browser session. The CDP layer surfaces these as plain strings.
func IsDisconnect(msg string) bool {
	return strings.Contains(msg, "disconnect") || strings.Contains(msg, "closed")
}
