package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline failure. The orchestrator branches on kinds
// rather than concrete error types, so every error produced inside the
// pipeline carries one.
type Kind string

const (
	// KindNotDownloadable means no site adapter recognizes the URL.
	KindNotDownloadable Kind = "not_downloadable"
	// KindSite is an adapter-specific scrape or parse failure.
	KindSite Kind = "site"
	// KindNotFound means an adapter resolved zero resources.
	KindNotFound Kind = "resource_not_found"
	// KindTransient is a retryable transport failure (408, 429, or a
	// connection-level error).
	KindTransient Kind = "transient"
	// KindPermanent is a non-retryable transport failure.
	KindPermanent Kind = "permanent"
	// KindFilesystem is a write or link failure under the output tree.
	KindFilesystem Kind = "filesystem"
	// KindUsage is a configuration or formatting problem, fatal to one
	// resource but never to the run.
	KindUsage Kind = "usage"
	// KindUnknown is anything the pipeline did not produce itself.
	KindUnknown Kind = "unknown"
)

// Error is the tagged error type used throughout the download pipeline.
type Error struct {
	Kind    Kind
	Message string
	Code    int    // HTTP status when relevant, else 0
	URL     string // the failing URL when relevant
}

func (e *Error) Error() string {
	switch {
	case e.Code != 0 && e.URL != "":
		return fmt.Sprintf("%s error (status %d) for %s: %s", e.Kind, e.Code, e.URL, e.Message)
	case e.URL != "":
		return fmt.Sprintf("%s error for %s: %s", e.Kind, e.URL, e.Message)
	case e.Code != 0:
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ForURL creates an error carrying the failing URL.
func ForURL(kind Kind, url, message string) *Error {
	return &Error{Kind: kind, Message: message, URL: url}
}

// ForStatus creates a transport error for an HTTP status, classified as
// transient or permanent per the retry contract: only 408 and 429 are
// retryable, every other non-2xx status is final.
func ForStatus(url string, code int) *Error {
	kind := KindPermanent
	if IsRetryableStatusCode(code) {
		kind = KindTransient
	}
	return &Error{Kind: kind, Message: "unexpected response status", Code: code, URL: url}
}

// KindOf extracts the kind from an error, returning KindUnknown for
// errors the pipeline did not produce.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryableStatusCode reports whether an HTTP status should be retried.
// Status 0 stands for a connection-level failure.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error
		return true
	case 408, 429: // request timeout, too many requests
		return true
	default:
		return false
	}
}
