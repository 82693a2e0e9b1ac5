package core

// # Error Codes Reference
//
// Every error surfaced over HTTP or the CLI carries a stable code so an
// operator can quote it when reporting a failed pass.
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - Pass in progress: Another sync pass holds the pass lock
//	          Action: Wait for the running pass to finish, then retry
//	          Matches: ErrPassInProgress, lock.ErrLocked
//
//	SYNC002 - Pass timed out: The pass exceeded SYNC_TIMEOUT
//	          Action: Raise SYNC_TIMEOUT or run an incremental sync
//	          Matches: ErrPassTimeout; context.DeadlineExceeded outside a fetch
//
// # Fetch Errors (FETCH001-FETCH099)
//
//	FETCH001 - Rejected: Kobo rejected the API token
//	           Action: Check KOBO_TOKEN and its access to the form
//	           Matches: *kobo.TransportError with status 401 or 403
//
//	FETCH002 - Unavailable: Kobo could not be reached or failed
//	           Action: Try again later; retries were already attempted
//	           Matches: *kobo.TransportError (including HTTP client timeouts), ErrNoSource
//
//	FETCH003 - Bad response: Kobo returned data that could not be read
//	           Action: Verify KOBO_DATA_URL points at a form data endpoint
//	           Matches: *kobo.TransportError from "decode page", "pagination cycle"
//
// # Store Errors (STORE001-STORE099)
//
//	STORE001 - Unreachable: The store could not be reached
//	           Action: Check STORE_DSN and that the database is running
//	           Matches: "connection refused", "connection reset", "memory store closed"
//
//	STORE002 - Schema missing: A table was missing and could not be created
//	           Action: Check that the store user may create tables
//	           Matches: store.ErrMissingTable
//
//	STORE003 - Write failed: The batch was rolled back
//	           Action: Check the logs for the failing entity and retry
//	           Matches: "apply batch", "append issues", "deadlock"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request: The request body or parameters were malformed
//	         Action: Send a JSON array of submissions or no body at all
//	         Matches: ErrInvalidRequest
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Sentinel and typed matches are tried first, in table order, then the
// case-insensitive substring patterns. The first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/kobosync/internal/kobo"
	"github.com/JonMunkholm/kobosync/internal/lock"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// ErrInvalidRequest marks a malformed caller request.
var ErrInvalidRequest = errors.New("invalid request")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgPassInProgress = UserMessage{
		Message: "Another sync pass is already running",
		Action:  "Wait for the running pass to finish, then retry",
		Code:    "SYNC001",
	}
	msgPassTimeout = UserMessage{
		Message: "The sync pass timed out",
		Action:  "Raise SYNC_TIMEOUT or run an incremental sync",
		Code:    "SYNC002",
	}
	msgFetchRejected = UserMessage{
		Message: "Kobo rejected the API token",
		Action:  "Check KOBO_TOKEN and its access to the form",
		Code:    "FETCH001",
	}
	msgFetchUnavailable = UserMessage{
		Message: "Kobo could not be reached",
		Action:  "Try again later; retries were already attempted",
		Code:    "FETCH002",
	}
	msgNoSource = UserMessage{
		Message: "No Kobo data source is configured",
		Action:  "Set KOBO_DATA_URL and KOBO_TOKEN",
		Code:    "FETCH002",
	}
	msgFetchBadResponse = UserMessage{
		Message: "Kobo returned data that could not be read",
		Action:  "Verify KOBO_DATA_URL points at a form data endpoint",
		Code:    "FETCH003",
	}
	msgStoreUnreachable = UserMessage{
		Message: "The data store could not be reached",
		Action:  "Check STORE_DSN and that the database is running",
		Code:    "STORE001",
	}
	msgSchemaMissing = UserMessage{
		Message: "A required table is missing",
		Action:  "Check that the store user may create tables",
		Code:    "STORE002",
	}
	msgWriteFailed = UserMessage{
		Message: "Writing the batch failed and was rolled back",
		Action:  "Check the logs for the failing entity and retry",
		Code:    "STORE003",
	}
	msgInvalidRequest = UserMessage{
		Message: "The request was malformed",
		Action:  "Send a JSON array of submissions or no body at all",
		Code:    "REQ001",
	}
)

// errorRule maps a typed or sentinel error to a user message.
type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func transportStatus(codes ...int) func(error) bool {
	return func(err error) bool {
		var te *kobo.TransportError
		if !errors.As(err, &te) {
			return false
		}
		for _, c := range codes {
			if te.StatusCode == c {
				return true
			}
		}
		return false
	}
}

// transportDecode matches a page that arrived but could not be decoded.
func transportDecode(err error) bool {
	var te *kobo.TransportError
	return errors.As(err, &te) && te.StatusCode == 0 && te.Err != nil &&
		strings.Contains(te.Err.Error(), "decode page")
}

// errorRules run in order. A TransportError is a fetch failure even when it
// wraps a deadline from the HTTP client; only ErrPassTimeout, or a deadline
// outside the fetch, is a pass timeout.
var errorRules = []errorRule{
	{match: is(ErrPassInProgress), msg: msgPassInProgress},
	{match: is(lock.ErrLocked), msg: msgPassInProgress},
	{match: is(ErrPassTimeout), msg: msgPassTimeout},
	{match: is(ErrInvalidRequest), msg: msgInvalidRequest},
	{match: transportStatus(http.StatusUnauthorized, http.StatusForbidden), msg: msgFetchRejected},
	{match: transportDecode, msg: msgFetchBadResponse},
	{match: is(kobo.ErrTransport), msg: msgFetchUnavailable},
	{match: is(context.DeadlineExceeded), msg: msgPassTimeout},
	{match: is(ErrNoSource), msg: msgNoSource},
	{match: is(store.ErrMissingTable), msg: msgSchemaMissing},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains after
// errorRules. More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "context deadline exceeded", msg: msgPassTimeout},
	{pattern: "decode page", msg: msgFetchBadResponse},
	{pattern: "pagination cycle", msg: msgFetchBadResponse},
	{pattern: "kobo:", msg: msgFetchUnavailable},
	{pattern: "connection refused", msg: msgStoreUnreachable},
	{pattern: "connection reset", msg: msgStoreUnreachable},
	{pattern: "memory store closed", msg: msgStoreUnreachable},
	{pattern: "apply batch", msg: msgWriteFailed},
	{pattern: "append issues", msg: msgWriteFailed},
	{pattern: "deadlock", msg: msgWriteFailed},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the service logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Typed and
// sentinel errors win over substring patterns; a fetch that ended in a
// pagination cycle maps to FETCH003 even though it is not a TransportError.
//
// Example:
//
//	msg := MapError(fmt.Errorf("run pass: %w", ErrPassInProgress))
//	// msg.Code == "SYNC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if r.match(err) {
			return r.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
