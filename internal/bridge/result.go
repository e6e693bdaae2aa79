// SPDX-License-Identifier: MIT
package bridge

import "fmt"

// Status is the outcome class of a command result, numbered as on the
// scripting side of the plugin boundary.
type Status int

const (
	StatusNoResult      Status = 0
	StatusOK            Status = 1
	StatusClassNotFound Status = 2
	StatusIllegalAccess Status = 3
	StatusInstantiation Status = 4
	StatusMalformedURL  Status = 5
	StatusIOError       Status = 6
	StatusInvalidAction Status = 7
	StatusJSONException Status = 8
	StatusError         Status = 9
)

func (s Status) String() string {
	switch s {
	case StatusNoResult:
		return "NO_RESULT"
	case StatusOK:
		return "OK"
	case StatusClassNotFound:
		return "CLASS_NOT_FOUND_EXCEPTION"
	case StatusIllegalAccess:
		return "ILLEGAL_ACCESS_EXCEPTION"
	case StatusInstantiation:
		return "INSTANTIATION_EXCEPTION"
	case StatusMalformedURL:
		return "MALFORMED_URL_EXCEPTION"
	case StatusIOError:
		return "IO_EXCEPTION"
	case StatusInvalidAction:
		return "INVALID_ACTION"
	case StatusJSONException:
		return "JSON_EXCEPTION"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Error codes carried as the message of StatusError results.
const (
	PermissionDeniedError = 20
	InvalidURLError       = 30
	InvalidStateError     = 40
)

// Result is one message sent to a command's callback. With KeepCallback set
// the callback stays open for further results.
type Result struct {
	Status       Status
	Message      any
	KeepCallback bool
}

// OK returns a final StatusOK result.
func OK(message any) Result {
	return Result{Status: StatusOK, Message: message}
}

// Progress returns a StatusOK result that keeps the callback open.
func Progress(message any) Result {
	return Result{Status: StatusOK, Message: message, KeepCallback: true}
}

// Pending returns the StatusNoResult placeholder that keeps the callback open
// until a later result arrives.
func Pending() Result {
	return Result{Status: StatusNoResult, KeepCallback: true}
}

// Failure returns a final StatusError result carrying code.
func Failure(code int) Result {
	return Result{Status: StatusError, Message: code}
}
