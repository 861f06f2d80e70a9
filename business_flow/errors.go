// Package businessflow contains the core business logic for the notification dispatch engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Member-related errors
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberInactive      = errors.New("member is not active in any department")
	ErrMembershipNotFound  = errors.New("member has no membership in department")
	ErrSenderNotAdmin      = errors.New("sender is not an admin of the department")
	ErrAmbiguousDepartment = errors.New("sender belongs to multiple departments for this channel")
	ErrNotDistrictAdmin    = errors.New("sender is not a district admin")

	// Directory/configuration errors
	ErrDepartmentNotFound = errors.New("department is not configured")
	ErrTalkgroupNotFound  = errors.New("talkgroup is not configured")
	ErrIdentityNotFound   = errors.New("sending identity is not configured")
	ErrChannelNotFound    = errors.New("no channel configured for destination number")
	ErrChannelNoReplies   = errors.New("channel cannot receive replies")

	// Event errors
	ErrUnknownAction  = errors.New("unknown queue event action")
	ErrUnknownStatus  = errors.New("unknown delivery status")
	ErrMessageTooLong = errors.New("message body exceeds the broadcast limit")
	ErrRecordNotFound = errors.New("message record not found")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
