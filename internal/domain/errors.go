package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUnauthorized     ErrorKind = "unauthorized"
	KindForbidden        ErrorKind = "forbidden"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindValidation       ErrorKind = "validation"
	KindInvalidOperation ErrorKind = "invalid_operation"
	KindInternal         ErrorKind = "internal"
)

// Error is a classified failure that is safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

// KindOf classifies err. Anything that is not a *Error is internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage returns a message that can be sent to a client.
// Internal errors are not leaked.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

var (
	ErrRoomNotFound        = NewError(KindNotFound, "meeting not found")
	ErrIdentityNotFound    = NewError(KindNotFound, "identity not found")
	ErrMessageNotFound     = NewError(KindNotFound, "message not found")
	ErrNotParticipant      = NewError(KindNotFound, "not an active participant of this meeting")
	ErrWrongPassword       = NewError(KindForbidden, "wrong meeting password")
	ErrNotHost             = NewError(KindForbidden, "only the host can do that")
	ErrNotInMeeting        = NewError(KindForbidden, "join the meeting first")
	ErrHostMuted           = NewError(KindForbidden, "you were muted by the host")
	ErrChatDisabled        = NewError(KindForbidden, "chat is disabled in this meeting")
	ErrScreenShareDisabled = NewError(KindForbidden, "screen sharing is disabled in this meeting")
	ErrRoomFull            = NewError(KindConflict, "meeting is full")
	ErrAlreadyJoined       = NewError(KindConflict, "already joined")
	ErrRoomExists          = NewError(KindConflict, "meeting already exists")
	ErrMeetingEnded        = NewError(KindConflict, "meeting has ended")
	ErrMeetingActive       = NewError(KindConflict, "meeting is already active")
	ErrMeetingInactive     = NewError(KindConflict, "meeting is not active")
	ErrSelfTarget          = NewError(KindInvalidOperation, "host cannot target themselves")
)
