package apperr

import (
	"errors"
	"fmt"
)

// AppError is the typed failure surfaced by the service layer. Message is safe
// to show to callers; Cause is kept for logs only.
type AppError struct {
	Kind    Kind   `json:"-"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on Code so sentinel values below work with errors.Is even after
// being wrapped with a cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(kind Kind, code Code, message string) error {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code Code, message string, cause error) error {
	return &AppError{Kind: kind, Code: code, Message: message, Cause: cause}
}

func Validation(code Code, msg string) error { return New(KindValidation, code, msg) }

func NotFound(code Code, msg string) error { return New(KindNotFound, code, msg) }

func Permission(code Code, msg string) error { return New(KindPermission, code, msg) }

func Transient(cause error) error {
	return Wrap(KindTransient, CodeTransientStore, "temporary storage failure, retry later", cause)
}

func Internal(cause error) error {
	return Wrap(KindInternal, CodeInternal, "internal error", cause)
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the kind of err, defaulting to KindInternal for foreign errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

var (
	ErrEmptyMessage         = Validation(CodeEmptyMessage, "message body or attachments are required")
	ErrInvalidPhone         = Validation(CodeInvalidPhone, "phone number is invalid")
	ErrSelfConversation     = Validation(CodeValidation, "a direct conversation needs two different users")
	ErrUserNotFound         = NotFound(CodeUserNotFound, "user not found")
	ErrRecipientNotFound    = NotFound(CodeUserNotFound, "recipient is not registered")
	ErrConversationNotFound = NotFound(CodeConversationNotFound, "conversation not found")
	ErrMessageNotFound      = NotFound(CodeMessageNotFound, "message not found")
	ErrNotAMember           = Permission(CodeNotAMember, "sender is not a participant of this conversation")
	ErrUserBanned           = Permission(CodeUserBanned, "user is banned")
	ErrInvalidCredentials   = Permission(CodeInvalidCredentials, "invalid client credentials")
)
