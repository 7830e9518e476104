package apperr

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindPermission Kind = "permission"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeEmptyMessage         Code = "EMPTY_MESSAGE"
	CodeInvalidPhone         Code = "INVALID_PHONE"
	CodeUserNotFound         Code = "USER_NOT_FOUND"
	CodeConversationNotFound Code = "CONVERSATION_NOT_FOUND"
	CodeMessageNotFound      Code = "MESSAGE_NOT_FOUND"
	CodeNotAMember           Code = "NOT_A_MEMBER"
	CodeUserBanned           Code = "USER_BANNED"
	CodeInvalidCredentials   Code = "INVALID_CLIENT_CREDENTIALS"
	CodeTransientStore       Code = "TRANSIENT_STORE_ERROR"
	CodeInternal             Code = "INTERNAL"
)
