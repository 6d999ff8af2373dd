package consts

const (
	UserSimpleInfoKey = "im:user:simple:"
	TokenBlacklistKey = "auth:token:blacklist:"
	IMConversationKey = "im:conversation:"
)

const (
	DuplicateAuditLock = "im:lock:duplicate_audit"
)
