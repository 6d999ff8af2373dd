package consts

const (
	DefaultAvatarURL = "default_avatar.png"
)

// gin.Context 中的键
const (
	CtxUserID = "user_id"
)
