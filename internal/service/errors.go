package service

import "errors"

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码或 WebSocket 通知。
var (
	ErrPhoneTaken           = errors.New("phone number taken")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrNotRoomMember        = errors.New("not a room member")
	ErrMessageNotFound      = errors.New("message not found")
	ErrRoomMismatch         = errors.New("message does not belong to room")
	ErrNotRecipient         = errors.New("message was not sent to reader")
	ErrAnnouncementNotFound = errors.New("announcement not found")
)
