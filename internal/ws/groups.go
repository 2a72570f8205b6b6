package ws

import "fmt"

// 组键格式需要与同一部署中的其他实例保持逐字节一致。

// CommentsGroup 是房源评论流的组键。
func CommentsGroup(announcementID uint) string {
	return fmt.Sprintf("comments_%d", announcementID)
}

// LegacyRoomGroup 是旧版配对房间协议的组键：路径中的房间名原样拼接，不做排序。
// 它与 service.RoomName 生成的规范房间名是两套互不通用的寻址方式。
func LegacyRoomGroup(roomName string) string {
	return "chat_" + roomName
}

// UserGroup 是在线状态协议中每个用户的通知频道。
func UserGroup(userID uint) string {
	return fmt.Sprintf("chat_for_user_%d", userID)
}

// PrivateGroup 只包含单个连接，用于向发起者本人回送通知（匿名连接同样适用）。
func PrivateGroup(connID string) string {
	return "conn_" + connID
}
