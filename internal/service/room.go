package service

import (
	"context"
	"errors"
	"fmt"

	"rentchat/internal/models"

	"gorm.io/gorm"
)

// RoomService 封装私聊房间的解析、创建与查询。
type RoomService struct {
	db       *gorm.DB
	presence *PresenceService
	locks    *KeyLock
}

func NewRoomService(db *gorm.DB, presence *PresenceService) *RoomService {
	return &RoomService{db: db, presence: presence, locks: NewKeyLock()}
}

// RoomName 按数值升序排列两个用户 ID，生成规范房间名 chat_room_<lo>-<hi>。
func RoomName(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("chat_room_%d-%d", a, b)
}

// Resolve 返回两位用户之间的规范房间，必要时创建。created 为 true 时调用方需要广播 group_created。
func (s *RoomService) Resolve(ctx context.Context, a, b uint) (*models.Room, bool, error) {
	return s.GetOrCreate(ctx, RoomName(a, b), a, b)
}

// GetOrCreate 按名称原子地获取或创建房间；首次创建时写入成员。
// 同名创建在进程内串行化，跨实例的竞争由唯一索引兜底：冲突方重新读取并返回 created=false。
func (s *RoomService) GetOrCreate(ctx context.Context, name string, memberIDs ...uint) (*models.Room, bool, error) {
	unlock := s.locks.Lock(name)
	defer unlock()

	var room models.Room
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Users.Images").Where("name = ?", name).First(&room).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		ids := uniqueIDs(memberIDs)
		var users []models.User
		if len(ids) > 0 {
			if err := tx.Preload("Images").Where("id IN ?", ids).Find(&users).Error; err != nil {
				return err
			}
			if len(users) != len(ids) {
				return ErrUserNotFound
			}
		}
		room = models.Room{Name: name, Users: users}
		if err := tx.Omit("Users.*").Create(&room).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		room = models.Room{}
		if err := s.db.WithContext(ctx).Preload("Users.Images").Where("name = ?", name).First(&room).Error; err != nil {
			return nil, false, fmt.Errorf("reload room %s: %w", name, err)
		}
		return &room, false, nil
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("get or create room %s: %w", name, err)
	}
	return &room, created, nil
}

// Get 查询房间及成员。
func (s *RoomService) Get(ctx context.Context, roomID uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).Preload("Users.Images").First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// IsMember 判断用户是否为房间成员。
func (s *RoomService) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Table("room_users").
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// Serialize 将房间连同成员在线状态转换为 group_created 负载。
func (s *RoomService) Serialize(ctx context.Context, room models.Room) (RoomCreatedDTO, error) {
	online, err := s.presence.OnlineMap(ctx, memberIDs(room))
	if err != nil {
		return RoomCreatedDTO{}, err
	}
	return ToRoomCreatedDTO(room, online), nil
}

// ListForUser 返回用户参与的全部房间，每个房间只附带未读消息。
func (s *RoomService) ListForUser(ctx context.Context, userID uint) ([]RoomDTO, error) {
	db := s.db.WithContext(ctx)
	var rooms []models.Room
	err := db.Preload("Users.Images").
		Joins("JOIN room_users ON room_users.room_id = rooms.id").
		Where("room_users.user_id = ?", userID).
		Order("rooms.id desc").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []RoomDTO{}, nil
	}

	roomIDs := make([]uint, 0, len(rooms))
	var userIDs []uint
	for _, r := range rooms {
		roomIDs = append(roomIDs, r.ID)
		userIDs = append(userIDs, memberIDs(r)...)
	}
	var unread []models.Message
	if err := db.Where("room_id IN ? AND is_read = ?", roomIDs, false).Order("created_at, id").Find(&unread).Error; err != nil {
		return nil, err
	}
	byRoom := make(map[uint][]models.Message, len(rooms))
	for _, m := range unread {
		byRoom[m.RoomID] = append(byRoom[m.RoomID], m)
	}
	online, err := s.presence.OnlineMap(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{RoomCreatedDTO: ToRoomCreatedDTO(r, online), Messages: ToMessageDTOs(byRoom[r.ID])})
	}
	return out, nil
}

// Detail 返回房间详情及全部消息，仅房间成员可见。
func (s *RoomService) Detail(ctx context.Context, roomID, userID uint) (*RoomDTO, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	member := false
	for _, u := range room.Users {
		if u.ID == userID {
			member = true
			break
		}
	}
	if !member {
		return nil, ErrNotRoomMember
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at, id").Find(&msgs).Error; err != nil {
		return nil, err
	}
	online, err := s.presence.OnlineMap(ctx, memberIDs(*room))
	if err != nil {
		return nil, err
	}
	return &RoomDTO{RoomCreatedDTO: ToRoomCreatedDTO(*room, online), Messages: ToMessageDTOs(msgs)}, nil
}

func memberIDs(r models.Room) []uint {
	ids := make([]uint, 0, len(r.Users))
	for _, u := range r.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
