package service

import (
	"testing"

	"rentchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AppendAndList(t *testing.T) {
	gdb := setupTestDB(t)
	createUsers(t, gdb, 1)
	s := newServices(gdb)
	ann := models.Announcement{Title: "2 rooms near metro", UserID: 1}
	require.NoError(t, gdb.Create(&ann).Error)

	c, err := s.comments.Append(ctx, ann.ID, 1, "is it still available?")
	require.NoError(t, err)
	assert.Equal(t, "user1", c.User.Name)

	dto := ToCommentDTO(*c)
	assert.Equal(t, ann.ID, dto.Announcement)
	assert.Equal(t, uint(1), dto.User.ID)

	list, err := s.comments.List(ctx, ann.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "is it still available?", list[0].Comment)
}

func TestCommentService_UnknownAnnouncement(t *testing.T) {
	gdb := setupTestDB(t)
	createUsers(t, gdb, 1)
	s := newServices(gdb)

	_, err := s.comments.Append(ctx, 404, 1, "hello")
	assert.ErrorIs(t, err, ErrAnnouncementNotFound)
}
