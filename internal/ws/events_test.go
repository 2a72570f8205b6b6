package ws

import (
	"errors"
	"fmt"
	"testing"

	"rentchat/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name       string
		kind       protocolKind
		data       string
		want       event
		wantStatus string
	}{
		{"comment", protocolComments, `{"text":"nice flat"}`, commentEvent{Text: "nice flat"}, ""},
		{"comment invalid json", protocolComments, `{"text":`, nil, "400"},
		{"legacy send", protocolLegacy, `{"message":"hi","receiver":3}`, sendEvent{Message: "hi", Receiver: idPtr(3)}, ""},
		{"presence untyped send", protocolPresence, `{"message":"hi","receiver":"3"}`, sendEvent{Message: "hi", Receiver: idPtr(3)}, ""},
		{"presence send without receiver", protocolPresence, `{"message":"hi"}`, sendEvent{Message: "hi"}, ""},
		{"presence read", protocolPresence, `{"type":"read","ids":[1,"2"],"room_id":5,"sender":7}`,
			readEvent{IDs: []flexID{1, 2}, RoomID: idPtr(5), Sender: idPtr(7)}, ""},
		{"presence read without room", protocolPresence, `{"type":"read","ids":[1]}`, readEvent{IDs: []flexID{1}}, ""},
		{"presence bad receiver", protocolPresence, `{"message":"hi","receiver":"abc"}`, nil, "400"},
		{"presence not json", protocolPresence, `hello`, nil, "400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, evErr := decodeEvent(tt.kind, []byte(tt.data))
			if tt.wantStatus != "" {
				require.NotNil(t, evErr)
				assert.Equal(t, tt.wantStatus, evErr.Status)
				return
			}
			require.Nil(t, evErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func idPtr(v uint) *flexID {
	f := flexID(v)
	return &f
}

func TestAsEventError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{forbidden("x"), "403"},
		{fmt.Errorf("wrapped: %w", service.ErrUserNotFound), "404"},
		{service.ErrMessageNotFound, "404"},
		{service.ErrAnnouncementNotFound, "404"},
		{service.ErrRoomMismatch, "403"},
		{service.ErrNotRoomMember, "403"},
		{service.ErrNotRecipient, "403"},
		{errors.New("database is locked"), "500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, asEventError(tt.err).Status, tt.err.Error())
	}
}
