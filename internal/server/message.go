package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/pokerrooms/internal/room"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message stamped with now.
func NewMessage(messageType MessageType, data any, now time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: now,
	}, nil
}

// EventMessage wraps a room event.
func EventMessage(ev room.Event, now time.Time) (*Message, error) {
	return NewMessage(MessageType(ev.Type()), ev, now)
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LobbyUpdateData struct {
	Rooms []room.Summary `json:"rooms"`
	Total int            `json:"total"`
}

// DecodeIntent turns a client message into a room intent.
func DecodeIntent(msg *Message) (room.Intent, error) {
	var (
		intent room.Intent
		err    error
	)

	switch msg.Type {
	case MessageTypeFold:
		return room.FoldIntent{}, nil
	case MessageTypeCheck:
		return room.CheckIntent{}, nil
	case MessageTypeCall:
		return room.CallIntent{}, nil
	case MessageTypeBet:
		intent, err = decodeData[room.BetIntent](msg.Data)
	case MessageTypeRunCount:
		intent, err = decodeData[room.RunCountIntent](msg.Data)
	case MessageTypeAgreeRunCount:
		intent, err = decodeData[room.AgreeRunCountIntent](msg.Data)
	case MessageTypeSocialAction:
		intent, err = decodeData[room.SocialIntent](msg.Data)
	case MessageTypeSetReady:
		intent, err = decodeData[room.SetReadyIntent](msg.Data)
	case MessageTypeSitAtTable:
		intent, err = decodeData[room.SitIntent](msg.Data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("parse %s data: %w", msg.Type, err)
	}
	return intent, nil
}

func decodeData[T room.Intent](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errors.New("missing data")
	}
	err := json.Unmarshal(data, &v)
	return v, err
}
