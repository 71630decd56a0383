// Package protocol defines the JSON messages exchanged with drawing clients.
// Every frame is an envelope {"type": ..., "data": ...}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manpreetbhatti/inkboard/internal/board"
)

// Represents the type of a message on the wire
type MessageType string

// Inbound, client to server
const (
	MessageStartStroke MessageType = "start_stroke"
	MessageDrawPoint   MessageType = "draw_point"
	MessageEndStroke   MessageType = "end_stroke"
	MessageCursorMove  MessageType = "cursor_move"
	MessageUndo        MessageType = "undo"
	MessageRedo        MessageType = "redo"
)

// Outbound, server to client
const (
	MessageInit          MessageType = "init"
	MessageHistoryUpdate MessageType = "history_update"
	MessageRemoteStart   MessageType = "remote_start"
	MessageRemotePoint   MessageType = "remote_point"
	MessageRemoteEnd     MessageType = "remote_end"
	MessageRemoteCursor  MessageType = "remote_cursor"
	MessageUserUpdate    MessageType = "user_update"
)

// Largest brush diameter accepted from a client
const MaxStrokeSize = 500

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Lossy messages may be dropped under load; a missing point only makes a
// line coarser and cursors are overwritten by the next move.
func (t MessageType) Lossy() bool {
	switch t {
	case MessageDrawPoint, MessageCursorMove, MessageRemotePoint, MessageRemoteCursor:
		return true
	}
	return false
}

type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type StartStrokeData struct {
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Color string     `json:"color"`
	Size  float64    `json:"size"`
	Type  board.Tool `json:"type"`
}

type PointData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type InitData struct {
	History       []board.Stroke `json:"history"`
	SelfID        string         `json:"selfId"`
	AssignedColor string         `json:"assignedColor"`
}

type HistoryData struct {
	History []board.Stroke `json:"history"`
}

type RemoteStartData struct {
	OwnerID string       `json:"ownerId"`
	Stroke  board.Stroke `json:"stroke"`
}

type RemotePointData struct {
	OwnerID string  `json:"ownerId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type RemoteEndData struct {
	OwnerID string `json:"ownerId"`
}

type UserUpdateData struct {
	Roster []board.RosterEntry `json:"roster"`
}

// Inbound is a decoded and validated client message
type Inbound struct {
	Type  MessageType
	Start StartStrokeData
	Point PointData
}

func (in Inbound) Style() board.Style {
	return board.Style{Color: in.Start.Color, Size: in.Start.Size, Tool: in.Start.Type}
}

// Decode parses one client frame
func Decode(data []byte) (Inbound, error) {
	if len(data) == 0 {
		return Inbound{}, ErrEmptyMessage
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode envelope: %w", err)
	}

	in := Inbound{Type: env.Type}
	switch env.Type {
	case MessageStartStroke:
		if err := decodeData(env, &in.Start); err != nil {
			return Inbound{}, err
		}
		if err := validateStart(in.Start); err != nil {
			return Inbound{}, err
		}
	case MessageDrawPoint, MessageCursorMove:
		if err := decodeData(env, &in.Point); err != nil {
			return Inbound{}, err
		}
	case MessageEndStroke, MessageUndo, MessageRedo:
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return in, nil
}

func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrInvalidPayload, env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	return nil
}

func validateStart(d StartStrokeData) error {
	if d.Size <= 0 || d.Size > MaxStrokeSize {
		return fmt.Errorf("%w: size %v out of range", ErrInvalidPayload, d.Size)
	}
	if len(d.Color) > 32 {
		return fmt.Errorf("%w: color too long", ErrInvalidPayload)
	}
	if d.Type != "" && !d.Type.Valid() {
		return fmt.Errorf("%w: tool %q", ErrInvalidPayload, d.Type)
	}
	return nil
}

// Encode wraps a payload in an envelope
func Encode(t MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}
