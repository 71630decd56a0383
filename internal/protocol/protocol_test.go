package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manpreetbhatti/inkboard/internal/board"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Inbound
		wantErr error
	}{
		{
			name:  "start stroke",
			frame: `{"type":"start_stroke","data":{"x":1,"y":2,"color":"#ff0000","size":5,"type":"eraser"}}`,
			want: Inbound{Type: MessageStartStroke, Start: StartStrokeData{
				X: 1, Y: 2, Color: "#ff0000", Size: 5, Type: board.ToolEraser,
			}},
		},
		{
			name:  "draw point",
			frame: `{"type":"draw_point","data":{"x":3,"y":4}}`,
			want:  Inbound{Type: MessageDrawPoint, Point: PointData{X: 3, Y: 4}},
		},
		{
			name:  "cursor move",
			frame: `{"type":"cursor_move","data":{"x":5,"y":6}}`,
			want:  Inbound{Type: MessageCursorMove, Point: PointData{X: 5, Y: 6}},
		},
		{name: "end stroke", frame: `{"type":"end_stroke"}`, want: Inbound{Type: MessageEndStroke}},
		{name: "undo", frame: `{"type":"undo","data":{}}`, want: Inbound{Type: MessageUndo}},
		{name: "redo", frame: `{"type":"redo"}`, want: Inbound{Type: MessageRedo}},
		{name: "empty", frame: ``, wantErr: ErrEmptyMessage},
		{name: "unknown type", frame: `{"type":"history_update"}`, wantErr: ErrUnknownType},
		{name: "point without data", frame: `{"type":"draw_point"}`, wantErr: ErrInvalidPayload},
		{name: "bad size", frame: `{"type":"start_stroke","data":{"x":1,"y":2,"size":0}}`, wantErr: ErrInvalidPayload},
		{name: "bad tool", frame: `{"type":"start_stroke","data":{"size":2,"type":"laser"}}`, wantErr: ErrInvalidPayload},
		{name: "bad point", frame: `{"type":"draw_point","data":{"x":"left"}}`, wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestEncodeHistoryUpdate(t *testing.T) {
	data, err := Encode(MessageHistoryUpdate, HistoryData{History: []board.Stroke{{
		ID: "s1", OwnerID: "a", Points: []board.Point{{X: 1, Y: 1}}, Color: "#000", Size: 2, Type: board.ToolBrush,
	}}})
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"history_update","data":{"history":[
		{"id":"s1","ownerId":"a","points":[{"x":1,"y":1}],"color":"#000","size":2,"type":"brush","hidden":false}
	]}}`, string(data))
}

func TestEncodeUserUpdate(t *testing.T) {
	data, err := Encode(MessageUserUpdate, UserUpdateData{Roster: []board.RosterEntry{
		{ID: "a", Participant: board.Participant{Color: "#abcdef"}},
	}})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, MessageUserUpdate, env.Type)
	assert.JSONEq(t, `{"roster":[["a",{"color":"#abcdef","x":0,"y":0}]]}`, string(env.Data))
}

func TestLossy(t *testing.T) {
	assert.True(t, MessageDrawPoint.Lossy())
	assert.True(t, MessageRemoteCursor.Lossy())
	assert.False(t, MessageEndStroke.Lossy())
	assert.False(t, MessageHistoryUpdate.Lossy())
	assert.False(t, MessageUndo.Lossy())
}
