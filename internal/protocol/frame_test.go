package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

func frameWithBody(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

func TestEncodeWritesBigEndianLength(t *testing.T) {
	frame, err := Encode(map[string]string{"action": "LOGIN"})
	require.NoError(t, err)

	body := frame[4:]
	assert.Equal(t, uint32(len(body)), binary.BigEndian.Uint32(frame[:4]))
	assert.JSONEq(t, `{"action":"LOGIN"}`, string(body))
}

func TestReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Fail("nope")))
	require.NoError(t, WriteFrame(&buf, OK("done", map[string]int{"port": 9000})))

	var first, second Reply
	require.NoError(t, ReadFrame(&buf, &first, 0))
	require.NoError(t, ReadFrame(&buf, &second, 0))

	assert.False(t, first.Success)
	assert.Equal(t, "nope", first.Message)
	assert.Empty(t, first.Data)

	assert.True(t, second.Success)
	var data struct {
		Port int `json:"port"`
	}
	require.NoError(t, second.DecodeData(&data))
	assert.Equal(t, 9000, data.Port)
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		max     int
		wantErr error
	}{
		{name: "clean close", input: nil, wantErr: io.EOF},
		{name: "truncated header", input: []byte{0, 0}, wantErr: ErrFraming},
		{name: "truncated body", input: frameWithBody([]byte(`{"a":1}`))[:6], wantErr: ErrFraming},
		{name: "invalid json", input: frameWithBody([]byte(`{"a":`)), wantErr: ErrMalformedPayload},
		{name: "invalid utf8", input: frameWithBody([]byte{'"', 0xff, 0xfe, '"'}), wantErr: ErrMalformedPayload},
		{name: "too large", input: frameWithBody([]byte(`{"a":"0123456789"}`)), max: 8, wantErr: ErrFraming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v map[string]any
			err := ReadFrame(bytes.NewReader(tt.input), &v, tt.max)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequestKeepsBodyForBinding(t *testing.T) {
	var buf bytes.Buffer
	msg := NewRequest(ActionJoinRoom, model.ClassPlayer, "sess-1", map[string]any{"room_id": "r1"})
	require.NoError(t, WriteFrame(&buf, msg))

	var req Request
	require.NoError(t, ReadFrame(&buf, &req, 0))
	assert.Equal(t, ActionJoinRoom, req.Action)
	assert.Equal(t, model.ClassPlayer, req.ClientType)
	assert.Equal(t, "sess-1", req.SessionID)

	var body struct {
		RoomID string `json:"room_id"`
	}
	require.NoError(t, req.Bind(&body))
	assert.Equal(t, "r1", body.RoomID)
}

func TestRequestBindTypeMismatch(t *testing.T) {
	var req Request
	require.NoError(t, req.UnmarshalJSON([]byte(`{"action":"JOIN_ROOM","room_id":42}`)))

	var body struct {
		RoomID string `json:"room_id"`
	}
	assert.ErrorIs(t, req.Bind(&body), ErrBadRequest)
}

func TestCodecClose(t *testing.T) {
	c := NewCodec(&bytes.Buffer{}, 0)
	assert.NoError(t, c.Close())
}
