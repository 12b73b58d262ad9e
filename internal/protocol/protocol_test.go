package protocol

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/apperr"
)

func TestCodecFor(t *testing.T) {
	assert.Equal(t, JSON, CodecFor(websocket.TextMessage))
	assert.Equal(t, MsgPack, CodecFor(websocket.BinaryMessage))
	assert.Equal(t, websocket.BinaryMessage, MsgPack.MessageType())
	assert.Equal(t, websocket.TextMessage, JSON.MessageType())
}

func TestDecode_Frame(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		ev, err := JSON.Decode([]byte(`{"event":"frame","data":"data:image/jpeg;base64,AAAA"}`))
		require.NoError(t, err)
		assert.True(t, ev.IsFrame())
		payload, ok := ev.FramePayload()
		assert.True(t, ok)
		assert.Equal(t, "data:image/jpeg;base64,AAAA", payload)
	})

	t.Run("legacy event name", func(t *testing.T) {
		ev, err := JSON.Decode([]byte(`{"event":"image_frame","data":"x,y"}`))
		require.NoError(t, err)
		assert.True(t, ev.IsFrame())
	})

	t.Run("msgpack", func(t *testing.T) {
		data, err := MsgPack.Encode(NewFrame("jpeg,AAAA"))
		require.NoError(t, err)

		ev, err := MsgPack.Decode(data)
		require.NoError(t, err)
		payload, ok := ev.FramePayload()
		assert.True(t, ok)
		assert.Equal(t, "jpeg,AAAA", payload)
	})

	t.Run("non-string data", func(t *testing.T) {
		ev, err := JSON.Decode([]byte(`{"event":"frame","data":42}`))
		require.NoError(t, err)
		_, ok := ev.FramePayload()
		assert.False(t, ok)
	})
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		data  []byte
	}{
		{"json garbage", JSON, []byte("{not json")},
		{"json missing event", JSON, []byte(`{"data":"x"}`)},
		{"msgpack garbage", MsgPack, []byte{0xc1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(tt.data)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindTransport))
		})
	}
}

func TestResultOverBothCodecs(t *testing.T) {
	want := Result{Label: "hello", Confidence: "92.0%"}

	for _, codec := range []Codec{JSON, MsgPack} {
		t.Run(codec.String(), func(t *testing.T) {
			data, err := codec.Encode(NewResult(want))
			require.NoError(t, err)

			ev, err := codec.Decode(data)
			require.NoError(t, err)

			got, err := DecodeResult(ev)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestEncode_JSONShape(t *testing.T) {
	data, err := JSON.Encode(NewResult(Result{Label: "No Hand Detected", Confidence: "0%"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"prediction_result","data":{"label":"No Hand Detected","confidence":"0%"}}`, string(data))
}

func TestDecodeResult_WrongEvent(t *testing.T) {
	_, err := DecodeResult(Event{Event: EventSession})
	assert.Error(t, err)
}
