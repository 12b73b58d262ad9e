// Package protocol defines the event envelope exchanged with streaming
// clients and its JSON and MessagePack encodings.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/mudra/internal/apperr"
)

// Event names.
const (
	EventFrame            = "frame"
	EventImageFrame       = "image_frame"
	EventDisconnect       = "disconnect"
	EventPredictionResult = "prediction_result"
	EventSession          = "session"
	EventError            = "error"
)

// Event is the envelope carried by every message.
type Event struct {
	Event string `json:"event" msgpack:"event"`
	Data  any    `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Result is the payload of a prediction_result event.
type Result struct {
	Label      string `json:"label" msgpack:"label"`
	Confidence string `json:"confidence" msgpack:"confidence"`
}

// SessionInfo is the payload of a session event.
type SessionInfo struct {
	ID string `json:"id" msgpack:"id"`
}

// IsFrame reports whether e carries a frame payload.
func (e Event) IsFrame() bool {
	return e.Event == EventFrame || e.Event == EventImageFrame
}

// FramePayload returns the frame string carried by e. Non-string data
// yields ok == false.
func (e Event) FramePayload() (payload string, ok bool) {
	payload, ok = e.Data.(string)
	return payload, ok
}

// Codec selects the wire encoding of an event.
type Codec int

const (
	// JSON is used for websocket text messages.
	JSON Codec = iota
	// MsgPack is used for websocket binary messages.
	MsgPack
)

func (c Codec) String() string {
	if c == MsgPack {
		return "msgpack"
	}
	return "json"
}

// CodecFor returns the codec matching a websocket message type.
func CodecFor(messageType int) Codec {
	if messageType == websocket.BinaryMessage {
		return MsgPack
	}
	return JSON
}

// MessageType returns the websocket message type used for c.
func (c Codec) MessageType() int {
	if c == MsgPack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Decode parses one message.
func (c Codec) Decode(data []byte) (Event, error) {
	const op = "protocol.Decode"

	var (
		ev  Event
		err error
	)
	switch c {
	case MsgPack:
		err = msgpack.Unmarshal(data, &ev)
	default:
		err = json.Unmarshal(data, &ev)
	}
	if err != nil {
		return Event{}, apperr.Wrap(apperr.KindTransport, op, fmt.Sprintf("invalid %s event", c), err)
	}
	if ev.Event == "" {
		return Event{}, apperr.New(apperr.KindTransport, op, "event name missing")
	}
	return ev, nil
}

// Encode serialises ev.
func (c Codec) Encode(ev Event) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch c {
	case MsgPack:
		data, err = msgpack.Marshal(ev)
	default:
		data, err = json.Marshal(ev)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, "protocol.Encode", fmt.Sprintf("encode %s event", c), err)
	}
	return data, nil
}

// NewFrame builds a frame event.
func NewFrame(payload string) Event {
	return Event{Event: EventFrame, Data: payload}
}

// NewResult builds a prediction_result event.
func NewResult(r Result) Event {
	return Event{Event: EventPredictionResult, Data: r}
}

// DecodeResult extracts a Result from a decoded prediction_result event.
// Decoded data arrives as a generic map, so it is re-marshalled through
// JSON.
func DecodeResult(ev Event) (Result, error) {
	var r Result
	if ev.Event != EventPredictionResult {
		return r, apperr.New(apperr.KindTransport, "protocol.DecodeResult", "not a prediction_result event: "+ev.Event)
	}
	if direct, ok := ev.Data.(Result); ok {
		return direct, nil
	}
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return r, apperr.Wrap(apperr.KindTransport, "protocol.DecodeResult", "re-encode data", err)
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, apperr.Wrap(apperr.KindTransport, "protocol.DecodeResult", "decode result", err)
	}
	return r, nil
}
