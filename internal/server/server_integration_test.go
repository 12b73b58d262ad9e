package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/fixture"
	"github.com/ayusman/mudra/internal/frame"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

type testEnv struct {
	ts      *httptest.Server
	manager *session.Manager
	det     *detector.MockDetector
	store   *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := evbus.New()
	rec := store.NewRecorder(st.Sessions(), bus, nil)
	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(rec.Stop)

	det := detector.NewMockDetector()
	oracle := inference.OracleFunc(func(context.Context, feature.Vector) ([]float32, error) {
		return []float32{0.05, 0.95}, nil
	})
	manager := session.NewManager(session.Deps{
		Decoder:    frame.NewDecoder(frame.Options{}),
		Extractor:  feature.NewExtractor(det, nil),
		Gateway:    inference.NewGateway(oracle, []string{"hello", "thanks"}, time.Second),
		WindowSize: 5,
	}, bus, nil)

	ts := httptest.NewServer(New(Config{Manager: manager, Store: st}))
	t.Cleanup(ts.Close)
	t.Cleanup(manager.CloseAll)

	return &testEnv{ts: ts, manager: manager, det: det, store: st}
}

func (e *testEnv) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	ev := readEvent(t, ws)
	if ev.Event != protocol.EventSession {
		t.Fatalf("first event = %q, want %q", ev.Event, protocol.EventSession)
	}
	data, _ := ev.Data.(map[string]any)
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("session event without id: %#v", ev.Data)
	}
	return ws, id
}

func readEvent(t *testing.T, ws *websocket.Conn) protocol.Event {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	ev, err := protocol.CodecFor(mt).Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return ev
}

func sendEvent(t *testing.T, ws *websocket.Conn, codec protocol.Codec, ev protocol.Event) {
	t.Helper()

	data, err := codec.Encode(ev)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := ws.WriteMessage(codec.MessageType(), data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func TestStream_PredictionOverJSON(t *testing.T) {
	env := newTestEnv(t)
	env.det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	ws, _ := env.dial(t)

	sendEvent(t, ws, protocol.JSON, protocol.NewFrame(fixture.JPEGPayload(t)))

	ev := readEvent(t, ws)
	res, err := protocol.DecodeResult(ev)
	if err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
	if res.Label != "thanks" || res.Confidence != "95.0%" {
		t.Errorf("result = %+v, want thanks/95.0%%", res)
	}
}

func TestStream_MsgPackAndLegacyEventName(t *testing.T) {
	env := newTestEnv(t)
	ws, _ := env.dial(t)

	sendEvent(t, ws, protocol.MsgPack, protocol.Event{
		Event: protocol.EventImageFrame,
		Data:  fixture.JPEGPayload(t),
	})

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", mt)
	}
	ev, err := protocol.MsgPack.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	res, err := protocol.DecodeResult(ev)
	if err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
	if res.Label != "No Hand Detected" || res.Confidence != "0%" {
		t.Errorf("result = %+v", res)
	}
}

func TestStream_BadMessagesKeepSessionAlive(t *testing.T) {
	env := newTestEnv(t)
	env.det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
	ws, _ := env.dial(t)

	ws.WriteMessage(websocket.TextMessage, []byte("not json"))
	sendEvent(t, ws, protocol.JSON, protocol.Event{Event: "unknown"})
	sendEvent(t, ws, protocol.JSON, protocol.NewFrame("garbage"))
	sendEvent(t, ws, protocol.JSON, protocol.NewFrame(fixture.JPEGPayload(t)))

	if _, err := protocol.DecodeResult(readEvent(t, ws)); err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
}

func TestStream_DisconnectRecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	ws, id := env.dial(t)

	if env.manager.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", env.manager.Count())
	}

	resp, err := env.ts.Client().Get(env.ts.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	var live struct {
		Count int `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&live)
	resp.Body.Close()
	if live.Count != 1 {
		t.Errorf("live count = %d, want 1", live.Count)
	}

	sendEvent(t, ws, protocol.JSON, protocol.Event{Event: protocol.EventDisconnect})

	type historyResponse struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}

	var history historyResponse
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := env.ts.Client().Get(env.ts.URL + "/api/sessions/history")
		if err != nil {
			t.Fatalf("GET /api/sessions/history error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			t.Fatalf("status = %d", resp.StatusCode)
		}
		history = historyResponse{}
		json.NewDecoder(resp.Body).Decode(&history)
		resp.Body.Close()

		if len(history.Sessions) > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(history.Sessions) != 1 || history.Sessions[0].ID != id {
		t.Errorf("history = %+v, want session %s", history, id)
	}
	if env.manager.Count() != 0 {
		t.Errorf("Count() = %d after disconnect", env.manager.Count())
	}
}

func TestStream_ShutdownClosesConnections(t *testing.T) {
	env := newTestEnv(t)
	ws, _ := env.dial(t)

	env.manager.CloseAll()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed")
	}
}
