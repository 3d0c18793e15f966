package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/RyanBlaney/sonido-vox/detector"
	"github.com/RyanBlaney/sonido-vox/detector/classifier"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/transcode"
)

// fakeAnalyzer records the audio it receives and returns err or a fixed
// result
type fakeAnalyzer struct {
	mu     sync.Mutex
	err    error
	audio  []byte
	format string
}

func (f *fakeAnalyzer) result() *detector.Result {
	return &detector.Result{
		Classification: classifier.LabelAIGenerated,
		Confidence:     0.912345,
		Explanation:    "likely AI-generated: stable pitch contour",
	}
}

func (f *fakeAnalyzer) AnalyzeAudio(_ context.Context, data []byte, format string) (*detector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio, f.format = append([]byte(nil), data...), format
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeAnalyzer) AnalyzeBase64(ctx context.Context, payload, format string) (*detector.Result, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detector.ErrInputDecode, err)
	}
	return f.AnalyzeAudio(ctx, data, format)
}

func (f *fakeAnalyzer) SupportedFormats() []string {
	return transcode.NewDecoder(nil).GetSupportedFormats()
}

func (f *fakeAnalyzer) Ready() bool { return true }

func newTestServer(t *testing.T, a Analyzer) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, a, config.Default().Server)
}

func newTestServerWith(t *testing.T, a Analyzer, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	cfg.APIKey = "secret"
	srv := httptest.NewServer(New(cfg, a).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func payload() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("audio-bytes-", 20)))
}

func post(t *testing.T, srv *httptest.Server, key *string, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/voice-detection", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != nil {
		req.Header.Set(HeaderAPIKey, *key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func body(language, format, audio string) string {
	b, _ := json.Marshal(VoiceRequest{Language: language, AudioFormat: format, AudioBase64: audio})
	return string(b)
}

func ptr(s string) *string { return &s }

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, out)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatal("missing request id header")
	}
}

func TestVoiceDetectionSuccess(t *testing.T) {
	a := &fakeAnalyzer{}
	srv := newTestServer(t, a)

	resp, out := post(t, srv, ptr("secret"), body("Tamil", "mp3", payload()))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, out)
	}
	want := map[string]any{
		"status":          "success",
		"language":        "Tamil",
		"classification":  "AI_GENERATED",
		"confidenceScore": 0.9123,
		"explanation":     "likely AI-generated: stable pitch contour",
	}
	for k, v := range want {
		if out[k] != v {
			t.Fatalf("%s = %v, want %v", k, out[k], v)
		}
	}
	if a.format != "mp3" {
		t.Fatalf("format hint %q, want mp3", a.format)
	}

	// any format the decoder supports is accepted
	resp, out = post(t, srv, ptr("secret"), body("English", "ogg", payload()))
	if resp.StatusCode != http.StatusOK || a.format != "ogg" {
		t.Fatalf("ogg: status %d, format %q (%v)", resp.StatusCode, a.format, out)
	}
}

func TestVoiceDetectionErrors(t *testing.T) {
	tests := []struct {
		name   string
		key    *string
		body   string
		err    error
		status int
	}{
		{"missing key", nil, body("English", "mp3", payload()), nil, http.StatusUnauthorized},
		{"wrong key", ptr("nope"), body("English", "mp3", payload()), nil, http.StatusForbidden},
		{"malformed json", ptr("secret"), "{", nil, http.StatusBadRequest},
		{"unknown language", ptr("secret"), body("French", "mp3", payload()), nil, http.StatusBadRequest},
		{"unknown format", ptr("secret"), body("Hindi", "midi", payload()), nil, http.StatusBadRequest},
		{"short payload", ptr("secret"), body("Hindi", "mp3", "abcd"), nil, http.StatusBadRequest},
		{"undecodable", ptr("secret"), body("Telugu", "mp3", strings.Repeat("@", 120)), nil, http.StatusBadRequest},
		{"decode failure", ptr("secret"), body("Malayalam", "wav", payload()), detector.ErrInputDecode, http.StatusBadRequest},
		{"inference failure", ptr("secret"), body("Malayalam", "mp3", payload()), detector.ErrInference, http.StatusInternalServerError},
		{"no model", ptr("secret"), body("Malayalam", "mp3", payload()), detector.ErrClassifierUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeAnalyzer{err: tt.err})
			resp, out := post(t, srv, tt.key, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status %d, want %d (%v)", resp.StatusCode, tt.status, out)
			}
			if out["status"] != "error" || out["message"] == "" {
				t.Fatalf("error body %v", out)
			}
		})
	}
}

func TestVoiceDetectionMethod(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{})
	resp, err := http.Get(srv.URL + "/api/voice-detection")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d, want 405", resp.StatusCode)
	}
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/voice" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var out map[string]any
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func send(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatal(err)
	}
}

func TestVoiceStream(t *testing.T) {
	a := &fakeAnalyzer{}
	srv := newTestServer(t, a)
	conn := dial(t, srv, "?x_api_key=secret")

	send(t, conn, base64.StdEncoding.EncodeToString([]byte("discard")))
	send(t, conn, MessageCancel)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != MessageCancelled {
		t.Fatalf("got %q, want CANCELLED", msg)
	}

	send(t, conn, "***")
	if out := readJSON(t, conn); out["message"] != "Invalid base64 chunk" {
		t.Fatalf("got %v", out)
	}

	send(t, conn, base64.StdEncoding.EncodeToString([]byte("hello ")))
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("world")); err != nil {
		t.Fatal(err)
	}
	send(t, conn, MessageEnd)

	out := readJSON(t, conn)
	if out["status"] != "success" || out["classification"] != "AI_GENERATED" {
		t.Fatalf("got %v", out)
	}
	if _, ok := out["language"]; ok {
		t.Fatal("stream responses carry no language")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if string(a.audio) != "hello world" {
		t.Fatalf("analyzer received %q", a.audio)
	}
}

func TestVoiceStreamAuth(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{})

	for query, want := range map[string]string{
		"":              "Missing API key",
		"?x_api_key=no": "Invalid API key",
	} {
		conn := dial(t, srv, query)
		if out := readJSON(t, conn); out["status"] != "error" || out["message"] != want {
			t.Fatalf("query %q: got %v", query, out)
		}
	}
}

func TestVoiceStreamFailure(t *testing.T) {
	srv := newTestServer(t, &fakeAnalyzer{err: detector.ErrInputDecode})
	conn := dial(t, srv, "?x_api_key=secret")

	send(t, conn, MessageEnd)
	out := readJSON(t, conn)
	msg, _ := out["message"].(string)
	if out["status"] != "error" || !strings.HasPrefix(msg, "Unable to decode audio") {
		t.Fatalf("got %v", out)
	}
}

func TestVoiceStreamLimits(t *testing.T) {
	cfg := config.Default().Server
	cfg.MaxUploadBytes = 64

	srv := newTestServerWith(t, &fakeAnalyzer{}, cfg)
	conn := dial(t, srv, "?x_api_key=secret")
	send(t, conn, base64.StdEncoding.EncodeToString(make([]byte, 100)))
	if out := readJSON(t, conn); out["message"] != "Audio stream too large" {
		t.Fatalf("got %v", out)
	}

	// a frame beyond the read limit closes the connection before buffering
	conn = dial(t, srv, "?x_api_key=secret")
	send(t, conn, strings.Repeat("A", 4096))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseMessageTooBig) {
		t.Fatalf("got %v, want close 1009", err)
	}
}

func TestRoundTo(t *testing.T) {
	if got := roundTo(0.123456, 4); got != 0.1235 {
		t.Fatalf("got %v", got)
	}
	if got := roundTo(1, 4); got != 1 {
		t.Fatalf("got %v", got)
	}
}
