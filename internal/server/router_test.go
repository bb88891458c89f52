package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/auth"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/crypto"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/store"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokenCfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	return NewRouter(Deps{Store: store.New(), TokenConfig: tokenCfg})
}

func postJSON(t *testing.T, r *gin.Engine, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, r *gin.Engine, participantID string) (sessionID, token string) {
	t.Helper()
	w := postJSON(t, r, "/chat/start", "", map[string]any{"participantId": participantID})
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SessionID == "" || resp.Token == "" {
		t.Fatalf("missing sessionId or token: %s", w.Body.String())
	}
	return resp.SessionID, resp.Token
}

func TestChat_HappyPath(t *testing.T) {
	r := newTestRouter(t)
	codec, err := crypto.NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	sessionID, token := startSession(t, r, "p1")

	cipherToken, err := codec.Encode("help")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	w := postJSON(t, r, "/chat/send", token, map[string]any{"senderType": "user", "content": cipherToken})
	if w.Code != http.StatusOK {
		t.Fatalf("send: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sendResp struct {
		Message wire.Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sendResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sendResp.Message.SenderType != "user" || sendResp.Message.ID == "" {
		t.Fatalf("unexpected message: %+v", sendResp.Message)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/"+sessionID+"/messages?limit=10&offset=0", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	lw := httptest.NewRecorder()
	r.ServeHTTP(lw, req)
	if lw.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", lw.Code, lw.Body.String())
	}
	var listResp struct {
		Messages []wire.Message `json:"messages"`
	}
	if err := json.Unmarshal(lw.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listResp.Messages) != 1 {
		t.Fatalf("expected exactly 1 message, got %d", len(listResp.Messages))
	}

	decoded, err := codec.Decode(listResp.Messages[0].Content)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != "help" {
		t.Fatalf("expected decoded content %q, got %q", "help", decoded)
	}
}

func TestChat_StartResolvesExistingSession(t *testing.T) {
	r := newTestRouter(t)

	first, _ := startSession(t, r, "p1")
	second, _ := startSession(t, r, "p1")
	if first != second {
		t.Fatalf("expected second start to resolve the existing session, got %q vs %q", first, second)
	}
}

func TestChat_SendRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/chat/send", "", map[string]any{"senderType": "user", "content": "x:y:z"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestChat_TokenScopesSession(t *testing.T) {
	r := newTestRouter(t)

	otherSession, _ := startSession(t, r, "p1")
	_, token2 := startSession(t, r, "p2")

	// p2's token must not read p1's log.
	req := httptest.NewRequest(http.MethodGet, "/chat/"+otherSession+"/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token2)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// Nor send into it.
	sw := postJSON(t, r, "/chat/send", token2, map[string]any{"sessionId": otherSession, "senderType": "user", "content": "a:b:c"})
	if sw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", sw.Code)
	}
}

func TestChat_SendAfterClose(t *testing.T) {
	r := newTestRouter(t)

	_, token := startSession(t, r, "p1")
	if w := postJSON(t, r, "/chat/close", token, map[string]any{}); w.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", w.Code)
	}

	w := postJSON(t, r, "/chat/send", token, map[string]any{"senderType": "user", "content": "a:b:c"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 after close, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChat_InvalidSenderType(t *testing.T) {
	r := newTestRouter(t)

	_, token := startSession(t, r, "p1")
	w := postJSON(t, r, "/chat/send", token, map[string]any{"senderType": "ghost", "content": "a:b:c"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChat_StartValidation(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/chat/start", "", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
