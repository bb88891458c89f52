package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/auth"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/hub"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/middleware"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/store"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/telemetry"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

type ChatHandler struct {
	Store       *store.Store
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
	Metrics     *telemetry.Metrics
}

type startBody struct {
	ParticipantID string `json:"participantId"`
}

// Start resolves (or creates) the participant's active session and mints the
// bearer token that scopes all further chat calls to it.
func (h *ChatHandler) Start(c *gin.Context) {
	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ParticipantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	now := time.Now().UnixMilli()
	sess, created, err := h.Store.StartSession(body.ParticipantID, now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := auth.CreateSessionToken(sess.ParticipantID, sess.ID, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token creation failed"})
		return
	}

	if created {
		h.Metrics.SessionStarted(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": sess.ID,
		"token":     token,
		"createdAt": sess.CreatedAt,
		"expiresAt": sess.ExpiresAt,
	})
}

type sendBody struct {
	SessionID  string `json:"sessionId,omitempty"`
	SenderType string `json:"senderType"`
	ClientKey  string `json:"clientKey,omitempty"`
	Content    string `json:"content"`
}

// Send appends one encrypted message and broadcasts the persisted record to
// the session room, the sender's own connections included.
func (h *ChatHandler) Send(c *gin.Context) {
	claims, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.SessionID != "" && body.SessionID != claims.SessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Session mismatch"})
		return
	}

	now := time.Now().UnixMilli()
	msg, err := h.Store.AppendMessage(claims.SessionID, claims.ParticipantID, model.SenderType(body.SenderType), body.ClientKey, body.Content, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, store.ErrSessionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Session not active"})
		case errors.Is(err, store.ErrPersistence):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Persistence failed"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	h.Metrics.MessageAppended(c.Request.Context())
	BroadcastMessage(h.Hub, msg)
	c.JSON(http.StatusOK, gin.H{"message": wire.FromModel(msg)})
}

// Messages returns one ascending page of the session log.
func (h *ChatHandler) Messages(c *gin.Context) {
	claims, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" || sessionID != claims.SessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Session mismatch"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = v
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
			return
		}
		offset = v
	}

	msgs, err := h.Store.ListMessages(sessionID, limit, offset)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	resp := make([]wire.Message, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, wire.FromModel(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// Close ends the caller's session. Further sends are refused; the log stays
// until retention purges it.
func (h *ChatHandler) Close(c *gin.Context) {
	claims, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	if !h.Store.CloseSession(claims.SessionID, time.Now().UnixMilli()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// BroadcastMessage fans the persisted record out to every room member,
// including the connection that originated the send.
func BroadcastMessage(h *hub.Hub, msg model.Message) {
	if h == nil {
		return
	}
	body := wire.FromModel(msg)
	event := wire.ServerEvent{Type: wire.EventMessageEvent, SessionID: msg.SessionID, Body: &body}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.Broadcast(msg.SessionID, data)
}
