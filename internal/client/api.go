// Package client implements the chat-view side of the support channel: the
// REST api client, the reconnecting realtime connection and the timeline that
// reconciles optimistic sends with the store's broadcast echoes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

// API talks to the chat REST endpoints. Token is set after Start and scopes
// every later call to that session.
type API struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

func NewAPI(baseURL string) *API {
	return &API{BaseURL: baseURL, HTTPClient: http.DefaultClient}
}

type StartResult struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Start resolves the participant's active session and stores the returned
// bearer token on the client.
func (a *API) Start(ctx context.Context, participantID string) (StartResult, error) {
	var result StartResult
	err := a.post(ctx, "/chat/start", map[string]any{"participantId": participantID}, &result)
	if err != nil {
		return StartResult{}, err
	}
	a.Token = result.Token
	return result, nil
}

// Send appends one encrypted message through the REST path. The returned
// record carries the server-assigned id and timestamp.
func (a *API) Send(ctx context.Context, senderType, clientKey, content string) (wire.Message, error) {
	var result struct {
		Message wire.Message `json:"message"`
	}
	err := a.post(ctx, "/chat/send", map[string]any{
		"senderType": senderType,
		"clientKey":  clientKey,
		"content":    content,
	}, &result)
	if err != nil {
		return wire.Message{}, err
	}
	return result.Message, nil
}

// Messages fetches one ascending page of the session log.
func (a *API) Messages(ctx context.Context, sessionID string, limit, offset int) ([]wire.Message, error) {
	url := a.BaseURL + "/chat/" + sessionID + "/messages?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	a.authorize(req)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var result struct {
		Messages []wire.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// CloseSession ends the session on the server.
func (a *API) CloseSession(ctx context.Context) error {
	return a.post(ctx, "/chat/close", map[string]any{}, nil)
}

func (a *API) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) authorize(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("chat api: %s (status %d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("chat api: status %d", resp.StatusCode)
}
