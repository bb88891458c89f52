package client

import (
	"context"
	"time"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/crypto"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/wire"
)

// historyPageSize is how much history a freshly opened view loads.
const historyPageSize = 100

// ViewOptions configures OpenView.
type ViewOptions struct {
	BaseURL       string
	ParticipantID string
	SenderType    model.SenderType
	Secret        string

	// ReconnectDelay and MaxAttempts are passed through to the realtime
	// connection; zero values take the connection defaults.
	ReconnectDelay time.Duration
	MaxAttempts    int

	// OnUpdate fires after the timeline changed. OnConnectionChange fires
	// when the realtime link drops or comes back.
	OnUpdate           func()
	OnConnectionChange func(connected bool)
}

// View is one participant's live chat surface: it owns a session token, a
// realtime connection and a timeline, and keeps them consistent.
type View struct {
	api      *API
	codec    *crypto.Codec
	timeline *Timeline
	conn     *Connection
	opts     ViewOptions

	SessionID string
}

// OpenView resolves the participant's session, loads the first page of
// history and joins the session room.
func OpenView(ctx context.Context, opts ViewOptions) (*View, error) {
	codec, err := crypto.NewCodec(opts.Secret)
	if err != nil {
		return nil, err
	}

	api := NewAPI(opts.BaseURL)
	started, err := api.Start(ctx, opts.ParticipantID)
	if err != nil {
		return nil, err
	}

	v := &View{
		api:       api,
		codec:     codec,
		timeline:  NewTimeline(codec),
		opts:      opts,
		SessionID: started.SessionID,
	}

	history, err := api.Messages(ctx, started.SessionID, historyPageSize, 0)
	if err != nil {
		return nil, err
	}
	v.timeline.Load(history)

	v.conn, err = Dial(ctx, Options{
		BaseURL:        opts.BaseURL,
		Token:          started.Token,
		SessionID:      started.SessionID,
		ReconnectDelay: opts.ReconnectDelay,
		MaxAttempts:    opts.MaxAttempts,
	}, v.onMessage, v.onConnectionChange)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SendText encrypts and sends one message, showing it immediately as a
// pending entry. The entry is confirmed in place when the room echoes the
// stored record back.
func (v *View) SendText(text string) error {
	content, err := v.codec.Encode(text)
	if err != nil {
		return err
	}
	entry := v.timeline.AppendOptimistic(v.opts.SenderType, text, time.Now().UnixMilli())
	v.update()

	if err := v.conn.Send(string(v.opts.SenderType), entry.ClientKey, content); err != nil {
		v.timeline.Remove(entry.ClientKey)
		v.update()
		return err
	}
	return nil
}

// Entries returns the current display list.
func (v *View) Entries() []Entry {
	return v.timeline.Entries()
}

// Connected reports whether the realtime link is live.
func (v *View) Connected() bool {
	return v.conn.Connected()
}

// Close tears down the realtime connection. The session itself stays open
// for later views.
func (v *View) Close() error {
	return v.conn.Close()
}

func (v *View) onMessage(msg wire.Message) {
	v.timeline.Apply(msg)
	v.update()
}

func (v *View) onConnectionChange(connected bool) {
	if v.opts.OnConnectionChange != nil {
		v.opts.OnConnectionChange(connected)
	}
}

func (v *View) update() {
	if v.opts.OnUpdate != nil {
		v.opts.OnUpdate()
	}
}
