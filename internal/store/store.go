package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session not active")
	ErrPersistence     = errors.New("chat state persistence failed")
)

// Store owns all session and message records. Mutation is append-only apart
// from session close and retention purge, so a single RWMutex plus the
// per-session clock is enough to keep the ordering invariant.
type Store struct {
	mu sync.RWMutex

	stateFile string
	persistMu sync.Mutex
	retention time.Duration

	sessionsByID        map[string]model.Session
	activeByParticipant map[string]string // participantID -> active sessionID

	messages *messageStore
	clock    *sessionClock
}

type Options struct {
	StateFile string
	Retention time.Duration
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	retention := opts.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	s := &Store{
		stateFile:           opts.StateFile,
		retention:           retention,
		sessionsByID:        make(map[string]model.Session),
		activeByParticipant: make(map[string]string),
		messages:            newMessageStore(),
		clock:               newSessionClock(),
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			slog.Warn("chat state load failed", "path", s.stateFile, "error", err)
		}
	}

	return s
}

// StartSession resolves the participant's active session, creating one only
// when none exists. Closed or expired sessions are replaced.
func (s *Store) StartSession(participantID string, nowMillis int64) (model.Session, bool, error) {
	if participantID == "" {
		return model.Session{}, false, errors.New("missing participantID")
	}

	s.mu.Lock()

	if sid, ok := s.activeByParticipant[participantID]; ok {
		sess, found := s.sessionsByID[sid]
		if found && sess.Status == model.SessionActive && nowMillis < sess.ExpiresAt {
			s.mu.Unlock()
			return sess, false, nil
		}
		delete(s.activeByParticipant, participantID)
	}

	sess := model.Session{
		ID:             uuid.NewString(),
		ParticipantID:  participantID,
		Status:         model.SessionActive,
		CreatedAt:      nowMillis,
		LastActivityAt: nowMillis,
		ExpiresAt:      nowMillis + s.retention.Milliseconds(),
	}
	s.sessionsByID[sess.ID] = sess
	s.activeByParticipant[participantID] = sess.ID
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistSnapshot(snapshot); err != nil {
		slog.Warn("chat state persist failed", "error", err)
	}
	return sess, true, nil
}

func (s *Store) GetSession(sessionID string) (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessionsByID[sessionID]
	return sess, ok
}

// CloseSession marks the session closed and frees the participant's active
// slot. The message log is retained until the retention purge.
func (s *Store) CloseSession(sessionID string, nowMillis int64) bool {
	s.mu.Lock()

	sess, ok := s.sessionsByID[sessionID]
	if !ok || sess.Status != model.SessionActive {
		s.mu.Unlock()
		return false
	}
	sess.Status = model.SessionClosed
	sess.LastActivityAt = nowMillis
	s.sessionsByID[sessionID] = sess
	if s.activeByParticipant[sess.ParticipantID] == sessionID {
		delete(s.activeByParticipant, sess.ParticipantID)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistSnapshot(snapshot); err != nil {
		slog.Warn("chat state persist failed", "error", err)
	}
	return true
}

// AppendMessage validates the session, assigns the server id and a clamped
// timestamp, and persists the record. On persistence failure the in-memory
// append is rolled back and no record is returned.
func (s *Store) AppendMessage(sessionID, senderID string, senderType model.SenderType, clientKey, content string, nowMillis int64) (model.Message, error) {
	if !model.ValidSenderType(senderType) {
		return model.Message{}, fmt.Errorf("invalid sender type %q", senderType)
	}
	if content == "" {
		return model.Message{}, errors.New("missing content")
	}

	s.mu.Lock()
	sess, ok := s.sessionsByID[sessionID]
	if !ok {
		s.mu.Unlock()
		return model.Message{}, ErrSessionNotFound
	}
	if sess.Status != model.SessionActive {
		s.mu.Unlock()
		return model.Message{}, ErrSessionClosed
	}

	msg := model.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		SenderID:   senderID,
		SenderType: senderType,
		ClientKey:  clientKey,
		Content:    content,
		CreatedAt:  s.clock.next(sessionID, nowMillis),
	}
	s.messages.append(sessionID, msg)

	sess.LastActivityAt = msg.CreatedAt
	sess.ExpiresAt = msg.CreatedAt + s.retention.Milliseconds()
	s.sessionsByID[sessionID] = sess
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistSnapshot(snapshot); err != nil {
		s.messages.removeByID(sessionID, msg.ID)
		return model.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msg, nil
}

// ListMessages returns one contiguous page of the session log, ascending by
// CreatedAt. Content stays encrypted; callers decrypt client-side.
func (s *Store) ListMessages(sessionID string, limit, offset int) ([]model.Message, error) {
	if _, ok := s.GetSession(sessionID); !ok {
		return nil, ErrSessionNotFound
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.page(sessionID, limit, offset), nil
}

// PurgeExpired bulk-deletes sessions whose inactivity window has elapsed,
// together with their message logs. Returns the number of sessions removed.
func (s *Store) PurgeExpired(nowMillis int64) int {
	s.mu.Lock()

	var expired []model.Session
	for _, sess := range s.sessionsByID {
		if nowMillis >= sess.ExpiresAt {
			expired = append(expired, sess)
		}
	}
	for _, sess := range expired {
		delete(s.sessionsByID, sess.ID)
		if s.activeByParticipant[sess.ParticipantID] == sess.ID {
			delete(s.activeByParticipant, sess.ParticipantID)
		}
		s.messages.deleteSession(sess.ID)
		s.clock.forget(sess.ID)
	}
	var snapshot *persistedChatFile
	if len(expired) > 0 {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if snapshot != nil {
		if err := s.persistSnapshot(snapshot); err != nil {
			slog.Warn("chat state persist failed", "error", err)
		}
	}
	return len(expired)
}

// StartRetentionLoop sweeps expired sessions on the given interval until stop
// is closed.
func (s *Store) StartRetentionLoop(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := s.PurgeExpired(time.Now().UnixMilli()); n > 0 {
					slog.Info("retention purge", "sessions", n)
				}
			}
		}
	}()
}

type persistedChatFile struct {
	Version  int                        `json:"version"`
	Sessions []model.Session            `json:"sessions"`
	Messages map[string][]model.Message `json:"messages"`
	SavedAt  int64                      `json:"savedAt"`
}

func (s *Store) snapshotLocked() *persistedChatFile {
	if s.stateFile == "" {
		return nil
	}

	sessions := make([]model.Session, 0, len(s.sessionsByID))
	for _, sess := range s.sessionsByID {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	return &persistedChatFile{
		Version:  1,
		Sessions: sessions,
		Messages: s.messages.snapshot(),
		SavedAt:  time.Now().UnixMilli(),
	}
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedChatFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported chat state version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range file.Sessions {
		if sess.ID == "" || sess.ParticipantID == "" {
			continue
		}
		s.sessionsByID[sess.ID] = sess
		if sess.Status == model.SessionActive {
			s.activeByParticipant[sess.ParticipantID] = sess.ID
		}
	}
	for sid, msgs := range file.Messages {
		if _, ok := s.sessionsByID[sid]; !ok {
			continue
		}
		s.messages.restore(sid, msgs)
		for _, msg := range msgs {
			s.clock.observe(sid, msg.CreatedAt)
		}
	}
	return nil
}

func (s *Store) persistSnapshot(file *persistedChatFile) error {
	if file == nil || s.stateFile == "" {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	path := s.stateFile
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
