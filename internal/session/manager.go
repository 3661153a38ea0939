package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// AssistantFactory builds the assistant for a new session.
type AssistantFactory func(sessionID string) Assistant

// Manager holds live sessions. A session expires after ttl without a Get.
type Manager struct {
	cache      *cache.Cache
	newAssist  AssistantFactory
	log        *zap.Logger
	clearAfter time.Duration
}

func NewManager(ttl time.Duration, factory AssistantFactory, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}

	m := &Manager{
		cache:      cache.New(ttl, cleanup),
		newAssist:  factory,
		log:        log,
		clearAfter: 30 * time.Second,
	}
	m.cache.OnEvicted(m.onEvicted)
	return m
}

func (m *Manager) onEvicted(id string, v interface{}) {
	sess, ok := v.(*Session)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.clearAfter)
	defer cancel()

	if err := sess.assistant.Clear(ctx); err != nil {
		m.log.Warn("failed to clear evicted session", zap.String("session_id", id), zap.Error(err))
		return
	}
	m.log.Debug("session evicted", zap.String("session_id", id))
}

func (m *Manager) Create() *Session {
	id := uuid.New().String()
	sess := New(id, m.newAssist(id))
	m.cache.Set(id, sess, cache.DefaultExpiration)
	return sess
}

// Get returns the session and extends its lifetime. Replace fails once the
// janitor has evicted the entry, so an evicted session is never put back.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	x, found := m.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	if err := m.cache.Replace(id, sess, cache.DefaultExpiration); err != nil {
		return nil, false
	}
	return sess, true
}

// GetOrCreate returns the session for id, or a fresh one when id is unknown
// or expired. The fresh session has a new id.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if sess, ok := m.Get(id); ok {
		return sess, false
	}
	return m.Create(), true
}

func (m *Manager) Delete(id string) {
	m.cache.Delete(id)
}

func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// Close evicts every session so their stores are cleared.
func (m *Manager) Close() {
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
}
