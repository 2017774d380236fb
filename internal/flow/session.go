package flow

import (
	"sync"
	"time"

	"snapbot/internal/models"
)

// Session - состояние активного диалога пользователя
type Session struct {
	UserID    int64
	Kind      Kind
	Step      int
	Params    models.Params
	Meta      map[string]string
	StartedAt time.Time
}

func (s *Session) clone() *Session {
	c := *s
	c.Params = s.Params.Clone()
	c.Meta = make(map[string]string, len(s.Meta))
	for k, v := range s.Meta {
		c.Meta[k] = v
	}
	return &c
}

// SessionStore хранит по одной сессии на пользователя
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewSessionStore создает пустое хранилище
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// Get возвращает копию сессии пользователя
func (s *SessionStore) Get(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Put заменяет сессию пользователя, возвращает вытесненную
func (s *SessionStore) Put(sess *Session) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.sessions[sess.UserID]
	s.sessions[sess.UserID] = sess.clone()
	return prev, ok
}

// Delete удаляет сессию пользователя
func (s *SessionStore) Delete(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	return sess, ok
}

// Len возвращает количество активных сессий
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
