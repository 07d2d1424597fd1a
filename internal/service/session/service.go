// Package session keeps the in-memory registry of active conversation
// sessions, one per opened chapter view.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-novel-studio/internal/service/conversation"
	"github.com/zhouzirui/z-novel-studio/internal/service/generation"
)

var ErrSessionNotFound = errors.New("session not found")

// Service maps session ids to conversation sessions.
type Service struct {
	store     conversation.Store
	generator generation.Generator

	mu       sync.RWMutex
	sessions map[string]*conversation.Session
}

// NewService bootstraps the registry over the given collaborators.
func NewService(store conversation.Store, generator generation.Generator) *Service {
	return &Service{
		store:     store,
		generator: generator,
		sessions:  make(map[string]*conversation.Session),
	}
}

// Create opens a session for a chapter, loading its history and context.
// The returned flag reports whether an initial story analysis is due.
func (s *Service) Create(ctx context.Context, chapterID, userID int64) (string, *conversation.Session, bool, error) {
	session := conversation.NewSession(s.store, s.generator, chapterID, userID)
	analysisDue, err := session.Load(ctx)
	if err != nil {
		return "", nil, false, err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return id, session, analysisDue, nil
}

// Get retrieves an active session by identifier.
func (s *Service) Get(sessionID string) (*conversation.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete drops a session from the registry.
func (s *Service) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
