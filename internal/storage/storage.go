package storage

import (
	"sync"
	"time"

	"github.com/glam-tools/wikimapper/internal/analyzer"
	"github.com/glam-tools/wikimapper/internal/mapping"
	"github.com/glam-tools/wikimapper/internal/recon"
)

// MappingSession is one dataset's mapping and reconciliation state.
type MappingSession struct {
	ID          string              `json:"id"`
	DatasetKeys []string            `json:"datasetKeys"`
	CreatedAt   time.Time           `json:"created_at"`
	State       *mapping.State      `json:"-"`
	Cells       *recon.CellStore    `json:"-"`
	Advancer    *recon.AutoAdvancer `json:"-"`
	// Records keeps the loaded dataset around for value extraction and
	// contextual properties
	Records []analyzer.Record `json:"-"`

	mu     sync.Mutex
	cursor *recon.CellKey
}

// NewMappingSession creates an empty session with fresh state, cells and
// advancer.
func NewMappingSession(id string) *MappingSession {
	return &MappingSession{
		ID:        id,
		CreatedAt: time.Now(),
		State:     mapping.NewState(),
		Cells:     recon.NewCellStore(),
		Advancer:  recon.NewAutoAdvancer(),
	}
}

// SetCursor points the session at the cell the UI should work on next.
func (s *MappingSession) SetCursor(key recon.CellKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key
	s.cursor = &k
}

// Cursor returns the current cell pointer, if set.
func (s *MappingSession) Cursor() (recon.CellKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return recon.CellKey{}, false
	}
	return *s.cursor, true
}

// Close tears the session down; any deferred auto-advance becomes a no-op.
func (s *MappingSession) Close() {
	if s.Advancer != nil {
		s.Advancer.Close()
	}
}

// SessionStore holds the active mapping sessions.
type SessionStore struct {
	sessions map[string]*MappingSession
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*MappingSession),
	}
}

func (s *SessionStore) Get(sessionID string) (*MappingSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *MappingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

func (s *SessionStore) GetAll() map[string]*MappingSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*MappingSession, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

// Delete removes and closes a session.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	session := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if session != nil {
		session.Close()
	}
}
