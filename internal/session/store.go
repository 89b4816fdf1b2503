// Package session keeps per-session conversation history in process memory.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/lexiqai/voice-relay/internal/observability"
)

// ErrEmptySessionID is returned when a caller-supplied session id is blank.
var ErrEmptySessionID = errors.New("session id must not be empty")

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session is an ordered conversation. Turns are only ever appended in user/agent pairs.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	turns []Turn
}

// Turns returns a copy of the session's history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *Session) appendPair(userText, agentText string) {
	s.mu.Lock()
	s.turns = append(s.turns,
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleAgent, Text: agentText},
	)
	s.mu.Unlock()
}

// Store maps session ids to conversations.
type Store interface {
	GetOrCreate(id string) (*Session, error)
	Append(id, userText, agentText string) error
	History(id string) []Turn
	Len() int
}

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// MemoryStore is a sharded in-memory Store. Sessions never expire.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%shardCount]
}

// GetOrCreate returns the session for id, creating it on first reference.
func (s *MemoryStore) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}
	sh := s.shardFor(id)

	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok = sh.sessions[id]; ok {
		return sess, nil
	}
	sess = &Session{ID: id, CreatedAt: time.Now().UTC()}
	sh.sessions[id] = sess
	observability.RecordSessionCreated()
	return sess, nil
}

// Append adds the user turn and the agent turn as one step.
func (s *MemoryStore) Append(id, userText, agentText string) error {
	sess, err := s.GetOrCreate(id)
	if err != nil {
		return err
	}
	sess.appendPair(userText, agentText)
	return nil
}

// History returns a copy of the turns for id, or nil for an unknown session.
func (s *MemoryStore) History(id string) []Turn {
	sh := s.shardFor(id)
	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return nil
	}
	return sess.Turns()
}

// Len returns the number of known sessions.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// NewTimestampID derives a session id from t with microsecond resolution,
// for example 20240518093015123456.
func NewTimestampID(t time.Time) string {
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}
