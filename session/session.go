// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/wfunc/geoworld/network"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSendQueueFull   = errors.New("send queue full")
	ErrSessionClosed   = errors.New("session closed")
)

const DefaultQueueSize = 64

type Session struct {
	ID         string // opaque session token
	PlayerID   string
	Conn       network.Connection
	CreatedAt  time.Time
	LastActive time.Time

	limiter   *rate.Limiter
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	mutex     sync.RWMutex
}

func NewSession(id, playerID string, conn network.Connection, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	now := time.Now()
	return &Session{
		ID:         id,
		PlayerID:   playerID,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		out:        make(chan []byte, queueSize),
		done:       make(chan struct{}),
	}
}

// SetRateLimit installs an inbound token bucket. perSecond <= 0 disables it.
func (s *Session) SetRateLimit(perSecond float64, burst int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Allow consumes one inbound token and records activity.
func (s *Session) Allow() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActive = time.Now()
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Send queues data for the writer goroutine without blocking.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSendQueueFull
	}
}

// WritePump drains the outbound queue onto the connection until the session
// is closed or a write fails.
func (s *Session) WritePump() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.out:
			if err := s.Conn.Send(data); err != nil {
				s.Close()
				return
			}
		}
	}
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) GetID() string {
	return s.ID
}

// Close stops the writer and closes the connection. Safe to call repeatedly.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

// Session管理器
type Manager struct {
	sessions  map[string]*Session
	byPlayer  map[string]*Session
	queueSize int
	mutex     sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		byPlayer:  make(map[string]*Session),
		queueSize: DefaultQueueSize,
	}
}

// SetQueueSize changes the outbound queue size of sessions created afterwards.
func (m *Manager) SetQueueSize(n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if n > 0 {
		m.queueSize = n
	}
}

// Create binds conn to a fresh token and a freshly minted player identity.
func (m *Manager) Create(conn network.Connection) *Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	sess := NewSession(uuid.New().String(), uuid.New().String(), conn, m.queueSize)
	m.sessions[sess.ID] = sess
	m.byPlayer[sess.PlayerID] = sess
	return sess
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
	if session.PlayerID != "" {
		m.byPlayer[session.PlayerID] = session
	}
}

// Authorize reports whether token is live and bound to targetPlayerID.
func (m *Manager) Authorize(token, targetPlayerID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	sess, ok := m.sessions[token]
	if !ok || targetPlayerID == "" {
		return false
	}
	return sess.PlayerID == targetPlayerID
}

// Destroy unregisters the session. The connection is left to its owner.
func (m *Manager) Destroy(token string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if sess, ok := m.sessions[token]; ok {
		delete(m.byPlayer, sess.PlayerID)
		delete(m.sessions, token)
	}
}

func (m *Manager) Remove(sessionID string) {
	m.Destroy(sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByPlayerID(playerID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.byPlayer[playerID]
	return session, exists
}

// All returns a copy of the live sessions.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
