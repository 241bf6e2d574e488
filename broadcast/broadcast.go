// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/network"
	"github.com/wfunc/geoworld/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastAll(msg interface{}) error
	BroadcastExcept(sessionID string, msg interface{}) error
	Notify(sessionID string, msg interface{}) error
	NotifyPlayer(playerID string, msg interface{}) error
}

// SessionBroadcaster 基于会话管理器的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
	}
}

func (b *SessionBroadcaster) BroadcastAll(msg interface{}) error {
	return b.BroadcastExcept("", msg)
}

func (b *SessionBroadcaster) BroadcastExcept(sessionID string, msg interface{}) error {
	data, err := network.Encode(msg)
	if err != nil {
		return err
	}

	for _, s := range b.sessionManager.All() {
		if s.ID == sessionID {
			continue
		}
		b.deliver(s, data)
	}
	return nil
}

func (b *SessionBroadcaster) Notify(sessionID string, msg interface{}) error {
	s, ok := b.sessionManager.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	data, err := network.Encode(msg)
	if err != nil {
		return err
	}
	return b.deliver(s, data)
}

func (b *SessionBroadcaster) NotifyPlayer(playerID string, msg interface{}) error {
	s, ok := b.sessionManager.GetByPlayerID(playerID)
	if !ok {
		return ErrSessionNotFound
	}
	data, err := network.Encode(msg)
	if err != nil {
		return err
	}
	return b.deliver(s, data)
}

// deliver enqueues data on one session. A session that cannot keep up is
// closed; its read loop then reports the disconnect.
func (b *SessionBroadcaster) deliver(s *session.Session, data []byte) error {
	err := s.Send(data)
	if errors.Is(err, session.ErrSendQueueFull) {
		logger.Log.Warnf("Session %s send queue full, closing connection", s.ID)
		s.Close()
	}
	return err
}
