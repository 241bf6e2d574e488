// services/record_service.go
package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/persistence"
)

const (
	DefaultQueueSize = 1024
	saveTimeout      = 5 * time.Second
)

// RecordService 异步写入游戏记录. Record never blocks: when the queue is full
// the record is dropped and counted.
type RecordService struct {
	db      persistence.Database
	queue   chan models.GameRecord
	wg      sync.WaitGroup
	mutex   sync.RWMutex
	closed  bool
	saved   atomic.Int64
	dropped atomic.Int64
}

func NewRecordService(db persistence.Database, queueSize int) *RecordService {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &RecordService{
		db:    db,
		queue: make(chan models.GameRecord, queueSize),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Record queues rec for storage.
func (s *RecordService) Record(rec models.GameRecord) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
		logger.Log.Warnf("Record queue full, dropping %s record", rec.Kind)
	}
}

func (s *RecordService) loop() {
	defer s.wg.Done()
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := s.db.SaveGameRecord(ctx, &rec)
		cancel()
		if err != nil {
			logger.Log.Errorw("Saving game record failed", "kind", rec.Kind, "player", rec.PlayerID, "error", err)
			continue
		}
		s.saved.Add(1)
	}
}

// Close drains the queue and closes the database.
func (s *RecordService) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mutex.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

func (s *RecordService) Saved() int64 {
	return s.saved.Load()
}

func (s *RecordService) Dropped() int64 {
	return s.dropped.Load()
}
