package world

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/geoworld/catalog"
	"github.com/wfunc/geoworld/config"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
)

type sent struct {
	scope string // all, except, session, player
	to    string
	msg   map[string]interface{}
}

// recordingBroadcaster keeps every message instead of delivering it.
type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sent
}

func (b *recordingBroadcaster) add(scope, to string, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	b.mu.Lock()
	b.sent = append(b.sent, sent{scope: scope, to: to, msg: m})
	b.mu.Unlock()
	return nil
}

func (b *recordingBroadcaster) BroadcastAll(msg interface{}) error {
	return b.add("all", "", msg)
}

func (b *recordingBroadcaster) BroadcastExcept(sessionID string, msg interface{}) error {
	return b.add("except", sessionID, msg)
}

func (b *recordingBroadcaster) Notify(sessionID string, msg interface{}) error {
	return b.add("session", sessionID, msg)
}

func (b *recordingBroadcaster) NotifyPlayer(playerID string, msg interface{}) error {
	return b.add("player", playerID, msg)
}

func (b *recordingBroadcaster) to(scope, to string) []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]interface{}
	for _, s := range b.sent {
		if s.scope == scope && s.to == to {
			out = append(out, s.msg)
		}
	}
	return out
}

func (b *recordingBroadcaster) types(scope, to string) []string {
	var out []string
	for _, m := range b.to(scope, to) {
		out = append(out, m["type"].(string))
	}
	return out
}

// last returns the most recent message of msgType sent to (scope, to), or nil.
func (b *recordingBroadcaster) last(scope, to, msgType string) map[string]interface{} {
	msgs := b.to(scope, to)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == msgType {
			return msgs[i]
		}
	}
	return nil
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	b.sent = nil
	b.mu.Unlock()
}

type scheduled struct {
	delay time.Duration
	cb    func()
}

// manualScheduler only fires timers when the test says so.
type manualScheduler struct {
	mu      sync.Mutex
	nextID  int64
	pending map[int64]scheduled
	history []scheduled
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{pending: make(map[int64]scheduled)}
}

func (s *manualScheduler) AddTimer(delay, interval time.Duration, cb func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.pending[s.nextID] = scheduled{delay: delay, cb: cb}
	s.history = append(s.history, scheduled{delay: delay, cb: cb})
	return s.nextID
}

func (s *manualScheduler) RemoveTimer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// fire runs and forgets timer id.
func (s *manualScheduler) fire(t *testing.T, id int64) {
	t.Helper()
	s.mu.Lock()
	task, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !ok {
		t.Fatalf("timer %d is not pending", id)
	}
	task.cb()
}

func (s *manualScheduler) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []models.GameRecord
}

func (r *recordingRecorder) Record(rec models.GameRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func (r *recordingRecorder) kinds() []models.RecordKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RecordKind
	for _, rec := range r.records {
		out = append(out, rec.Kind)
	}
	return out
}

type fixture struct {
	w     *World
	bc    *recordingBroadcaster
	sched *manualScheduler
	rec   *recordingRecorder
	cat   *catalog.Catalog
	now   time.Time
}

func newFixture(t *testing.T, tweak func(*config.WorldConfig)) *fixture {
	t.Helper()
	cfg, err := config.LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.World.InitialItems = 0
	if tweak != nil {
		tweak(&cfg.World)
	}
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	f := &fixture{
		bc:    &recordingBroadcaster{},
		sched: newManualScheduler(),
		rec:   &recordingRecorder{},
		cat:   cat,
		now:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.w, err = New(Options{
		Config:      cfg.World,
		Catalog:     cat,
		Broadcaster: f.bc,
		Scheduler:   f.sched,
		Recorder:    f.rec,
		Rand:        rand.New(rand.NewSource(42)),
		Now:         func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// join connects a player whose session token is "s-"+playerID.
func (f *fixture) join(playerID string) *models.Player {
	f.w.handleJoin("s-"+playerID, playerID)
	p, _ := f.w.players.Get(playerID)
	return p
}

// send delivers a raw frame from playerID's connection.
func (f *fixture) send(t *testing.T, playerID, format string, args ...interface{}) {
	t.Helper()
	msg, err := network.Decode([]byte(fmt.Sprintf(format, args...)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f.w.handle(Envelope{SessionID: "s-" + playerID, PlayerID: playerID, Message: msg})
}

func (f *fixture) moveTo(playerID string, pos models.Position) {
	f.w.players.Mutate(playerID, func(p *models.Player) { p.Position = pos })
}

func (f *fixture) give(t *testing.T, playerID, templateID, itemID string) models.Item {
	t.Helper()
	item, err := f.cat.CreateItem(templateID, catalog.Overrides{ID: itemID})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	f.w.players.Mutate(playerID, func(p *models.Player) {
		p.Inventory = append(p.Inventory, item)
	})
	return item
}

func (f *fixture) place(t *testing.T, templateID, itemID string, pos models.Position) *models.WorldItem {
	t.Helper()
	item, err := f.cat.CreateItem(templateID, catalog.Overrides{ID: itemID})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	wi := &models.WorldItem{Item: item, Position: pos}
	f.w.items.Add(wi)
	return wi
}

func (f *fixture) player(t *testing.T, id string) *models.Player {
	t.Helper()
	p, ok := f.w.players.Get(id)
	if !ok {
		t.Fatalf("player %s missing", id)
	}
	return p
}

func (f *fixture) anchor() models.Position {
	return f.w.anchor()
}

func offset(p models.Position, dLat, dLng float64) models.Position {
	return models.Position{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}
