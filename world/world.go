package world

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/wfunc/geoworld/broadcast"
	"github.com/wfunc/geoworld/catalog"
	"github.com/wfunc/geoworld/config"
	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/monitor"
	"github.com/wfunc/geoworld/network"
	"github.com/wfunc/geoworld/timer"
)

var ErrStopped = errors.New("world stopped")

const (
	defaultCollectDuration = 3 * time.Second
	defaultDropDuration    = time.Second
	defaultAvatar          = "default"
)

// Authorizer checks that a session token is bound to a player.
type Authorizer interface {
	Authorize(token, targetPlayerID string) bool
}

// Recorder receives an audit record for every notable change. Record must
// not block.
type Recorder interface {
	Record(rec models.GameRecord)
}

type Options struct {
	Config      config.WorldConfig
	Catalog     *catalog.Catalog
	Broadcaster broadcast.Broadcaster

	// Sessions authorizes inbound requests. When nil a request may only act
	// for the player bound to the connection that sent it.
	Sessions Authorizer

	// Scheduler must deliver callbacks through World.Post. When nil the world
	// builds a timer.TimerManager that does so.
	Scheduler timer.Scheduler

	Monitor  *monitor.Monitor
	Recorder Recorder
	Rand     *rand.Rand
	Now      func() time.Time
}

// Envelope is one decoded request together with the connection it came from.
type Envelope struct {
	SessionID string
	PlayerID  string
	Message   network.Message
	Received  time.Time
}

type presence struct {
	sessionID string
	playerID  string
}

// Stats is a point-in-time summary of the world.
type Stats struct {
	Players      int       `json:"players"`
	Items        int       `json:"items"`
	ClaimedItems int       `json:"claimedItems"`
	StartedAt    time.Time `json:"startedAt"`
}

// World owns all player and item state. Every mutation happens on the
// goroutine running Run; other goroutines talk to it through channels.
// Joins, leaves and requests are handed over unbuffered so that one
// connection's join, messages and leave are applied in the order sent.
type World struct {
	cfg         config.WorldConfig
	catalog     *catalog.Catalog
	broadcaster broadcast.Broadcaster
	sessions    Authorizer
	scheduler   timer.Scheduler
	ownTimers   *timer.TimerManager
	monitor     *monitor.Monitor
	recorder    Recorder
	rng         *rand.Rand
	now         func() time.Time

	players *PlayerStore
	items   *ItemStore
	avatars map[string]bool

	join    chan presence
	leave   chan presence
	inbox   chan Envelope
	tasks   chan func()
	queries chan func()
	done    chan struct{}

	spawnTimer int64
	startedAt  time.Time
}

func New(opts Options) (*World, error) {
	if opts.Catalog == nil {
		return nil, errors.New("world: catalog is required")
	}
	if opts.Broadcaster == nil {
		return nil, errors.New("world: broadcaster is required")
	}

	w := &World{
		cfg:         opts.Config,
		catalog:     opts.Catalog,
		broadcaster: opts.Broadcaster,
		sessions:    opts.Sessions,
		scheduler:   opts.Scheduler,
		monitor:     opts.Monitor,
		recorder:    opts.Recorder,
		rng:         opts.Rand,
		now:         opts.Now,
		players:     NewPlayerStore(opts.Config.MaxHealth),
		items:       NewItemStore(),
		avatars:     make(map[string]bool),
		join:        make(chan presence),
		leave:       make(chan presence),
		inbox:       make(chan Envelope),
		tasks:       make(chan func(), 256),
		queries:     make(chan func()),
		done:        make(chan struct{}),
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.scheduler == nil {
		w.ownTimers = timer.NewTimerManager(w.Post)
		w.scheduler = w.ownTimers
	}
	for _, a := range opts.Config.Avatars {
		w.avatars[a] = true
	}
	w.startedAt = w.now()
	return w, nil
}

// Run processes joins, leaves, requests and timer callbacks until ctx ends.
func (w *World) Run(ctx context.Context) error {
	defer w.shutdown()

	w.seed()
	w.scheduleSpawn()
	logger.Log.Infof("World running with %d items", w.items.Len())

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("World stopping")
			return nil
		case p := <-w.join:
			w.handleJoin(p.sessionID, p.playerID)
		case p := <-w.leave:
			w.handleLeave(p.sessionID, p.playerID)
		case env := <-w.inbox:
			w.handle(env)
		case fn := <-w.tasks:
			fn()
		case fn := <-w.queries:
			fn()
		}
	}
}

func (w *World) shutdown() {
	close(w.done)
	if w.spawnTimer != 0 {
		w.scheduler.RemoveTimer(w.spawnTimer)
	}
	if w.ownTimers != nil {
		w.ownTimers.Stop()
	}
}

// Done is closed once Run has returned.
func (w *World) Done() <-chan struct{} {
	return w.done
}

// Join seeds a player for a freshly created session.
func (w *World) Join(ctx context.Context, sessionID, playerID string) error {
	return w.enqueue(ctx, w.join, presence{sessionID, playerID})
}

// Leave removes the player and releases everything it held.
func (w *World) Leave(ctx context.Context, sessionID, playerID string) error {
	return w.enqueue(ctx, w.leave, presence{sessionID, playerID})
}

func (w *World) enqueue(ctx context.Context, ch chan presence, p presence) error {
	if w.stopped() {
		return ErrStopped
	}
	select {
	case ch <- p:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit hands a request to the world.
func (w *World) Submit(ctx context.Context, env Envelope) error {
	if w.stopped() {
		return ErrStopped
	}
	select {
	case w.inbox <- env:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Post runs fn on the world goroutine. Work posted after the world stopped
// is dropped.
func (w *World) Post(fn func()) {
	select {
	case w.tasks <- fn:
	case <-w.done:
	}
}

// query runs fn on the world goroutine and waits for it.
func (w *World) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		fn()
		close(finished)
	}
	if w.stopped() {
		return ErrStopped
	}
	select {
	case w.queries <- task:
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := w.query(ctx, func() {
		st = w.stats()
	})
	return st, err
}

func (w *World) stats() Stats {
	st := Stats{
		Players:   w.players.Len(),
		Items:     w.items.Len(),
		StartedAt: w.startedAt,
	}
	for _, item := range w.items.All() {
		if item.Claimed() {
			st.ClaimedItems++
		}
	}
	return st
}

// Player returns a copy of the player's full record.
func (w *World) Player(ctx context.Context, playerID string) (*models.Player, error) {
	var (
		out   *models.Player
		found bool
	)
	err := w.query(ctx, func() {
		if p, ok := w.players.Get(playerID); ok {
			out, found = p.Clone(), true
		}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPlayerNotFound
	}
	return out, nil
}

func (w *World) Profile(ctx context.Context, playerID string) (models.Profile, error) {
	p, err := w.Player(ctx, playerID)
	if err != nil {
		return models.Profile{}, err
	}
	return models.ProfileOf(p), nil
}

func (w *World) anchor() models.Position {
	return models.Position{Lat: w.cfg.AnchorLat, Lng: w.cfg.AnchorLng}
}

func (w *World) defaultAvatar() string {
	if len(w.cfg.Avatars) > 0 {
		return w.cfg.Avatars[0]
	}
	return defaultAvatar
}

func (w *World) handleJoin(sessionID, playerID string) {
	p := w.players.Create(playerID, w.anchor(), w.defaultAvatar(), w.now())
	logger.Log.Infof("Player %s joined (session %s)", playerID, sessionID)

	w.reply(sessionID, network.InitMessage{
		Type:         network.MsgInit,
		PlayerID:     playerID,
		SessionToken: sessionID,
		Player:       p.Clone(),
		Players:      w.players.Snapshot(),
		WorldItems:   w.items.Snapshot(),
		Avatars:      w.avatarList(),
	})
	if err := w.broadcaster.BroadcastExcept(sessionID, network.PlayerEvent{
		Type:     network.MsgPlayerJoined,
		PlayerID: playerID,
		Player:   p.Clone(),
	}); err != nil {
		logger.Log.Errorf("Broadcast player_joined failed: %v", err)
	}
	w.broadcastWorld()

	w.monitor.SetOnlinePlayers(w.players.Len())
	w.record(models.GameRecord{Kind: models.RecordJoin, PlayerID: playerID})
}

func (w *World) handleLeave(sessionID, playerID string) {
	for _, id := range w.items.ReleaseAll(playerID) {
		w.scheduler.RemoveTimer(id)
	}
	if _, ok := w.players.Remove(playerID); !ok {
		return
	}
	logger.Log.Infof("Player %s left (session %s)", playerID, sessionID)

	if err := w.broadcaster.BroadcastAll(network.PlayerEvent{
		Type:     network.MsgPlayerLeft,
		PlayerID: playerID,
	}); err != nil {
		logger.Log.Errorf("Broadcast player_left failed: %v", err)
	}
	w.broadcastWorld()

	w.monitor.SetOnlinePlayers(w.players.Len())
	w.record(models.GameRecord{Kind: models.RecordLeave, PlayerID: playerID})
}

func (w *World) avatarList() []string {
	out := make([]string, len(w.cfg.Avatars))
	copy(out, w.cfg.Avatars)
	return out
}

func (w *World) record(rec models.GameRecord) {
	if w.recorder == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = w.now()
	}
	w.recorder.Record(rec)
}
