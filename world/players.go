package world

import (
	"errors"
	"sort"
	"time"

	"github.com/wfunc/geoworld/models"
)

var ErrPlayerNotFound = errors.New("player not found")

const (
	experiencePerLevel = 100
	strengthPerLevel   = 2
	staminaPerLevel    = 1
	baseStat           = 10
)

// PlayerStore 玩家状态存储. It is owned by the world goroutine and does no
// locking of its own.
type PlayerStore struct {
	players   map[string]*models.Player
	maxHealth int
}

func NewPlayerStore(maxHealth int) *PlayerStore {
	if maxHealth <= 0 {
		maxHealth = 100
	}
	return &PlayerStore{
		players:   make(map[string]*models.Player),
		maxHealth: maxHealth,
	}
}

// Create seeds a fresh record for id at pos, replacing any previous one.
func (s *PlayerStore) Create(id string, pos models.Position, avatar string, now time.Time) *models.Player {
	name := "Player"
	if len(id) >= 4 {
		name = "Player-" + id[:4]
	}
	p := &models.Player{
		ID:        id,
		Name:      name,
		Position:  pos,
		Health:    s.maxHealth,
		MaxHealth: s.maxHealth,
		Level:     1,
		Inventory: []models.Item{},
		Stats: models.Stats{
			Strength:     baseStat,
			Dexterity:    baseStat,
			Intelligence: baseStat,
			Stamina:      baseStat,
		},
		Avatar:   avatar,
		JoinedAt: now,
	}
	s.players[id] = p
	return p
}

func (s *PlayerStore) Get(id string) (*models.Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Mutate applies fn to the player and re-establishes the health bounds.
func (s *PlayerStore) Mutate(id string, fn func(p *models.Player)) (*models.Player, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	fn(p)
	s.clamp(p)
	return p, nil
}

func (s *PlayerStore) Remove(id string) (*models.Player, bool) {
	p, ok := s.players[id]
	if ok {
		delete(s.players, id)
	}
	return p, ok
}

func (s *PlayerStore) Len() int {
	return len(s.players)
}

// All returns the live records ordered by id.
func (s *PlayerStore) All() []*models.Player {
	out := make([]*models.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns deep copies keyed by id.
func (s *PlayerStore) Snapshot() map[string]*models.Player {
	out := make(map[string]*models.Player, len(s.players))
	for id, p := range s.players {
		out[id] = p.Clone()
	}
	return out
}

func (s *PlayerStore) Positions() []models.Position {
	out := make([]models.Position, 0, len(s.players))
	for _, p := range s.All() {
		out = append(out, p.Position)
	}
	return out
}

func (s *PlayerStore) clamp(p *models.Player) {
	p.MaxHealth = s.maxHealth
	if p.Health < 0 {
		p.Health = 0
	}
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
}

// AddExperience grants amount and applies every level-up it pays for. The
// remainder above each threshold carries into the next level. It returns the
// number of levels gained.
func AddExperience(p *models.Player, amount int) int {
	if amount <= 0 {
		return 0
	}
	p.Experience += amount
	gained := 0
	for p.Level > 0 && p.Experience >= p.Level*experiencePerLevel {
		p.Experience -= p.Level * experiencePerLevel
		p.Level++
		p.Stats.Strength += strengthPerLevel
		p.Stats.Stamina += staminaPerLevel
		p.Health = p.MaxHealth
		gained++
	}
	return gained
}
