package world

import (
	"errors"
	"time"

	"github.com/wfunc/geoworld/catalog"
	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
)

const (
	defaultSpawnMin    = 30 * time.Second
	defaultSpawnMax    = 60 * time.Second
	defaultSpawnRadius = 0.002
)

// seed places the initial items around the anchor.
func (w *World) seed() {
	for i := 0; i < w.cfg.InitialItems; i++ {
		if _, err := w.spawnItem(w.anchor()); err != nil {
			logger.Log.Errorf("Seeding world items failed: %v", err)
			return
		}
	}
}

func (w *World) scheduleSpawn() {
	w.spawnTimer = w.scheduler.AddTimer(w.spawnDelay(), 0, w.spawnTick)
}

// spawnTick places one item near the players and arms the next tick. The
// cycle keeps going for as long as the world runs.
func (w *World) spawnTick() {
	w.spawnTimer = 0
	defer w.scheduleSpawn()

	center := centroid(w.players.Positions(), w.anchor())
	item, err := w.spawnItem(center)
	if err != nil {
		logger.Log.Errorf("Spawning item failed: %v", err)
		return
	}
	logger.Log.Debugf("Spawned %s (%s) at %.5f,%.5f", item.ID, item.TemplateID, item.Position.Lat, item.Position.Lng)

	if err := w.broadcaster.BroadcastAll(network.ItemEvent{
		Type: network.MsgItemSpawned,
		Item: worldItemCopy(item),
	}); err != nil {
		logger.Log.Errorf("Broadcast item_spawned failed: %v", err)
	}
	w.broadcastWorld()
}

func (w *World) spawnDelay() time.Duration {
	lo, hi := w.cfg.SpawnMinInterval, w.cfg.SpawnMaxInterval
	if lo <= 0 {
		lo = defaultSpawnMin
	}
	if hi <= 0 {
		hi = defaultSpawnMax
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(w.rng.Int63n(int64(hi-lo)+1))
}

// spawnItem creates a random item within the spawn radius of center.
func (w *World) spawnItem(center models.Position) (*models.WorldItem, error) {
	types := w.catalog.Types()
	if len(types) == 0 {
		return nil, errors.New("catalog has no item types")
	}
	typ := types[w.rng.Intn(len(types))]
	templateID, err := w.catalog.Random(w.rng, typ)
	if err != nil {
		return nil, err
	}
	item, err := w.catalog.CreateItem(templateID, catalog.Overrides{})
	if err != nil {
		return nil, err
	}
	if item.CollectDuration <= 0 {
		item.CollectDuration = w.typeDuration(typ).Milliseconds()
	}

	r := w.cfg.SpawnRadius
	if r <= 0 {
		r = defaultSpawnRadius
	}
	placed := &models.WorldItem{
		Item: item,
		Position: models.Position{
			Lat: center.Lat + (w.rng.Float64()*2-1)*r,
			Lng: center.Lng + (w.rng.Float64()*2-1)*r,
		},
	}
	w.items.Add(placed)

	w.monitor.IncItemsSpawned()
	w.monitor.SetWorldItems(w.items.Len())
	w.record(models.GameRecord{
		Kind:   models.RecordSpawn,
		ItemID: placed.ID,
		Detail: map[string]interface{}{"template": templateID, "lat": placed.Position.Lat, "lng": placed.Position.Lng},
	})
	return placed, nil
}
