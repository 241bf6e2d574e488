package world

import (
	"errors"
	"time"

	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
)

func (w *World) handlePickup(sessionID string, p *models.Player, itemID string) {
	fail := func(reason, text string) {
		w.reject(sessionID, reason, network.CollectionEvent{
			Type: network.MsgCollectionError, ItemID: itemID, Error: text,
		})
	}

	item, ok := w.items.Get(itemID)
	if !ok {
		fail(reasonNotFound, errItemNotFound)
		return
	}
	if !WithinRange(p.Position, item.Position, w.cfg.PickupRange) {
		fail(reasonTooFar, errTooFar)
		return
	}

	duration := w.collectDuration(item.Item)
	now := w.now()
	claimed, err := w.items.BeginCollect(itemID, p.ID, now, now.Add(duration))
	switch {
	case errors.Is(err, ErrItemClaimed):
		fail(reasonClaimed, errClaimedByOther)
		return
	case errors.Is(err, ErrAlreadyCollecting):
		fail(reasonCollecting, errAlreadyCollect)
		return
	case err != nil:
		fail(reasonNotFound, errItemNotFound)
		return
	}

	playerID, claimID := p.ID, claimed.ClaimID
	claimed.TimerID = w.scheduler.AddTimer(duration, 0, func() {
		w.completeCollection(itemID, playerID, claimID)
	})

	w.reply(sessionID, network.CollectionEvent{
		Type:     network.MsgCollectionStarted,
		ItemID:   itemID,
		Duration: duration.Milliseconds(),
	})
}

func (w *World) handleCancel(sessionID string, p *models.Player, itemID string) {
	timerID, err := w.items.Cancel(itemID, p.ID)
	if err != nil {
		text := errNotCollecting
		if errors.Is(err, ErrItemNotFound) {
			text = errItemNotFound
		}
		w.reject(sessionID, reasonNotFound, network.CollectionEvent{
			Type: network.MsgCollectionError, ItemID: itemID, Error: text,
		})
		return
	}
	if timerID != 0 {
		w.scheduler.RemoveTimer(timerID)
	}
	w.reply(sessionID, network.CollectionEvent{
		Type:   network.MsgCollectionCanceled,
		ItemID: itemID,
	})
}

// completeCollection runs when a pickup timer fires. It applies only if the
// claim it was armed for is still the item's current claim; anything else
// (cancel, disconnect, a newer claim) makes it a no-op.
func (w *World) completeCollection(itemID, playerID string, claimID uint64) {
	item, ok := w.items.Complete(itemID, playerID, claimID)
	if !ok {
		logger.Log.Debugf("Ignoring stale collection of %s by %s", itemID, playerID)
		return
	}

	p, err := w.players.Mutate(playerID, func(p *models.Player) {
		if value, ok := item.Stats[models.StatValue]; ok && item.Type == models.ItemCollectible {
			p.Currency += value
		} else if p.FindItem(item.ID) < 0 {
			p.Inventory = append(p.Inventory, item.Item.Clone())
		}
		AddExperience(p, w.cfg.CollectExperience)
	})
	if err != nil {
		// holder vanished without releasing; put the item back
		w.items.Add(item)
		return
	}

	collected := item.Item.Clone()
	w.notifyPlayer(playerID, network.CollectionEvent{
		Type:     network.MsgCollectionComplete,
		ItemID:   itemID,
		Item:     &collected,
		Currency: p.Currency,
	})
	w.broadcastWorld()

	w.monitor.IncCollectionsCompleted()
	w.record(models.GameRecord{
		Kind:     models.RecordCollect,
		PlayerID: playerID,
		ItemID:   itemID,
		Detail:   map[string]interface{}{"template": item.TemplateID, "type": string(item.Type)},
	})
}

// collectDuration is the item's own duration, else the configured one for
// its type.
func (w *World) collectDuration(item models.Item) time.Duration {
	if item.CollectDuration > 0 {
		return time.Duration(item.CollectDuration) * time.Millisecond
	}
	return w.typeDuration(item.Type)
}

func (w *World) typeDuration(typ models.ItemType) time.Duration {
	if d, ok := w.cfg.CollectDurations[string(typ)]; ok && d > 0 {
		return d
	}
	return defaultCollectDuration
}
