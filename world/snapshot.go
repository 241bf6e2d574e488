package world

import (
	"errors"

	"github.com/wfunc/geoworld/broadcast"
	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
)

func (w *World) worldUpdate() network.WorldUpdate {
	return network.WorldUpdate{
		Type:       network.MsgWorldUpdate,
		Players:    w.players.Snapshot(),
		WorldItems: w.items.Snapshot(),
	}
}

// broadcastWorld publishes the full snapshot to every connection.
func (w *World) broadcastWorld() {
	if err := w.broadcaster.BroadcastAll(w.worldUpdate()); err != nil {
		logger.Log.Errorf("Broadcast world_update failed: %v", err)
	}
	w.monitor.SetWorldItems(w.items.Len())
}

func (w *World) reply(sessionID string, msg interface{}) {
	if err := w.broadcaster.Notify(sessionID, msg); err != nil && !errors.Is(err, broadcast.ErrSessionNotFound) {
		logger.Log.Warnf("Reply to session %s failed: %v", sessionID, err)
	}
}

// notifyPlayer sends to the player's connection if it still has one.
func (w *World) notifyPlayer(playerID string, msg interface{}) {
	if err := w.broadcaster.NotifyPlayer(playerID, msg); err != nil && !errors.Is(err, broadcast.ErrSessionNotFound) {
		logger.Log.Warnf("Notify player %s failed: %v", playerID, err)
	}
}

// reject answers a request that failed validation.
func (w *World) reject(sessionID, reason string, msg interface{}) {
	w.monitor.IncActionsRejected(reason)
	w.reply(sessionID, msg)
}

func worldItemCopy(item *models.WorldItem) *models.WorldItem {
	c := *item
	c.Item = item.Item.Clone()
	return &c
}
