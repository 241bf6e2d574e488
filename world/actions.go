package world

import (
	"fmt"
	"math"
	"time"

	"github.com/wfunc/geoworld/catalog"
	"github.com/wfunc/geoworld/logger"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
)

// Error texts shown to clients.
const (
	errItemNotFound   = "Item not found"
	errTooFar         = "Too far away"
	errClaimedByOther = "Item is being collected by another player"
	errAlreadyCollect = "Already collecting this item"
	errNotCollecting  = "Not collecting this item"
	errWeaponNotFound = "Weapon not found"
	errNotAWeapon     = "Item is not a weapon"
	errNotAConsumable = "Item is not a consumable"
	errTargetNotFound = "Target not found"
	errAttackSelf     = "Cannot attack yourself"
	errCannotDrop     = "Item cannot be dropped"
	errPlayerNotFound = "Player not found"
	errUnknownAvatar  = "Unknown avatar"
)

const (
	defaultAttackDamage = 10
	defaultHealAmount   = 20
	maxRequestAmount    = 1_000_000
)

// Rejection reasons reported to metrics.
const (
	reasonNotFound     = "not_found"
	reasonTooFar       = "too_far"
	reasonClaimed      = "claimed"
	reasonCollecting   = "already_collecting"
	reasonInvalidItem  = "invalid_item"
	reasonSelfTarget   = "self_target"
	reasonAvatar       = "unknown_avatar"
	reasonUnauthorized = "unauthorized"
)

// handle authorizes and dispatches one request. Every type except
// view_profile may change shared state and so ends with a world_update,
// whether or not the action succeeded.
func (w *World) handle(env Envelope) {
	msg := env.Message
	msgType := msg.MessageType()
	w.monitor.IncMessagesReceived(msgType)
	if !env.Received.IsZero() {
		defer func() {
			w.monitor.ObserveMessageLatency(msgType, w.now().Sub(env.Received))
		}()
	}

	if m, ok := msg.(*network.ViewProfile); ok {
		w.handleViewProfile(env.SessionID, m)
		return
	}

	target := msg.Target()
	if target == "" {
		target = env.PlayerID
	}
	if !w.authorize(env, target) {
		logger.Log.Warnw("Dropping unauthorized request",
			"session", env.SessionID, "target", target, "type", msgType)
		w.monitor.IncActionsRejected(reasonUnauthorized)
		return
	}
	p, ok := w.players.Get(target)
	if !ok {
		logger.Log.Warnf("Request %s for unknown player %s", msgType, target)
		return
	}

	switch m := msg.(type) {
	case *network.UpdatePosition:
		w.handleUpdatePosition(p, m)
	case *network.ChatMessage:
		w.handleChat(p, m)
	case *network.PickupItem:
		w.handlePickup(env.SessionID, p, m.ItemID)
	case *network.CancelCollection:
		w.handleCancel(env.SessionID, p, m.ItemID)
	case *network.UseItem:
		w.handleUseItem(env.SessionID, p, m.ItemID)
	case *network.AttackPlayer:
		w.handleAttack(env.SessionID, p, m)
	case *network.HealPlayer:
		w.handleHeal(env.SessionID, p, m)
	case *network.DropItem:
		w.handleDrop(env.SessionID, p, m.ItemID)
	case *network.UpdateProfile:
		w.handleUpdateProfile(env.SessionID, p, m)
	case *network.UpdateAvatar:
		w.handleUpdateAvatar(env.SessionID, p, m)
	default:
		logger.Log.Warnf("Unhandled message type %s", msgType)
		return
	}
	w.broadcastWorld()
}

func (w *World) authorize(env Envelope, target string) bool {
	if w.sessions == nil {
		return target == env.PlayerID
	}
	return w.sessions.Authorize(env.SessionID, target)
}

func (w *World) handleUpdatePosition(p *models.Player, m *network.UpdatePosition) {
	pos := *m.Position
	w.players.Mutate(p.ID, func(p *models.Player) {
		p.Position = pos
	})
}

func (w *World) handleChat(p *models.Player, m *network.ChatMessage) {
	text := truncate(*m.Message, maxChatLength)
	w.players.Mutate(p.ID, func(p *models.Player) {
		p.LastMessage = text
	})
}

func (w *World) handleUseItem(sessionID string, p *models.Player, itemID string) {
	idx := p.FindItem(itemID)
	if idx < 0 {
		w.reject(sessionID, reasonNotFound, network.Failure{
			Type: network.MsgUseItemFailed, ItemID: itemID, Error: errItemNotFound,
		})
		return
	}
	item := p.Inventory[idx]

	var effect string
	consumed := true
	w.players.Mutate(p.ID, func(p *models.Player) {
		switch item.Type {
		case models.ItemConsumable:
			heal := item.Stat(models.StatHeal, w.defaultHeal())
			p.Health += heal
			effect = fmt.Sprintf("healed %d", heal)
		case models.ItemWeapon:
			p.EquippedWeapon = item.ID
			effect = "weapon ready"
			consumed = false
		case models.ItemArmor:
			def := item.Stat(models.StatDefense, 0)
			p.Defense += def
			effect = fmt.Sprintf("defense +%d", def)
		default:
			effect = "used"
		}
		if consumed {
			p.RemoveItem(item.ID)
		}
	})

	w.reply(sessionID, network.ItemUsed{
		Type:     network.MsgItemUsed,
		ItemID:   item.ID,
		ItemType: item.Type,
		Effect:   effect,
		Consumed: consumed,
		Player:   p.Clone(),
	})
}

func (w *World) handleAttack(sessionID string, actor *models.Player, m *network.AttackPlayer) {
	fail := func(reason, text string) {
		w.reject(sessionID, reason, network.Failure{
			Type: network.MsgAttackFailed, ItemID: m.WeaponID, TargetPlayerID: m.TargetPlayerID, Error: text,
		})
	}

	idx := actor.FindItem(m.WeaponID)
	if idx < 0 {
		fail(reasonNotFound, errWeaponNotFound)
		return
	}
	weapon := actor.Inventory[idx]
	if weapon.Type != models.ItemWeapon {
		fail(reasonInvalidItem, errNotAWeapon)
		return
	}
	if m.TargetPlayerID == actor.ID {
		fail(reasonSelfTarget, errAttackSelf)
		return
	}
	target, ok := w.players.Get(m.TargetPlayerID)
	if !ok {
		fail(reasonNotFound, errTargetNotFound)
		return
	}
	if !WithinRange(actor.Position, target.Position, w.cfg.AttackRange) {
		fail(reasonTooFar, errTooFar)
		return
	}

	damage := requestAmount(m.Damage, weapon.Stat(models.StatDamage, w.defaultDamage()))
	damage -= target.Defense
	if damage < 0 {
		damage = 0
	}

	w.players.Mutate(target.ID, func(t *models.Player) {
		t.Health -= damage
	})
	w.players.Mutate(actor.ID, func(a *models.Player) {
		if w.cfg.ConsumeWeaponOnAttack {
			a.RemoveItem(weapon.ID)
		}
		AddExperience(a, w.cfg.AttackExperience)
	})

	result := network.AttackResult{
		Type:           network.MsgAttackSuccess,
		AttackerID:     actor.ID,
		TargetPlayerID: target.ID,
		WeaponID:       weapon.ID,
		Damage:         damage,
		TargetHealth:   target.Health,
		Defeated:       target.Health == 0,
	}
	w.reply(sessionID, result)
	result.Type = network.MsgAttacked
	w.notifyPlayer(target.ID, result)

	w.record(models.GameRecord{
		Kind:     models.RecordAttack,
		PlayerID: actor.ID,
		TargetID: target.ID,
		ItemID:   weapon.ID,
		Detail:   map[string]interface{}{"damage": damage, "target_health": target.Health},
	})
}

func (w *World) handleHeal(sessionID string, actor *models.Player, m *network.HealPlayer) {
	fail := func(reason, text string) {
		w.reject(sessionID, reason, network.Failure{
			Type: network.MsgHealFailed, ItemID: m.ItemID, TargetPlayerID: m.TargetPlayerID, Error: text,
		})
	}

	idx := actor.FindItem(m.ItemID)
	if idx < 0 {
		fail(reasonNotFound, errItemNotFound)
		return
	}
	item := actor.Inventory[idx]
	if item.Type != models.ItemConsumable {
		fail(reasonInvalidItem, errNotAConsumable)
		return
	}
	target, ok := w.players.Get(m.TargetPlayerID)
	if !ok {
		fail(reasonNotFound, errTargetNotFound)
		return
	}
	if !WithinRange(actor.Position, target.Position, w.cfg.HealRange) {
		fail(reasonTooFar, errTooFar)
		return
	}

	heal := requestAmount(m.HealAmount, item.Stat(models.StatHeal, w.defaultHeal()))
	before := target.Health
	w.players.Mutate(target.ID, func(t *models.Player) {
		t.Health += heal
	})
	applied := target.Health - before
	w.players.Mutate(actor.ID, func(a *models.Player) {
		a.RemoveItem(item.ID)
		if target.ID != actor.ID {
			AddExperience(a, w.cfg.HealExperience)
		}
	})

	result := network.HealResult{
		Type:           network.MsgHealSuccess,
		HealerID:       actor.ID,
		TargetPlayerID: target.ID,
		ItemID:         item.ID,
		Amount:         applied,
		TargetHealth:   target.Health,
	}
	w.reply(sessionID, result)
	if target.ID != actor.ID {
		result.Type = network.MsgHealed
		w.notifyPlayer(target.ID, result)
	}

	w.record(models.GameRecord{
		Kind:     models.RecordHeal,
		PlayerID: actor.ID,
		TargetID: target.ID,
		ItemID:   item.ID,
		Detail:   map[string]interface{}{"amount": applied, "target_health": target.Health},
	})
}

func (w *World) handleDrop(sessionID string, actor *models.Player, itemID string) {
	idx := actor.FindItem(itemID)
	if idx < 0 {
		w.reject(sessionID, reasonNotFound, network.Failure{
			Type: network.MsgDropFailed, ItemID: itemID, Error: errItemNotFound,
		})
		return
	}
	item := actor.Inventory[idx]

	fresh, err := w.catalog.CreateItem(item.TemplateID, catalog.Overrides{
		Stats:           item.Stats,
		CollectDuration: w.dropDuration().Milliseconds(),
	})
	if err != nil {
		logger.Log.Warnf("Cannot re-create dropped item %s (%s): %v", item.ID, item.TemplateID, err)
		w.reject(sessionID, reasonInvalidItem, network.Failure{
			Type: network.MsgDropFailed, ItemID: itemID, Error: errCannotDrop,
		})
		return
	}

	w.players.Mutate(actor.ID, func(a *models.Player) {
		a.RemoveItem(item.ID)
	})
	dropped := &models.WorldItem{Item: fresh, Position: actor.Position}
	w.items.Add(dropped)

	w.reply(sessionID, network.ItemDropped{
		Type:   network.MsgItemDropped,
		ItemID: item.ID,
		Item:   worldItemCopy(dropped),
	})
	if err := w.broadcaster.BroadcastAll(network.ItemEvent{
		Type: network.MsgItemSpawned,
		Item: worldItemCopy(dropped),
	}); err != nil {
		logger.Log.Errorf("Broadcast item_spawned failed: %v", err)
	}

	w.monitor.IncItemsSpawned()
	w.record(models.GameRecord{
		Kind:     models.RecordDrop,
		PlayerID: actor.ID,
		ItemID:   dropped.ID,
		Detail:   map[string]interface{}{"from_item": item.ID, "template": item.TemplateID},
	})
}

func (w *World) handleViewProfile(sessionID string, m *network.ViewProfile) {
	p, ok := w.players.Get(m.ProfilePlayerID)
	if !ok {
		w.reject(sessionID, reasonNotFound, network.Failure{
			Type: network.MsgProfileError, TargetPlayerID: m.ProfilePlayerID, Error: errPlayerNotFound,
		})
		return
	}
	w.reply(sessionID, network.ProfileData{
		Type:    network.MsgProfileData,
		Profile: models.ProfileOf(p),
	})
}

func (w *World) handleUpdateProfile(sessionID string, p *models.Player, m *network.UpdateProfile) {
	if m.Name != nil {
		if name := SanitizeName(*m.Name); name != "" {
			w.players.Mutate(p.ID, func(p *models.Player) {
				p.Name = name
			})
		}
	}
	w.reply(sessionID, network.ProfileData{
		Type:    network.MsgProfileData,
		Profile: models.ProfileOf(p),
	})
}

func (w *World) handleUpdateAvatar(sessionID string, p *models.Player, m *network.UpdateAvatar) {
	if !w.avatars[m.Avatar] {
		w.reject(sessionID, reasonAvatar, network.Failure{
			Type: network.MsgAvatarError, Error: errUnknownAvatar,
		})
		return
	}
	w.players.Mutate(p.ID, func(p *models.Player) {
		p.Avatar = m.Avatar
	})
}

// requestAmount prefers a client supplied amount over def. Negative amounts
// count as zero.
func requestAmount(v *float64, def int) int {
	if v == nil {
		return def
	}
	f := math.Trunc(*v)
	switch {
	case f < 0:
		return 0
	case f > maxRequestAmount:
		return maxRequestAmount
	}
	return int(f)
}

func (w *World) defaultDamage() int {
	if w.cfg.DefaultDamage > 0 {
		return w.cfg.DefaultDamage
	}
	return defaultAttackDamage
}

func (w *World) defaultHeal() int {
	if w.cfg.DefaultHeal > 0 {
		return w.cfg.DefaultHeal
	}
	return defaultHealAmount
}

func (w *World) dropDuration() time.Duration {
	if w.cfg.DropCollectDuration > 0 {
		return w.cfg.DropCollectDuration
	}
	return defaultDropDuration
}
