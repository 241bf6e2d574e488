package world

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wfunc/geoworld/config"
	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
	"github.com/wfunc/geoworld/session"
)

func TestJoin_SendsInitAndNotifiesPeers(t *testing.T) {
	f := newFixture(t, nil)
	f.place(t, "gold_coin", "coin-1", f.anchor())
	f.join("alice")
	f.bc.reset()

	p := f.join("bob")
	if p.Health != 100 || p.MaxHealth != 100 || p.Level != 1 || p.Avatar != "default" {
		t.Errorf("Unexpected seeded player %+v", p)
	}

	init := f.bc.last("session", "s-bob", network.MsgInit)
	if init == nil {
		t.Fatal("joiner did not receive init")
	}
	if init["playerId"] != "bob" || init["sessionToken"] != "s-bob" {
		t.Errorf("Unexpected identity in init: %v", init)
	}
	if players := init["players"].(map[string]interface{}); len(players) != 2 {
		t.Errorf("Expected 2 players in init, got %d", len(players))
	}
	if items := init["worldItems"].([]interface{}); len(items) != 1 {
		t.Errorf("Expected 1 world item in init, got %d", len(items))
	}
	if avatars := init["avatars"].([]interface{}); len(avatars) == 0 {
		t.Error("init should list avatars")
	}

	if got := f.bc.types("except", "s-bob"); len(got) != 1 || got[0] != network.MsgPlayerJoined {
		t.Errorf("Expected player_joined to peers, got %v", got)
	}
	if f.bc.last("all", "", network.MsgWorldUpdate) == nil {
		t.Error("join should end with a world_update")
	}
}

func TestLeave_RemovesPlayerAndReleasesClaims(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.place(t, "rusty_sword", "sword", f.anchor())

	f.send(t, "alice", `{"type":"pickup_item","itemId":"sword"}`)
	item, _ := f.w.items.Get("sword")
	timerID := item.TimerID
	if !f.sched.has(timerID) {
		t.Fatal("pickup should arm a timer")
	}

	f.bc.reset()
	f.w.handleLeave("s-alice", "alice")

	if _, ok := f.w.players.Get("alice"); ok {
		t.Error("player still present after leave")
	}
	if item.Claimed() {
		t.Error("claim survived its holder's disconnect")
	}
	if f.sched.has(timerID) {
		t.Error("completion timer survived disconnect")
	}
	if got := f.bc.types("all", ""); len(got) != 2 || got[0] != network.MsgPlayerLeft || got[1] != network.MsgWorldUpdate {
		t.Errorf("Expected player_left then world_update, got %v", got)
	}

	f.send(t, "bob", `{"type":"pickup_item","itemId":"sword"}`)
	if f.bc.last("session", "s-bob", network.MsgCollectionStarted) == nil {
		t.Error("released item should be collectable by others")
	}
}

func TestPickup_CompletesIntoInventory(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.place(t, "rusty_sword", "sword", offset(f.anchor(), 0.0003, 0.0004))

	f.send(t, "alice", `{"type":"pickup_item","itemId":"sword"}`)
	started := f.bc.last("session", "s-alice", network.MsgCollectionStarted)
	if started == nil {
		t.Fatalf("Expected collection_started, got %v", f.bc.types("session", "s-alice"))
	}
	if started["duration"].(float64) != 5000 {
		t.Errorf("Expected weapon duration 5000ms, got %v", started["duration"])
	}
	item, _ := f.w.items.Get("sword")
	if item.ClaimedBy != "alice" {
		t.Fatal("item should be claimed by alice")
	}

	f.bc.reset()
	f.sched.fire(t, item.TimerID)

	done := f.bc.last("player", "alice", network.MsgCollectionComplete)
	if done == nil || done["itemId"] != "sword" {
		t.Fatalf("Expected collection_complete, got %v", done)
	}
	if _, ok := f.w.items.Get("sword"); ok {
		t.Error("collected item still in the world")
	}
	p := f.player(t, "alice")
	if p.FindItem("sword") < 0 {
		t.Error("collected item not in inventory")
	}
	if p.Experience != 20 {
		t.Errorf("Expected 20 experience for a collection, got %d", p.Experience)
	}
	if f.bc.last("all", "", network.MsgWorldUpdate) == nil {
		t.Error("completion should broadcast world_update")
	}
}

func TestPickup_CollectibleCreditsCurrency(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.place(t, "gemstone", "gem", f.anchor())

	f.send(t, "alice", `{"type":"pickup_item","itemId":"gem"}`)
	item, _ := f.w.items.Get("gem")
	f.sched.fire(t, item.TimerID)

	p := f.player(t, "alice")
	if p.Currency != 50 {
		t.Errorf("Expected 50 currency, got %d", p.Currency)
	}
	if len(p.Inventory) != 0 {
		t.Errorf("valued collectibles should not enter the inventory, got %v", p.Inventory)
	}
}

func TestPickup_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.place(t, "rusty_sword", "far", offset(f.anchor(), 0.01, 0))

	f.send(t, "alice", `{"type":"pickup_item","itemId":"missing"}`)
	if msg := f.bc.last("session", "s-alice", network.MsgCollectionError); msg == nil || msg["error"] != "Item not found" {
		t.Errorf("Expected Item not found, got %v", msg)
	}

	f.send(t, "alice", `{"type":"pickup_item","itemId":"far"}`)
	if msg := f.bc.last("session", "s-alice", network.MsgCollectionError); msg == nil || msg["error"] != "Too far away" {
		t.Errorf("Expected Too far away, got %v", msg)
	}
	if item, _ := f.w.items.Get("far"); item.Claimed() {
		t.Error("a rejected pickup must not claim")
	}
	if f.sched.count() != 0 {
		t.Error("a rejected pickup must not arm a timer")
	}
}

func TestPickup_SimultaneousRequests(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.place(t, "health_potion", "potion", f.anchor())

	f.send(t, "alice", `{"type":"pickup_item","itemId":"potion"}`)
	f.send(t, "bob", `{"type":"pickup_item","itemId":"potion"}`)
	f.send(t, "alice", `{"type":"pickup_item","itemId":"potion"}`)

	if f.bc.last("session", "s-alice", network.MsgCollectionStarted) == nil {
		t.Error("first requester should win")
	}
	if msg := f.bc.last("session", "s-bob", network.MsgCollectionError); msg == nil || msg["error"] != "Item is being collected by another player" {
		t.Errorf("second requester should lose, got %v", msg)
	}
	if msg := f.bc.last("session", "s-alice", network.MsgCollectionError); msg == nil || msg["error"] != "Already collecting this item" {
		t.Errorf("repeat request should be rejected, got %v", msg)
	}
	if f.sched.count() != 1 {
		t.Errorf("Expected exactly one armed timer, got %d", f.sched.count())
	}
}

func TestCancel_ThenStaleTimerIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.place(t, "rusty_sword", "sword", f.anchor())

	f.send(t, "alice", `{"type":"pickup_item","itemId":"sword"}`)
	staleCallback := f.sched.history[len(f.sched.history)-1].cb

	f.send(t, "alice", `{"type":"cancel_collection","itemId":"sword"}`)
	if f.bc.last("session", "s-alice", network.MsgCollectionCanceled) == nil {
		t.Fatal("Expected collection_canceled")
	}
	if f.sched.count() != 0 {
		t.Error("cancel should remove the completion timer")
	}

	// reclaim, then let the first timer fire late
	f.send(t, "alice", `{"type":"pickup_item","itemId":"sword"}`)
	staleCallback()

	item, ok := f.w.items.Get("sword")
	if !ok || item.ClaimedBy != "alice" {
		t.Fatal("stale timer must not complete the newer claim")
	}
	if f.player(t, "alice").FindItem("sword") >= 0 {
		t.Error("stale timer granted the item")
	}
}

func TestCancel_NotHolder(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.place(t, "rusty_sword", "sword", f.anchor())
	f.send(t, "alice", `{"type":"pickup_item","itemId":"sword"}`)

	f.send(t, "bob", `{"type":"cancel_collection","itemId":"sword"}`)
	if msg := f.bc.last("session", "s-bob", network.MsgCollectionError); msg == nil || msg["error"] != "Not collecting this item" {
		t.Errorf("Expected rejection, got %v", msg)
	}
	if item, _ := f.w.items.Get("sword"); item.ClaimedBy != "alice" {
		t.Error("someone else's cancel released the claim")
	}
}

func TestUseItem(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.w.players.Mutate("alice", func(p *models.Player) { p.Health = 50 })
	f.give(t, "alice", "health_potion", "potion")
	f.give(t, "alice", "rusty_sword", "sword")
	f.give(t, "alice", "iron_shield", "shield")

	f.send(t, "alice", `{"type":"use_item","itemId":"potion"}`)
	f.send(t, "alice", `{"type":"use_item","itemId":"sword"}`)
	f.send(t, "alice", `{"type":"use_item","itemId":"shield"}`)

	p := f.player(t, "alice")
	if p.Health != 70 {
		t.Errorf("Expected potion to heal to 70, got %d", p.Health)
	}
	if p.FindItem("potion") >= 0 || p.FindItem("shield") >= 0 {
		t.Error("consumables and armor are consumed on use")
	}
	if p.FindItem("sword") < 0 || p.EquippedWeapon != "sword" {
		t.Error("weapons are equipped, not consumed")
	}
	if p.Defense != 6 {
		t.Errorf("Expected defense 6, got %d", p.Defense)
	}

	f.send(t, "alice", `{"type":"use_item","itemId":"nothing"}`)
	if msg := f.bc.last("session", "s-alice", network.MsgUseItemFailed); msg == nil || msg["error"] != "Item not found" {
		t.Errorf("Expected use_item_failed, got %v", msg)
	}
}

func TestAttack(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.give(t, "alice", "rusty_sword", "sword")
	f.moveTo("bob", offset(f.anchor(), 0.0001, 0))

	f.send(t, "alice", `{"type":"attack_player","targetPlayerId":"bob","weaponId":"sword"}`)

	if got := f.player(t, "bob").Health; got != 88 {
		t.Errorf("Expected 12 damage from the sword, bob at %d", got)
	}
	if msg := f.bc.last("session", "s-alice", network.MsgAttackSuccess); msg == nil || msg["damage"].(float64) != 12 {
		t.Errorf("Expected attack_success, got %v", msg)
	}
	if f.bc.last("player", "bob", network.MsgAttacked) == nil {
		t.Error("target should be told it was attacked")
	}
	a := f.player(t, "alice")
	if a.FindItem("sword") < 0 {
		t.Error("weapon consumed although consume_weapon_on_attack is off")
	}
	if a.Experience != 10 {
		t.Errorf("Expected 10 experience for an attack, got %d", a.Experience)
	}
}

func TestAttack_DamageBounds(t *testing.T) {
	f := newFixture(t, func(c *config.WorldConfig) { c.ConsumeWeaponOnAttack = true })
	f.join("alice")
	f.join("bob")
	f.give(t, "alice", "war_axe", "axe")
	f.give(t, "alice", "war_axe", "axe2")
	f.w.players.Mutate("bob", func(p *models.Player) { p.Defense = 5 })

	f.send(t, "alice", `{"type":"attack_player","targetPlayerId":"bob","weaponId":"axe","damage":-40}`)
	if got := f.player(t, "bob").Health; got != 100 {
		t.Errorf("negative damage must not heal, bob at %d", got)
	}
	if f.player(t, "alice").FindItem("axe") >= 0 {
		t.Error("weapon should be consumed when configured")
	}

	f.send(t, "alice", `{"type":"attack_player","targetPlayerId":"bob","weaponId":"axe2","damage":5000}`)
	msg := f.bc.last("session", "s-alice", network.MsgAttackSuccess)
	if got := f.player(t, "bob").Health; got != 0 {
		t.Errorf("health must clamp at 0, got %d", got)
	}
	if msg == nil || msg["defeated"] != true {
		t.Errorf("Expected defeated, got %v", msg)
	}
}

func TestAttack_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.give(t, "alice", "rusty_sword", "sword")
	f.give(t, "alice", "bandage", "bandage")
	f.moveTo("bob", offset(f.anchor(), 0.001, 0))

	cases := []struct {
		frame, want string
	}{
		{`{"type":"attack_player","targetPlayerId":"bob","weaponId":"none"}`, "Weapon not found"},
		{`{"type":"attack_player","targetPlayerId":"bob","weaponId":"bandage"}`, "Item is not a weapon"},
		{`{"type":"attack_player","targetPlayerId":"alice","weaponId":"sword"}`, "Cannot attack yourself"},
		{`{"type":"attack_player","targetPlayerId":"carol","weaponId":"sword"}`, "Target not found"},
		{`{"type":"attack_player","targetPlayerId":"bob","weaponId":"sword"}`, "Too far away"},
	}
	for _, c := range cases {
		f.send(t, "alice", "%s", c.frame)
		msg := f.bc.last("session", "s-alice", network.MsgAttackFailed)
		if msg == nil || msg["error"] != c.want {
			t.Errorf("%s: Expected %q, got %v", c.frame, c.want, msg)
		}
	}
	if f.player(t, "bob").Health != 100 {
		t.Error("rejected attacks must not change state")
	}
}

func TestHeal_ClampsAtMax(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.w.players.Mutate("bob", func(p *models.Player) { p.Health = 90 })
	f.give(t, "alice", "health_potion", "potion")

	f.send(t, "alice", `{"type":"heal_player","targetPlayerId":"bob","itemId":"potion"}`)

	if got := f.player(t, "bob").Health; got != 100 {
		t.Errorf("Expected bob clamped to 100, got %d", got)
	}
	a := f.player(t, "alice")
	if a.FindItem("potion") >= 0 {
		t.Error("heal item should be consumed")
	}
	if a.Experience != 5 {
		t.Errorf("Expected 5 experience for healing another player, got %d", a.Experience)
	}
	if msg := f.bc.last("session", "s-alice", network.MsgHealSuccess); msg == nil || msg["amount"].(float64) != 10 {
		t.Errorf("Expected heal_success with applied amount 10, got %v", msg)
	}
	if f.bc.last("player", "bob", network.MsgHealed) == nil {
		t.Error("target should be told it was healed")
	}
}

func TestHeal_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.give(t, "alice", "rusty_sword", "sword")
	f.give(t, "alice", "bandage", "bandage")
	f.moveTo("bob", offset(f.anchor(), 0, 0.0005))

	cases := []struct {
		frame, want string
	}{
		{`{"type":"heal_player","targetPlayerId":"bob","itemId":"none"}`, "Item not found"},
		{`{"type":"heal_player","targetPlayerId":"bob","itemId":"sword"}`, "Item is not a consumable"},
		{`{"type":"heal_player","targetPlayerId":"carol","itemId":"bandage"}`, "Target not found"},
		{`{"type":"heal_player","targetPlayerId":"bob","itemId":"bandage"}`, "Too far away"},
	}
	for _, c := range cases {
		f.send(t, "alice", "%s", c.frame)
		msg := f.bc.last("session", "s-alice", network.MsgHealFailed)
		if msg == nil || msg["error"] != c.want {
			t.Errorf("%s: Expected %q, got %v", c.frame, c.want, msg)
		}
	}
	if f.player(t, "alice").FindItem("bandage") < 0 {
		t.Error("rejected heals must not consume the item")
	}
}

func TestDrop_RecreatesItemInWorld(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	pos := offset(f.anchor(), 0.0002, 0.0002)
	f.moveTo("alice", pos)
	f.give(t, "alice", "rusty_sword", "sword")
	f.w.players.Mutate("alice", func(p *models.Player) { p.EquippedWeapon = "sword" })

	f.send(t, "alice", `{"type":"drop_item","itemId":"sword"}`)

	p := f.player(t, "alice")
	if p.FindItem("sword") >= 0 || p.EquippedWeapon != "" {
		t.Error("dropped item should leave the inventory and be unequipped")
	}
	items := f.w.items.All()
	if len(items) != 1 {
		t.Fatalf("Expected one world item, got %d", len(items))
	}
	dropped := items[0]
	if dropped.ID == "sword" || dropped.TemplateID != "rusty_sword" {
		t.Errorf("dropped item needs a fresh identity of the same template, got %+v", dropped.Item)
	}
	if dropped.Position != pos || dropped.Claimed() || dropped.CollectDuration != 1000 {
		t.Errorf("Unexpected dropped item %+v", dropped)
	}
	if f.bc.last("session", "s-alice", network.MsgItemDropped) == nil {
		t.Error("Expected item_dropped")
	}
	if spawned := f.bc.last("all", "", network.MsgItemSpawned); spawned == nil {
		t.Error("Expected item_spawned broadcast")
	}

	f.send(t, "alice", `{"type":"drop_item","itemId":"sword"}`)
	if msg := f.bc.last("session", "s-alice", network.MsgDropFailed); msg == nil || msg["error"] != "Item not found" {
		t.Errorf("Expected drop_failed, got %v", msg)
	}
}

func TestProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")

	f.send(t, "bob", `{"type":"view_profile","profilePlayerId":"alice"}`)
	msg := f.bc.last("session", "s-bob", network.MsgProfileData)
	if msg == nil || msg["profile"].(map[string]interface{})["id"] != "alice" {
		t.Errorf("profiles are public, got %v", msg)
	}
	f.send(t, "bob", `{"type":"view_profile","profilePlayerId":"ghost"}`)
	if f.bc.last("session", "s-bob", network.MsgProfileError) == nil {
		t.Error("Expected profile_error")
	}

	f.bc.reset()
	f.send(t, "alice", `{"type":"update_profile","name":"<script>Evil</script>"}`)
	if got := f.player(t, "alice").Name; got != "scriptEvilscript" {
		t.Errorf("Expected sanitized name, got %q", got)
	}
	if f.bc.last("session", "s-alice", network.MsgProfileData) == nil {
		t.Error("update_profile should reply with the profile")
	}
	if f.bc.last("all", "", network.MsgWorldUpdate) == nil {
		t.Error("update_profile should broadcast world_update")
	}

	f.send(t, "alice", `{"type":"update_profile","name":"***"}`)
	if got := f.player(t, "alice").Name; got != "scriptEvilscript" {
		t.Errorf("an empty sanitized name keeps the old one, got %q", got)
	}
}

func TestUpdateAvatar(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")

	f.send(t, "alice", `{"type":"update_avatar","avatar":"knight"}`)
	if got := f.player(t, "alice").Avatar; got != "knight" {
		t.Errorf("Expected knight, got %q", got)
	}
	f.send(t, "alice", `{"type":"update_avatar","avatar":"dragon"}`)
	if f.bc.last("session", "s-alice", network.MsgAvatarError) == nil {
		t.Error("Expected avatar_error")
	}
	if got := f.player(t, "alice").Avatar; got != "knight" {
		t.Errorf("unknown avatar must not apply, got %q", got)
	}
}

func TestChatAndMovement(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")

	f.send(t, "alice", `{"type":"update_position","position":{"lat":10.5,"lng":-3.25}}`)
	f.send(t, "alice", `{"type":"chat_message","message":%q}`, strings.Repeat("x", 300))

	p := f.player(t, "alice")
	if p.Position != (models.Position{Lat: 10.5, Lng: -3.25}) {
		t.Errorf("Unexpected position %+v", p.Position)
	}
	if len(p.LastMessage) != maxChatLength {
		t.Errorf("Expected chat truncated to %d, got %d", maxChatLength, len(p.LastMessage))
	}
	if got := f.bc.types("all", ""); len(got) < 2 || got[len(got)-1] != network.MsgWorldUpdate {
		t.Errorf("mutations should broadcast world_update, got %v", got)
	}
}

func TestUnauthorizedRequestIsDropped(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.bc.reset()

	f.send(t, "alice", `{"type":"update_position","playerId":"bob","position":{"lat":1,"lng":1}}`)

	if f.player(t, "bob").Position == (models.Position{Lat: 1, Lng: 1}) {
		t.Error("alice moved bob")
	}
	if len(f.bc.to("session", "s-alice")) != 0 || len(f.bc.to("all", "")) != 0 {
		t.Error("unauthorized requests get no reply and no broadcast")
	}
}

func TestAuthorizeWithSessionManager(t *testing.T) {
	f := newFixture(t, nil)
	sessions := session.NewManager()
	f.w.sessions = sessions

	s := session.NewSession("tok", "alice", nil, 4)
	sessions.Add(s)
	f.w.handleJoin("tok", "alice")

	msg, _ := network.Decode([]byte(`{"type":"chat_message","playerId":"alice","message":"hi"}`))
	f.w.handle(Envelope{SessionID: "tok", PlayerID: "alice", Message: msg})
	if f.player(t, "alice").LastMessage != "hi" {
		t.Error("bound token should be authorized")
	}

	msg, _ = network.Decode([]byte(`{"type":"chat_message","playerId":"alice","message":"spoof"}`))
	f.w.handle(Envelope{SessionID: "other", PlayerID: "alice", Message: msg})
	if f.player(t, "alice").LastMessage != "hi" {
		t.Error("unknown token should be rejected")
	}
}

func TestSpawnTick(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.join("bob")
	f.moveTo("alice", models.Position{Lat: 10, Lng: 10})
	f.moveTo("bob", models.Position{Lat: 10.002, Lng: 10.002})
	f.bc.reset()

	f.w.scheduleSpawn()
	first := f.w.spawnTimer
	delay := f.sched.history[len(f.sched.history)-1].delay
	if delay < 30*time.Second || delay > 60*time.Second {
		t.Errorf("spawn delay %v outside [30s, 60s]", delay)
	}

	f.sched.fire(t, first)

	items := f.w.items.All()
	if len(items) != 1 {
		t.Fatalf("Expected one spawned item, got %d", len(items))
	}
	item := items[0]
	center := models.Position{Lat: 10.001, Lng: 10.001}
	if abs(item.Position.Lat-center.Lat) > 0.002+1e-9 || abs(item.Position.Lng-center.Lng) > 0.002+1e-9 {
		t.Errorf("item spawned at %+v, too far from the players' centroid", item.Position)
	}
	if item.Claimed() || item.CollectDuration <= 0 {
		t.Errorf("Unexpected spawned item %+v", item)
	}
	if got := f.bc.types("all", ""); len(got) != 2 || got[0] != network.MsgItemSpawned || got[1] != network.MsgWorldUpdate {
		t.Errorf("Expected item_spawned then world_update, got %v", got)
	}
	if f.w.spawnTimer == 0 || f.w.spawnTimer == first || !f.sched.has(f.w.spawnTimer) {
		t.Error("spawn cycle should reschedule itself")
	}
}

func TestSeedPlacesInitialItemsAtAnchor(t *testing.T) {
	f := newFixture(t, func(c *config.WorldConfig) { c.InitialItems = 5 })
	f.w.seed()
	if f.w.items.Len() != 5 {
		t.Fatalf("Expected 5 seeded items, got %d", f.w.items.Len())
	}
	for _, item := range f.w.items.All() {
		if !WithinRange(f.anchor(), item.Position, 0.003) {
			t.Errorf("seeded item at %+v is far from the anchor", item.Position)
		}
	}
	if kinds := f.rec.kinds(); len(kinds) != 5 || kinds[0] != models.RecordSpawn {
		t.Errorf("Expected spawn records, got %v", kinds)
	}
}

func TestRecords(t *testing.T) {
	f := newFixture(t, nil)
	f.join("alice")
	f.place(t, "rusty_sword", "sword", f.anchor())
	f.send(t, "alice", `{"type":"pickup_item","itemId":"sword"}`)
	item, _ := f.w.items.Get("sword")
	f.sched.fire(t, item.TimerID)
	f.w.handleLeave("s-alice", "alice")

	want := []models.RecordKind{models.RecordJoin, models.RecordCollect, models.RecordLeave}
	got := f.rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}

func TestRun_ServesJoinsAndQueries(t *testing.T) {
	f := newFixture(t, func(c *config.WorldConfig) { c.InitialItems = 3 })
	ctx, cancel := context.WithCancel(context.Background())
	go f.w.Run(ctx)

	qctx, qcancel := context.WithTimeout(context.Background(), time.Second)
	defer qcancel()

	if err := f.w.Join(qctx, "s-alice", "alice"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	stats, err := f.w.Stats(qctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Players != 1 || stats.Items != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	profile, err := f.w.Profile(qctx, "alice")
	if err != nil || profile.ID != "alice" {
		t.Errorf("Profile = %+v, %v", profile, err)
	}
	if _, err := f.w.Player(qctx, "ghost"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("Expected ErrPlayerNotFound, got %v", err)
	}

	msg, _ := network.Decode([]byte(`{"type":"chat_message","message":"hello"}`))
	if err := f.w.Submit(qctx, Envelope{SessionID: "s-alice", PlayerID: "alice", Message: msg}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p, err := f.w.Player(qctx, "alice"); err != nil || p.LastMessage != "hello" {
		t.Errorf("Expected chat applied, got %+v, %v", p, err)
	}

	cancel()
	select {
	case <-f.w.Done():
	case <-time.After(time.Second):
		t.Fatal("world did not stop")
	}
	if err := f.w.Join(context.Background(), "s-bob", "bob"); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	if f.sched.has(f.w.spawnTimer) {
		t.Error("spawn timer should be removed on stop")
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
