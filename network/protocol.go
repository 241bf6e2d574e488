package network

// Inbound message types.
const (
	MsgUpdatePosition   = "update_position"
	MsgChatMessage      = "chat_message"
	MsgPickupItem       = "pickup_item"
	MsgCancelCollection = "cancel_collection"
	MsgUseItem          = "use_item"
	MsgAttackPlayer     = "attack_player"
	MsgHealPlayer       = "heal_player"
	MsgDropItem         = "drop_item"
	MsgViewProfile      = "view_profile"
	MsgUpdateProfile    = "update_profile"
	MsgUpdateAvatar     = "update_avatar"
)

// Outbound message types.
const (
	MsgInit               = "init"
	MsgPlayerJoined       = "player_joined"
	MsgPlayerLeft         = "player_left"
	MsgWorldUpdate        = "world_update"
	MsgItemSpawned        = "item_spawned"
	MsgCollectionStarted  = "collection_started"
	MsgCollectionComplete = "collection_complete"
	MsgCollectionCanceled = "collection_canceled"
	MsgCollectionError    = "collection_error"
	MsgItemUsed           = "item_used"
	MsgUseItemFailed      = "use_item_failed"
	MsgAttackSuccess      = "attack_success"
	MsgAttacked           = "attacked"
	MsgAttackFailed       = "attack_failed"
	MsgHealSuccess        = "heal_success"
	MsgHealed             = "healed"
	MsgHealFailed         = "heal_failed"
	MsgItemDropped        = "item_dropped"
	MsgDropFailed         = "drop_failed"
	MsgProfileData        = "profile_data"
	MsgProfileError       = "profile_error"
	MsgAvatarError        = "avatar_error"
)
