package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/wfunc/geoworld/models"
)

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidMessage = errors.New("invalid message")
)

var inboundTypes = []string{
	MsgUpdatePosition,
	MsgChatMessage,
	MsgPickupItem,
	MsgCancelCollection,
	MsgUseItem,
	MsgAttackPlayer,
	MsgHealPlayer,
	MsgDropItem,
	MsgViewProfile,
	MsgUpdateProfile,
	MsgUpdateAvatar,
}

// Message is one decoded inbound request.
type Message interface {
	MessageType() string
	// Target is the player the request acts for; empty means the sender.
	Target() string
	validate() error
}

// Base carries the discriminator and the optional acting player.
type Base struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId,omitempty"`
}

func (b Base) MessageType() string { return b.Type }
func (b Base) Target() string      { return b.PlayerID }

type UpdatePosition struct {
	Base
	Position *models.Position `json:"position"`
}

type ChatMessage struct {
	Base
	Message *string `json:"message"`
}

type PickupItem struct {
	Base
	ItemID string `json:"itemId"`
}

type CancelCollection struct {
	Base
	ItemID string `json:"itemId"`
}

type UseItem struct {
	Base
	ItemID string `json:"itemId"`
}

type AttackPlayer struct {
	Base
	TargetPlayerID string   `json:"targetPlayerId"`
	WeaponID       string   `json:"weaponId"`
	Damage         *float64 `json:"damage,omitempty"`
}

type HealPlayer struct {
	Base
	TargetPlayerID string   `json:"targetPlayerId"`
	ItemID         string   `json:"itemId"`
	HealAmount     *float64 `json:"healAmount,omitempty"`
}

type DropItem struct {
	Base
	ItemID string `json:"itemId"`
}

type ViewProfile struct {
	Base
	ProfilePlayerID string `json:"profilePlayerId"`
}

type UpdateProfile struct {
	Base
	Name *string `json:"name,omitempty"`
}

type UpdateAvatar struct {
	Base
	Avatar string `json:"avatar"`
}

func required(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidMessage, name)
	}
	return nil
}

func (m *UpdatePosition) validate() error {
	if m.Position == nil {
		return fmt.Errorf("%w: missing position", ErrInvalidMessage)
	}
	if math.IsNaN(m.Position.Lat) || math.IsNaN(m.Position.Lng) {
		return fmt.Errorf("%w: position is not a number", ErrInvalidMessage)
	}
	return nil
}

func (m *ChatMessage) validate() error {
	if m.Message == nil {
		return fmt.Errorf("%w: missing message", ErrInvalidMessage)
	}
	return nil
}

func (m *PickupItem) validate() error       { return required("itemId", m.ItemID) }
func (m *CancelCollection) validate() error { return required("itemId", m.ItemID) }
func (m *UseItem) validate() error          { return required("itemId", m.ItemID) }
func (m *DropItem) validate() error         { return required("itemId", m.ItemID) }
func (m *UpdateProfile) validate() error    { return nil }
func (m *UpdateAvatar) validate() error     { return required("avatar", m.Avatar) }

func (m *ViewProfile) validate() error {
	return required("profilePlayerId", m.ProfilePlayerID)
}

func (m *AttackPlayer) validate() error {
	if err := required("targetPlayerId", m.TargetPlayerID); err != nil {
		return err
	}
	return required("weaponId", m.WeaponID)
}

func (m *HealPlayer) validate() error {
	if err := required("targetPlayerId", m.TargetPlayerID); err != nil {
		return err
	}
	return required("itemId", m.ItemID)
}

// DecodeBase reads only the discriminator.
func DecodeBase(data []byte) (Base, error) {
	var b Base
	err := json.Unmarshal(data, &b)
	return b, err
}

func newMessage(msgType string) (Message, error) {
	switch msgType {
	case MsgUpdatePosition:
		return &UpdatePosition{}, nil
	case MsgChatMessage:
		return &ChatMessage{}, nil
	case MsgPickupItem:
		return &PickupItem{}, nil
	case MsgCancelCollection:
		return &CancelCollection{}, nil
	case MsgUseItem:
		return &UseItem{}, nil
	case MsgAttackPlayer:
		return &AttackPlayer{}, nil
	case MsgHealPlayer:
		return &HealPlayer{}, nil
	case MsgDropItem:
		return &DropItem{}, nil
	case MsgViewProfile:
		return &ViewProfile{}, nil
	case MsgUpdateProfile:
		return &UpdateProfile{}, nil
	case MsgUpdateAvatar:
		return &UpdateAvatar{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, msgType)
}

// Decode parses one inbound frame into its typed variant. Unknown types,
// schema violations and missing required fields are rejected here so the
// world only ever sees well formed requests.
func Decode(data []byte) (Message, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	msgType, _ := obj["type"].(string)
	if msgType == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	msg, err := newMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(msgType, doc); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode serializes an outbound message.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
