// models/gorm_models.go
package models

import (
	"time"
)

// GormGameRecord 游戏记录表
type GormGameRecord struct {
	ID        uint                   `gorm:"primaryKey"`
	Kind      string                 `gorm:"index;not null"`
	PlayerID  string                 `gorm:"index"`
	TargetID  string                 `gorm:"index"`
	ItemID    string                 `gorm:"size:64"`
	Detail    map[string]interface{} `gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time              `gorm:"index"`
}

// TableName keeps the table shared with the raw SQL implementation.
func (GormGameRecord) TableName() string {
	return "game_records"
}

// ToGorm converts a record into its table row.
func (r GameRecord) ToGorm() GormGameRecord {
	return GormGameRecord{
		Kind:      string(r.Kind),
		PlayerID:  r.PlayerID,
		TargetID:  r.TargetID,
		ItemID:    r.ItemID,
		Detail:    r.Detail,
		CreatedAt: r.CreatedAt,
	}
}
