package models

import (
	"time"

	"kronik/kronik/types"
)

type Session struct {
	ID        string              `json:"id" gorm:"type:varchar(64);primaryKey"`
	Status    types.SessionStatus `json:"status" gorm:"type:varchar(16);not null;default:active;index"`
	CreatedAt time.Time           `json:"created_at" gorm:"autoCreateTime"`
}

func (Session) TableName() string {
	return "session"
}
