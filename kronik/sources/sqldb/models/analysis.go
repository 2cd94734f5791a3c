package models

import (
	"time"

	"kronik/kronik/types"

	"gorm.io/datatypes"
)

// Analysis is one-to-one with a Video; the unique video id makes upserts safe.
type Analysis struct {
	ID         int64                       `json:"id" gorm:"primaryKey;autoIncrement"`
	Transcript string                      `json:"transcript" gorm:"type:text;not null"`
	Analysis   string                      `json:"analysis" gorm:"type:text;not null"`
	Tags       datatypes.JSONSlice[string] `json:"tags"`
	Category   types.Category              `json:"category" gorm:"type:varchar(32);not null"`
	Rating     int                         `json:"rating" gorm:"not null"`
	Like       bool                        `json:"like" gorm:"column:like;not null"`
	VideoID    int64                       `json:"tiktok_id" gorm:"column:tiktok_id;not null;uniqueIndex"`
	Video      *Video                      `json:"-" gorm:"foreignKey:VideoID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time                   `json:"created_at" gorm:"autoCreateTime"`
}

func (Analysis) TableName() string {
	return "analysis"
}

func NewAnalysis(a types.Analysis, videoID int64) Analysis {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return Analysis{
		Transcript: a.Transcript,
		Analysis:   a.Analysis,
		Tags:       datatypes.JSONSlice[string](tags),
		Category:   a.Category,
		Rating:     a.Rating,
		Like:       a.Like,
		VideoID:    videoID,
	}
}

func (a Analysis) Result() types.Analysis {
	tags := []string(a.Tags)
	if tags == nil {
		tags = []string{}
	}
	return types.Analysis{
		Transcript: a.Transcript,
		Analysis:   a.Analysis,
		Tags:       tags,
		Category:   a.Category,
		Rating:     a.Rating,
		Like:       a.Like,
	}
}
