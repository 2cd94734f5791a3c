package models

import (
	"time"

	"kronik/kronik/types"
)

type Video struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title        *string   `json:"title,omitempty" gorm:"type:text"`
	Channel      *string   `json:"channel,omitempty" gorm:"type:text"`
	ChannelID    *string   `json:"channel_id,omitempty" gorm:"type:text"`
	ChannelURL   *string   `json:"channel_url,omitempty" gorm:"type:text"`
	VideoURL     string    `json:"tiktok_url" gorm:"column:tiktok_url;type:varchar(2048);not null;uniqueIndex"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty" gorm:"type:text"`
	Timestamp    *int64    `json:"timestamp,omitempty"`
	ViewCount    *int64    `json:"view_count,omitempty"`
	LikeCount    *int64    `json:"like_count,omitempty"`
	RepostCount  *int64    `json:"repost_count,omitempty"`
	CommentCount *int64    `json:"comment_count,omitempty"`
	Duration     *float64  `json:"duration,omitempty"`
	Track        *string   `json:"track,omitempty" gorm:"type:text"`
	SessionID    string    `json:"session_id" gorm:"type:varchar(64);not null;index"`
	Session      *Session  `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Video) TableName() string {
	return "tiktok"
}

func NewVideo(info types.VideoInfo, sessionID string) Video {
	return Video{
		Title:        info.Title,
		Channel:      info.Channel,
		ChannelID:    info.ChannelID,
		ChannelURL:   info.ChannelURL,
		VideoURL:     info.VideoURL,
		ThumbnailURL: info.ThumbnailURL,
		Timestamp:    info.Timestamp,
		ViewCount:    info.ViewCount,
		LikeCount:    info.LikeCount,
		RepostCount:  info.RepostCount,
		CommentCount: info.CommentCount,
		Duration:     info.Duration,
		Track:        info.Track,
		SessionID:    sessionID,
	}
}

func (v Video) Info() types.VideoInfo {
	return types.VideoInfo{
		Title:        v.Title,
		Channel:      v.Channel,
		ChannelID:    v.ChannelID,
		ChannelURL:   v.ChannelURL,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
		Timestamp:    v.Timestamp,
		ViewCount:    v.ViewCount,
		LikeCount:    v.LikeCount,
		RepostCount:  v.RepostCount,
		CommentCount: v.CommentCount,
		Duration:     v.Duration,
		Track:        v.Track,
	}
}
