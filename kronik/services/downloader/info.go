package downloader

import (
	"encoding/json"
	"fmt"

	"kronik/kronik/types"
)

// thumbnailPriority orders the thumbnail ids TikTok reports.
var thumbnailPriority = []string{"cover", "originCover", "dynamicCover"}

type thumbnail struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ytInfo struct {
	Title        *string     `json:"title"`
	Channel      *string     `json:"channel"`
	ChannelID    *string     `json:"channel_id"`
	ChannelURL   *string     `json:"channel_url"`
	WebpageURL   string      `json:"webpage_url"`
	Thumbnails   []thumbnail `json:"thumbnails"`
	Timestamp    *float64    `json:"timestamp"`
	ViewCount    *float64    `json:"view_count"`
	LikeCount    *float64    `json:"like_count"`
	RepostCount  *float64    `json:"repost_count"`
	CommentCount *float64    `json:"comment_count"`
	Duration     *float64    `json:"duration"`
	Track        *string     `json:"track"`
}

// ParseInfo maps a yt-dlp info document onto VideoInfo.
func ParseInfo(data []byte) (types.VideoInfo, error) {
	var raw ytInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.VideoInfo{}, fmt.Errorf("failed to parse video info: %w", err)
	}
	return types.VideoInfo{
		Title:        raw.Title,
		Channel:      raw.Channel,
		ChannelID:    raw.ChannelID,
		ChannelURL:   nonEmpty(raw.ChannelURL),
		VideoURL:     raw.WebpageURL,
		ThumbnailURL: bestThumbnail(raw.Thumbnails),
		Timestamp:    toInt(raw.Timestamp),
		ViewCount:    toInt(raw.ViewCount),
		LikeCount:    toInt(raw.LikeCount),
		RepostCount:  toInt(raw.RepostCount),
		CommentCount: toInt(raw.CommentCount),
		Duration:     raw.Duration,
		Track:        raw.Track,
	}, nil
}

func bestThumbnail(thumbs []thumbnail) *string {
	for _, id := range thumbnailPriority {
		for _, t := range thumbs {
			if t.ID == id && t.URL != "" {
				u := t.URL
				return &u
			}
		}
	}
	return nil
}

func toInt(f *float64) *int64 {
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
