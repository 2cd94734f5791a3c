package types

// VideoInfo is the descriptive metadata of one short-form video.
// Optional attributes are nil when the source did not report them.
type VideoInfo struct {
	Title        *string  `json:"title,omitempty"`
	Channel      *string  `json:"channel,omitempty"`
	ChannelID    *string  `json:"channel_id,omitempty"`
	ChannelURL   *string  `json:"channel_url,omitempty"`
	VideoURL     string   `json:"tiktok_url"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty"`
	Timestamp    *int64   `json:"timestamp,omitempty"`
	ViewCount    *int64   `json:"view_count,omitempty"`
	LikeCount    *int64   `json:"like_count,omitempty"`
	RepostCount  *int64   `json:"repost_count,omitempty"`
	CommentCount *int64   `json:"comment_count,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	Track        *string  `json:"track,omitempty"`
}
