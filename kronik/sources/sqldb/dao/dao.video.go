package dao

import (
	"context"
	"errors"
	"fmt"

	"kronik/kronik/sources/sqldb/models"
	"kronik/kronik/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VideoDAO struct {
	DB *gorm.DB
}

// VideoRecord pairs a video with its analysis, which is nil until one is added.
type VideoRecord struct {
	Video    models.Video     `json:"video"`
	Analysis *models.Analysis `json:"analysis"`
}

func NewVideoDAO(db *gorm.DB) *VideoDAO {
	return &VideoDAO{DB: db}
}

// CreateVideo stores info under sessionID and returns the new row id.
// The video url is required; optional urls must be valid when present.
func (dao *VideoDAO) CreateVideo(ctx context.Context, info types.VideoInfo, sessionID string) (int64, error) {
	if !ValidateURL(info.VideoURL) {
		return 0, fmt.Errorf("%w: video url %q", ErrInvalidURL, info.VideoURL)
	}
	for name, u := range map[string]*string{"channel": info.ChannelURL, "thumbnail": info.ThumbnailURL} {
		if u != nil && !ValidateURL(*u) {
			return 0, fmt.Errorf("%w: %s url %q", ErrInvalidURL, name, *u)
		}
	}

	video := models.NewVideo(info, sessionID)
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&video).Error; err != nil {
			switch {
			case isUniqueViolation(err):
				return fmt.Errorf("%w: %s", ErrDuplicateVideo, info.VideoURL)
			case isForeignKeyViolation(err):
				return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
			}
			return fmt.Errorf("failed to create video: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return video.ID, nil
}

// GetVideo returns the video and its analysis (nil if none), or ErrNotFound.
func (dao *VideoDAO) GetVideo(ctx context.Context, id int64) (*models.Video, *models.Analysis, error) {
	var video models.Video
	err := dao.DB.WithContext(ctx).First(&video, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get video: %w", err)
	}
	analysis, err := dao.analysisFor(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &video, analysis, nil
}

// GetVideoByURL looks a video up by its unique url.
func (dao *VideoDAO) GetVideoByURL(ctx context.Context, videoURL string) (*models.Video, *models.Analysis, error) {
	var video models.Video
	err := dao.DB.WithContext(ctx).First(&video, "tiktok_url = ?", videoURL).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get video by url: %w", err)
	}
	analysis, err := dao.analysisFor(ctx, video.ID)
	if err != nil {
		return nil, nil, err
	}
	return &video, analysis, nil
}

func (dao *VideoDAO) analysisFor(ctx context.Context, videoID int64) (*models.Analysis, error) {
	var analysis models.Analysis
	err := dao.DB.WithContext(ctx).First(&analysis, "tiktok_id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

// ListVideosBySession returns up to limit videos of a session, newest first.
func (dao *VideoDAO) ListVideosBySession(ctx context.Context, sessionID string, limit int) ([]VideoRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var videos []models.Video
	err := dao.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	if len(videos) == 0 {
		return []VideoRecord{}, nil
	}

	ids := make([]int64, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	var analyses []models.Analysis
	if err := dao.DB.WithContext(ctx).Where("tiktok_id IN ?", ids).Find(&analyses).Error; err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	byVideo := make(map[int64]*models.Analysis, len(analyses))
	for i := range analyses {
		byVideo[analyses[i].VideoID] = &analyses[i]
	}

	records := make([]VideoRecord, len(videos))
	for i, v := range videos {
		records[i] = VideoRecord{Video: v, Analysis: byVideo[v.ID]}
	}
	return records, nil
}

// AddAnalysis upserts the analysis of a video: the existing row is updated in
// place, otherwise a new one is inserted. Both steps share one transaction.
func (dao *VideoDAO) AddAnalysis(ctx context.Context, analysis types.Analysis, videoID int64) (bool, error) {
	if !analysis.Category.Valid() {
		return false, fmt.Errorf("%w: unknown category %q", types.ErrSchemaViolation, analysis.Category)
	}
	row := models.NewAnalysis(analysis, videoID)

	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Video{}).Where("id = ?", videoID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check video: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %d", ErrVideoNotFound, videoID)
		}

		res := tx.Model(&models.Analysis{}).
			Where("tiktok_id = ?", videoID).
			Updates(map[string]interface{}{
				"transcript": row.Transcript,
				"analysis":   row.Analysis,
				"tags":       row.Tags,
				"category":   row.Category,
				"rating":     row.Rating,
				"like":       row.Like,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update analysis: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteVideo removes the video; its analysis cascades.
func (dao *VideoDAO) DeleteVideo(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Video{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete video: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}
