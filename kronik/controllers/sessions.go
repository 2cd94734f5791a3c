package controllers

import (
	"context"

	"kronik/kronik/sources/sqldb/dao"
	"kronik/kronik/sources/sqldb/models"
)

type SessionsController struct {
	sessions *dao.SessionDAO
	videos   *dao.VideoDAO
}

func NewSessionsController(sessions *dao.SessionDAO, videos *dao.VideoDAO) *SessionsController {
	return &SessionsController{sessions: sessions, videos: videos}
}

func (c *SessionsController) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	return c.sessions.ListSessions(ctx, limit)
}

func (c *SessionsController) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return c.sessions.GetSession(ctx, id)
}

func (c *SessionsController) GetActiveSession(ctx context.Context) (*models.Session, error) {
	return c.sessions.GetActiveSession(ctx)
}

// ListVideos returns the session's videos with their analyses. A missing
// session is reported as dao.ErrNotFound rather than an empty list.
func (c *SessionsController) ListVideos(ctx context.Context, sessionID string, limit int) ([]dao.VideoRecord, error) {
	if _, err := c.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return c.videos.ListVideosBySession(ctx, sessionID, limit)
}

func (c *SessionsController) GetVideo(ctx context.Context, id int64) (*dao.VideoRecord, error) {
	video, analysis, err := c.videos.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dao.VideoRecord{Video: *video, Analysis: analysis}, nil
}
