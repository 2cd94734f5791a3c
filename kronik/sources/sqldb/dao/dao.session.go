package dao

import (
	"context"
	"errors"
	"fmt"

	"kronik/kronik/sources/sqldb/models"
	"kronik/kronik/types"

	"gorm.io/gorm"
)

const defaultListLimit = 100

type SessionDAO struct {
	DB *gorm.DB
}

func NewSessionDAO(db *gorm.DB) *SessionDAO {
	return &SessionDAO{DB: db}
}

// CreateSession inserts a new session row.
func (dao *SessionDAO) CreateSession(ctx context.Context, session *models.Session) error {
	if !session.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, session.Status)
	}
	return dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateSession, session.ID)
			}
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
}

// GetSession returns ErrNotFound when no session has the given id.
func (dao *SessionDAO) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := dao.DB.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ListSessions returns up to limit sessions, newest first.
func (dao *SessionDAO) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var sessions []models.Session
	err := dao.DB.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateStatus reports whether a session row was updated.
func (dao *SessionDAO) UpdateStatus(ctx context.Context, id string, status types.SessionStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var updated bool
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).Where("id = ?", id).Update("status", status)
		if res.Error != nil {
			return fmt.Errorf("failed to update session status: %w", res.Error)
		}
		updated = res.RowsAffected > 0
		return nil
	})
	return updated, err
}

// DeleteSession removes the session; its videos and their analyses cascade.
func (dao *SessionDAO) DeleteSession(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := dao.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Session{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete session: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// GetActiveSession returns the most recent active session.
func (dao *SessionDAO) GetActiveSession(ctx context.Context) (*models.Session, error) {
	var session models.Session
	err := dao.DB.WithContext(ctx).
		Where("status = ?", types.SessionActive).
		Order("created_at DESC").
		Order("id DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &session, nil
}
