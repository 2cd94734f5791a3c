package dao

import (
	"errors"
	"net/url"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateVideo   = errors.New("video with this url already exists")
	ErrDuplicateSession = errors.New("session already exists")
	ErrInvalidURL       = errors.New("invalid url")
	ErrInvalidStatus    = errors.New("invalid session status")
	ErrVideoNotFound    = errors.New("video not found")
	ErrSessionNotFound  = errors.New("session not found")
)

// ValidateURL reports whether raw parses with both a scheme and a host.
func ValidateURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "violates foreign key constraint")
}
