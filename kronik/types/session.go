package types

import "fmt"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionFailed:
		return true
	default:
		return false
	}
}

func ParseSessionStatus(s string) (SessionStatus, error) {
	status := SessionStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown session status %q", s)
	}
	return status, nil
}
