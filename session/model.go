package session

import "time"

// Session identifies one authenticated device/browser context for an
// account. Timestamps are unix seconds, matching the wire payloads.
type Session struct {
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`

	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`

	Active       bool  `json:"active"`
	CreatedAt    int64 `json:"created_at"`
	LastActiveAt int64 `json:"last_active_at"`
	ExpiresAt    int64 `json:"expires_at"`
}

// Expired reports whether the session's absolute lifetime has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}
