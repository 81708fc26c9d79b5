package config

import "time"

type SessionConfig interface {
	GetDefaultAccessTokenTTL() time.Duration
	GetRefreshCookieTTL() time.Duration
	GetExpiryBuffer() time.Duration
	GetMinRefreshDelay() time.Duration
	GetScheduleRetryDelay() time.Duration
}

type Session struct {
	values values
}

var _ SessionConfig = Session{}

// GetDefaultAccessTokenTTL is used when the token response carries no expires_in.
func (s Session) GetDefaultAccessTokenTTL() time.Duration {
	return getDuration(s.values, "ELEMO_ACCESS_TOKEN_TTL", time.Hour)
}

func (s Session) GetRefreshCookieTTL() time.Duration {
	return getDuration(s.values, "ELEMO_REFRESH_COOKIE_TTL", 30*24*time.Hour)
}

// GetExpiryBuffer is how long before the recorded expiry an access token is already
// treated as expired, and how early the scheduler refreshes.
func (s Session) GetExpiryBuffer() time.Duration {
	return getDuration(s.values, "ELEMO_EXPIRY_BUFFER", 5*time.Minute)
}

func (s Session) GetMinRefreshDelay() time.Duration {
	return getDuration(s.values, "ELEMO_MIN_REFRESH_DELAY", time.Minute)
}

func (s Session) GetScheduleRetryDelay() time.Duration {
	return getDuration(s.values, "ELEMO_SCHEDULE_RETRY_DELAY", 5*time.Minute)
}
