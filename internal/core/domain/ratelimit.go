package domain

import "time"

// RateLimitState is the governor's externally visible quota state.
type RateLimitState struct {
	IsLimited        bool       `json:"is_limited"`
	ResetAt          *time.Time `json:"reset_at,omitempty"`
	Remaining        *int       `json:"remaining,omitempty"`
	QuotaUsedPercent float64    `json:"quota_used_percent"`
}

// Clone returns a deep copy so callers cannot mutate governor state.
func (s RateLimitState) Clone() RateLimitState {
	out := s
	if s.ResetAt != nil {
		t := *s.ResetAt
		out.ResetAt = &t
	}
	if s.Remaining != nil {
		r := *s.Remaining
		out.Remaining = &r
	}
	return out
}
