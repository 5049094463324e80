package domain

import "time"

// Account is a connected social account as seen by the data layer.
type Account struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	IsActive       bool      `json:"is_active"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// RefreshResult is what a data source returns from one refresh.
type RefreshResult struct {
	Accounts  []Account
	PostCount int
	// QuotaHeaders carries server rate-limit headers, if the source saw any.
	QuotaHeaders map[string]string
}

// IsEmpty reports whether the refresh produced nothing to sync.
func (r *RefreshResult) IsEmpty() bool {
	return r == nil || (len(r.Accounts) == 0 && r.PostCount == 0)
}
