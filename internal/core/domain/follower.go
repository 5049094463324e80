package domain

import "time"

// FollowerSnapshot is one append-only observation of an account's counts.
type FollowerSnapshot struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	Timestamp      time.Time `json:"timestamp"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
}

// FollowerDataPoint is a derived, bucketed value for presentation.
type FollowerDataPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
	Label string    `json:"label"`
}
