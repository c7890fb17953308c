package models

import (
	"time"
)

// ScheduledExpiry is an order waiting in the expiration schedule.
type ScheduledExpiry struct {
	OrderID string    `json:"orderId"`
	DueAt   time.Time `json:"dueAt"`
}

// SweepResult summarises one eager expiration pass.
type SweepResult struct {
	Scanned int       `json:"scanned"`
	Expired int       `json:"expired"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	RanAt   time.Time `json:"ranAt"`
}
