package domain

import (
	"time"
)

// PresenceSet maps session tokens to last-seen unix seconds. This is the
// shape persisted in the cache.
type PresenceSet map[string]int64

// IsLive reports whether a session last seen at lastSeen (unix seconds) is
// still live at now given timeout.
func IsLive(lastSeen int64, now time.Time, timeout time.Duration) bool {
	return now.Unix()-lastSeen <= int64(timeout/time.Second)
}

// DailyCount is the number of tracked page views on one calendar day
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Statistics is the aggregate shown on the dashboard and settings page
type Statistics struct {
	TotalVisitors int64 `json:"total_visitors"`
	Last7Days     int64 `json:"last_7_days"`
	Last30Days    int64 `json:"last_30_days"`
}

// Summary combines the live session count with historical statistics
type Summary struct {
	LiveUsers int `json:"live_users"`
	Statistics
	GeneratedAt time.Time `json:"generated_at"`
}

// DisplayOption selects where the live user count is rendered
type DisplayOption string

const (
	DisplayDashboard DisplayOption = "dashboard"
	DisplayAdminBar  DisplayOption = "admin_bar"
)

// DefaultDisplayOption is used when nothing has been saved
const DefaultDisplayOption = DisplayDashboard

// Valid reports whether o is a known display option
func (o DisplayOption) Valid() bool {
	return o == DisplayDashboard || o == DisplayAdminBar
}

// TrackRequest is the body of a page view report
type TrackRequest struct {
	Path string `json:"path"`
}

// AdminBarNode is the admin-bar entry rendered by the host page
type AdminBarNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Href  string `json:"href"`
}

// SettingsPage is the data behind the settings screen
type SettingsPage struct {
	DisplayOption DisplayOption `json:"display_option"`
	Statistics    Statistics    `json:"statistics"`
}
