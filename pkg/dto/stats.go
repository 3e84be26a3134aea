package dto

type StatsResponse struct {
	ActiveVisitors int `json:"active_visitors"`
	TotalToday     int `json:"total_today"`
}

type ResetResponse struct {
	Status string `json:"status"`
	Closed int64  `json:"closed"`
	At     string `json:"at"`
}
