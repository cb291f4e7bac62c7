package domain

// GlobalStats — агрегат для дашборда консоли (считается по audit_decisions)
type GlobalStats struct {
	TotalDecisions   int64            `json:"total_decisions"`
	DeniedDecisions  int64            `json:"denied_decisions"`
	PendingApprovals int64            `json:"pending_approvals"`
	DenyRatio        float64          `json:"deny_ratio"`
	TopActions       map[string]int64 `json:"top_actions"`
	DenialsByCode    map[string]int64 `json:"denials_by_code"`
	HourlyActivity   []ActivityPoint  `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}
