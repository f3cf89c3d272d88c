package models

// Event payloads emitted by the payout engine and rollover manager. The JSON
// field names are part of the compatibility surface consumed by downstream
// indexers; do not rename them.

// CycleCompleted is emitted when the final queue slot of a cycle is paid.
// TotalVolumeDistributed is gross (pre-fee) volume for the completed cycle.
type CycleCompleted struct {
	GroupID                uint64 `json:"group_id"`
	TotalVolumeDistributed int64  `json:"total_volume_distributed"`
}

// GroupRollover is emitted when a circle rolls into a new cycle.
type GroupRollover struct {
	GroupID        uint64 `json:"group_id"`
	NewCycleNumber uint32 `json:"new_cycle_number"`
}
