package models

// SyncStatus is the single global record of plans with unsynced local changes.
// A plan id appears at most once in PendingSyncs.
type SyncStatus struct {
	PendingSyncs []string `json:"pendingSyncs"`
}

// Contains reports whether planID is pending.
func (s *SyncStatus) Contains(planID string) bool {
	for _, id := range s.PendingSyncs {
		if id == planID {
			return true
		}
	}
	return false
}
