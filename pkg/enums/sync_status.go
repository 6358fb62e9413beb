package enums

import "fmt"

// SyncStatus is the per-product outcome of a price sync run.
type SyncStatus string

const (
	SyncStatusUpdated SyncStatus = "updated"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusSkipped SyncStatus = "skipped"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusUpdated,
	SyncStatusFailed,
	SyncStatusSkipped,
}

// String implements fmt.Stringer.
func (s SyncStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncStatus converts a raw string into a SyncStatus.
func ParseSyncStatus(value string) (SyncStatus, error) {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync status %q", value)
}
