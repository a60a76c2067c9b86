package model

// BatchStatus is the lifecycle status of a job or step execution.
//
// Statuses are ordered by severity. Combining two statuses keeps the more
// severe one, so a failed partition makes the whole step fail and an unknown
// one makes it require manual intervention:
//
//	COMPLETED < STARTING < STARTED < STOPPING < STOPPED < FAILED < ABANDONED < UNKNOWN
type BatchStatus string

const (
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusStopping  BatchStatus = "STOPPING"
	BatchStatusStopped   BatchStatus = "STOPPED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusAbandoned BatchStatus = "ABANDONED"
	BatchStatusUnknown   BatchStatus = "UNKNOWN"
)

var batchStatusOrder = map[BatchStatus]int{
	BatchStatusCompleted: 0,
	BatchStatusStarting:  1,
	BatchStatusStarted:   2,
	BatchStatusStopping:  3,
	BatchStatusStopped:   4,
	BatchStatusFailed:    5,
	BatchStatusAbandoned: 6,
	BatchStatusUnknown:   7,
}

// allBatchStatuses lists the statuses in ascending severity.
var allBatchStatuses = []BatchStatus{
	BatchStatusCompleted,
	BatchStatusStarting,
	BatchStatusStarted,
	BatchStatusStopping,
	BatchStatusStopped,
	BatchStatusFailed,
	BatchStatusAbandoned,
	BatchStatusUnknown,
}

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// ordinal returns the severity rank. Unrecognized values rank as UNKNOWN.
func (s BatchStatus) ordinal() int {
	if o, ok := batchStatusOrder[s]; ok {
		return o
	}
	return batchStatusOrder[BatchStatusUnknown]
}

// MaxStatus returns the more severe of a and b.
func MaxStatus(a, b BatchStatus) BatchStatus {
	if a.IsGreaterThan(b) {
		return a
	}
	return b
}

// IsGreaterThan reports whether s is strictly more severe than other.
func (s BatchStatus) IsGreaterThan(other BatchStatus) bool {
	return s.ordinal() > other.ordinal()
}

// IsLessThan reports whether s is strictly less severe than other.
func (s BatchStatus) IsLessThan(other BatchStatus) bool {
	return s.ordinal() < other.ordinal()
}

// IsLessThanOrEqualTo reports whether s is at most as severe as other.
func (s BatchStatus) IsLessThanOrEqualTo(other BatchStatus) bool {
	return s.ordinal() <= other.ordinal()
}

// IsRunning reports whether s is STARTING, STARTED or STOPPING.
func (s BatchStatus) IsRunning() bool {
	return s == BatchStatusStarting || s == BatchStatusStarted || s == BatchStatusStopping
}

// IsUnsuccessful reports whether s is FAILED or more severe.
func (s BatchStatus) IsUnsuccessful() bool {
	return s.ordinal() >= batchStatusOrder[BatchStatusFailed]
}

// Upgrade returns the status that results from moving s towards other.
// A running status is replaced by a finished one even though COMPLETED has the
// lowest severity; in every other case the more severe status wins.
func (s BatchStatus) Upgrade(other BatchStatus) BatchStatus {
	if s.IsGreaterThan(BatchStatusStarted) || other.IsGreaterThan(BatchStatusStarted) {
		return MaxStatus(s, other)
	}
	if s == BatchStatusCompleted || other == BatchStatusCompleted {
		return BatchStatusCompleted
	}
	return MaxStatus(s, other)
}

// IsValid reports whether s is one of the defined statuses.
func (s BatchStatus) IsValid() bool {
	_, ok := batchStatusOrder[s]
	return ok
}

// BatchStatusMatch returns the status whose name is a prefix of value, or UNKNOWN.
// It maps flow results such as "COMPLETED_WITH_SKIPS" onto a BatchStatus.
func BatchStatusMatch(value string) BatchStatus {
	for _, s := range allBatchStatuses {
		if len(value) >= len(s) && value[:len(s)] == string(s) {
			return s
		}
	}
	return BatchStatusUnknown
}
