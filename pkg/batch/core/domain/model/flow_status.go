package model

import "strings"

// FlowExecutionStatus is the routing signal a flow state returns. It is an
// open string: any value starting with a known status name routes like that
// status, so "COMPLETED_WITH_SKIPS" still counts as COMPLETED while staying
// distinguishable in transitions and logs.
type FlowExecutionStatus string

// Known flow statuses in ascending order of severity.
const (
	FlowStatusUnknown   FlowExecutionStatus = "UNKNOWN"
	FlowStatusCompleted FlowExecutionStatus = "COMPLETED"
	FlowStatusStopped   FlowExecutionStatus = "STOPPED"
	FlowStatusFailed    FlowExecutionStatus = "FAILED"
)

var knownFlowStatuses = []FlowExecutionStatus{
	FlowStatusUnknown,
	FlowStatusCompleted,
	FlowStatusStopped,
	FlowStatusFailed,
}

// kind returns the index of the longest known status that prefixes s, or the
// index of UNKNOWN when none does.
func (s FlowExecutionStatus) kind() int {
	best, bestLen := 0, -1
	for i, known := range knownFlowStatuses {
		if strings.HasPrefix(string(s), string(known)) && len(known) > bestLen {
			best, bestLen = i, len(known)
		}
	}
	return best
}

// Kind returns the known status s routes as.
func (s FlowExecutionStatus) Kind() FlowExecutionStatus {
	return knownFlowStatuses[s.kind()]
}

// Compare orders by the known status first and by the literal string second.
// It returns -1, 0 or 1.
func (s FlowExecutionStatus) Compare(other FlowExecutionStatus) int {
	a, b := s.kind(), other.kind()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return strings.Compare(string(s), string(other))
}

// MaxFlowStatus returns the more severe of a and b.
func MaxFlowStatus(a, b FlowExecutionStatus) FlowExecutionStatus {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// IsComplete reports whether s routes as COMPLETED.
func (s FlowExecutionStatus) IsComplete() bool { return s.Kind() == FlowStatusCompleted }

// IsStop reports whether s routes as STOPPED.
func (s FlowExecutionStatus) IsStop() bool { return s.Kind() == FlowStatusStopped }

// IsFail reports whether s routes as FAILED.
func (s FlowExecutionStatus) IsFail() bool { return s.Kind() == FlowStatusFailed }

// IsEnd reports whether s ends a flow: COMPLETED, STOPPED or FAILED.
func (s FlowExecutionStatus) IsEnd() bool { return s.kind() != 0 }

// ToBatchStatus maps s onto the BatchStatus whose name prefixes it.
func (s FlowExecutionStatus) ToBatchStatus() BatchStatus {
	return BatchStatusMatch(string(s))
}

func (s FlowExecutionStatus) String() string { return string(s) }
