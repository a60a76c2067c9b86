package model

import "strings"

// ExitStatus is the semantic outcome of an execution: a code that drives flow
// transitions and a free-text description. Unlike BatchStatus, custom codes are
// allowed.
type ExitStatus struct {
	ExitCode        string `json:"exit_code"`
	ExitDescription string `json:"exit_description"`
}

// Well-known exit codes.
const (
	ExitCodeUnknown   = "UNKNOWN"
	ExitCodeExecuting = "EXECUTING"
	ExitCodeCompleted = "COMPLETED"
	ExitCodeNoOp      = "NOOP"
	ExitCodeFailed    = "FAILED"
	ExitCodeStopped   = "STOPPED"
)

var (
	ExitStatusUnknown   = ExitStatus{ExitCode: ExitCodeUnknown}
	ExitStatusExecuting = ExitStatus{ExitCode: ExitCodeExecuting}
	ExitStatusCompleted = ExitStatus{ExitCode: ExitCodeCompleted}
	ExitStatusNoOp      = ExitStatus{ExitCode: ExitCodeNoOp}
	ExitStatusFailed    = ExitStatus{ExitCode: ExitCodeFailed}
	ExitStatusStopped   = ExitStatus{ExitCode: ExitCodeStopped}
)

const exitDescriptionSeparator = "; "

// NewExitStatus creates an ExitStatus with the given code and description.
func NewExitStatus(code, description string) ExitStatus {
	return ExitStatus{ExitCode: code, ExitDescription: description}
}

// severity ranks an exit code. Codes outside the well-known set are the most severe.
func severity(code string) int {
	switch {
	case strings.HasPrefix(code, ExitCodeExecuting):
		return 1
	case strings.HasPrefix(code, ExitCodeCompleted):
		return 2
	case strings.HasPrefix(code, ExitCodeNoOp):
		return 3
	case strings.HasPrefix(code, ExitCodeStopped):
		return 4
	case strings.HasPrefix(code, ExitCodeFailed):
		return 5
	case strings.HasPrefix(code, ExitCodeUnknown):
		return 6
	default:
		return 7
	}
}

// Compare orders exit statuses by severity, breaking ties on the code string.
// It returns -1, 0 or 1.
func (e ExitStatus) Compare(other ExitStatus) int {
	a, b := severity(e.ExitCode), severity(other.ExitCode)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return strings.Compare(e.ExitCode, other.ExitCode)
}

// And combines two statuses. The result carries the more severe code and the
// union of both descriptions in first-seen order, so the operation is
// associative and its severity never drops below either operand.
func (e ExitStatus) And(other ExitStatus) ExitStatus {
	result := e.AddExitDescription(other.ExitDescription)
	if e.Compare(other) < 0 {
		result.ExitCode = other.ExitCode
	}
	return result
}

// AddExitDescription appends the segments of description that are not already present.
func (e ExitStatus) AddExitDescription(description string) ExitStatus {
	if description == "" {
		return e
	}
	var segments []string
	if e.ExitDescription != "" {
		segments = strings.Split(e.ExitDescription, exitDescriptionSeparator)
	}
	seen := make(map[string]struct{}, len(segments))
	for _, s := range segments {
		seen[s] = struct{}{}
	}
	for _, s := range strings.Split(description, exitDescriptionSeparator) {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		segments = append(segments, s)
	}
	e.ExitDescription = strings.Join(segments, exitDescriptionSeparator)
	return e
}

// AddExitError appends the message of err to the description.
func (e ExitStatus) AddExitError(err error) ExitStatus {
	if err == nil {
		return e
	}
	return e.AddExitDescription(err.Error())
}

// ReplaceExitCode returns a copy of e with a different code.
func (e ExitStatus) ReplaceExitCode(code string) ExitStatus {
	e.ExitCode = code
	return e
}

// IsRunning reports whether the code is EXECUTING or UNKNOWN.
func (e ExitStatus) IsRunning() bool {
	return e.ExitCode == ExitCodeExecuting || e.ExitCode == ExitCodeUnknown
}

// String returns the exit code, followed by the description when present.
func (e ExitStatus) String() string {
	if e.ExitDescription == "" {
		return e.ExitCode
	}
	return e.ExitCode + " (" + e.ExitDescription + ")"
}

// ExitStatusFor maps a BatchStatus onto its default exit status.
func ExitStatusFor(status BatchStatus) ExitStatus {
	switch status {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping:
		return ExitStatusExecuting
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusFailed, BatchStatusAbandoned:
		return ExitStatusFailed
	default:
		return ExitStatusUnknown
	}
}
