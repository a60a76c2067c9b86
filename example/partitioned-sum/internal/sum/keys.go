// Package sum holds the tasklets and item components of the partitioned-sum
// job: every partition sums a slice of [1, max], a chunk step computes the
// expected total, and a collect step compares both.
package sum

// ExecutionContext keys.
const (
	// NextValueKey is the first value a partition has not summed yet.
	NextValueKey = "sum.next"
	// PartialSumKey is the running total of a partition.
	PartialSumKey = "sum.partial"
	// ExpectedSumKey is the running total of the expected-sum chunk step.
	ExpectedSumKey = "sum.expected"
	// TotalKey is the sum of all partition totals.
	TotalKey = "sum.total"
	// VerifiedKey reports whether TotalKey equals ExpectedSumKey.
	VerifiedKey = "sum.verified"
)
