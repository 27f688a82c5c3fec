// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

// Recorder receives engine measurements. Components accept a Recorder so
// tests can pass Nop and servers can pass a PrometheusMetrics.
type Recorder interface {
	// JobSubmitted counts a job admitted to the queue.
	JobSubmitted(scanType string)
	// JobFinished counts a job reaching a terminal status and records its duration.
	JobFinished(scanType, status string, duration time.Duration)
	// SetActiveJobs sets the number of jobs holding a worker slot.
	SetActiveJobs(count int)
	// SetQueuedJobs sets the number of jobs waiting for a slot.
	SetQueuedJobs(count int)
	// JobRetried counts a retry attempt.
	JobRetried(scanType string)
	// EventDropped counts an event discarded by a full subscriber buffer.
	EventDropped(eventType string)
	// MergeCompleted records one inventory merge.
	MergeCompleted(duration time.Duration, err error)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) JobSubmitted(string)                       {}
func (Nop) JobFinished(string, string, time.Duration) {}
func (Nop) SetActiveJobs(int)                         {}
func (Nop) SetQueuedJobs(int)                         {}
func (Nop) JobRetried(string)                         {}
func (Nop) EventDropped(string)                       {}
func (Nop) MergeCompleted(time.Duration, error)       {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)
