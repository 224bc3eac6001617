package consumers

import "time"

// deadlineFromNow returns the redelivery floor for a requeued message.
// The coordinator's own retryDelaySeconds(pollingErrors) governs
// nextRetryAt in the job record; this is only the queue-level
// redelivery delay so the consumer does not immediately re-attempt a
// message the coordinator just parked in back-off.
func deadlineFromNow() time.Time {
	return time.Now().Add(2 * time.Second)
}
