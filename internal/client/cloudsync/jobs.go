package cloudsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/scheduler"
)

// PushJobName identifies the push job in scheduler reports and logs.
const PushJobName = "push_pending_changes"

// MinPushInterval is the floor applied to the configured push interval.
const MinPushInterval = 15 * time.Minute

// PushJob wraps PushPendingChanges as a scheduler job. A run fails, and is
// therefore retried, when the batch failed outright or left any record
// pending.
func PushJob(c *Coordinator, interval time.Duration, policy scheduler.RetryPolicy) scheduler.Job {
	return scheduler.Job{
		Name:     PushJobName,
		Interval: interval,
		Retry:    policy,
		Run: func(ctx context.Context) error {
			res := c.PushPendingChanges(ctx)
			if res.Err != nil {
				return res.Err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d records left pending", res.Failed)
			}
			return nil
		},
	}
}
