// Package scheduler owns the timers for the configured cron jobs.
//
// Each job is a *crontask.Task paired with its period. The scheduler only
// triggers: every fire enqueues one tick into the task engine, which runs
// it with overlap protection, so a job's ticks never run concurrently.
package scheduler
