package jobs

import (
	"context"

	"github.com/josephlewis42/msh/core/logger"
)

// Foreground selects a Running job (see Table.Select), calls announce with it
// and blocks until the job terminates or ctx is done.
func Foreground(ctx context.Context, table *Table, arg string, announce func(Job)) (Job, error) {
	job, err := table.Select(arg)
	if err != nil {
		return Job{}, err
	}

	if announce != nil {
		announce(job)
	}

	select {
	case <-job.Done():
	case <-ctx.Done():
		return job, ctx.Err()
	}

	// The reaper normally got here first.
	table.MarkDone(job.ID)
	job.Status = Done

	table.record(logger.Foreground{JobID: job.ID, Pid: job.Pid, Name: job.Name})
	return job, nil
}
