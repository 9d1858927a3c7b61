package proc

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/josephlewis42/msh/core/jobs"
	"github.com/josephlewis42/msh/core/logger"
	"github.com/josephlewis42/msh/core/pipeline"
	"golang.org/x/sys/unix"
)

// LaunchError is returned if a stage's process couldn't be created.
type LaunchError struct {
	Stage int
	Name  string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("can't start %s (stage %d): %v", e.Name, e.Stage+1, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

type forkExecFunc func(argv0 string, argv []string, attr *syscall.ProcAttr) (pid int, err error)

// Launcher starts pipelines. The Reaper must be started before Run is called.
type Launcher struct {
	Jobs   *jobs.Table
	Reaper *jobs.Reaper
	// Events receives PipelineStart events, it may be nil.
	Events logger.Recorder

	// Executable is re-executed for every stage, it defaults to the running
	// program.
	Executable string

	forkExec forkExecFunc
}

// NewLauncher creates a launcher that adds background jobs to the table.
func NewLauncher(table *jobs.Table, reaper *jobs.Reaper, events logger.Recorder) *Launcher {
	return &Launcher{
		Jobs:   table,
		Reaper: reaper,
		Events: events,
	}
}

// Run creates one process per stage of the plan and closes the plan's
// descriptors. Foreground pipelines block until every stage has been reaped.
// Background pipelines add one job per stage to the table and return them.
//
// If a stage can't be created, the stages already running are killed and
// reaped, no job is recorded and a LaunchError is returned.
func (l *Launcher) Run(ctx context.Context, plan *pipeline.Plan) ([]jobs.Job, error) {
	defer plan.Close()

	exe, err := l.executable()
	if err != nil {
		return nil, &LaunchError{Stage: 0, Name: plan.Stages[0].Name(), Err: err}
	}

	l.record(logger.PipelineStart{
		Command:    plan.Text,
		Stages:     plan.Len(),
		Background: plan.Background,
	})

	release := l.Reaper.Hold()
	var pids []int
	var exits []<-chan struct{}
	for i, stage := range plan.Stages {
		pid, err := l.start(exe, plan, i)
		if err != nil {
			release()
			plan.Close()
			abort(pids, exits)
			return nil, &LaunchError{Stage: i, Name: stage.Name(), Err: err}
		}

		pids = append(pids, pid)
		exits = append(exits, l.Reaper.Watch(pid))
	}

	var started []jobs.Job
	if plan.Background {
		for i, stage := range plan.Stages {
			started = append(started, l.Jobs.Add(pids[i], stage.Name()))
		}
	}
	release()

	// Stages only see end of file once every copy of the write ends is gone.
	if err := plan.Close(); err != nil {
		log.Printf("closing pipeline: %v", err)
	}

	if plan.Background {
		return started, nil
	}

	for _, exit := range exits {
		select {
		case <-exit:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

func (l *Launcher) start(exe string, plan *pipeline.Plan, i int) (int, error) {
	stage := plan.Stages[i]
	w := plan.Wiring(i)

	forkExec := l.forkExec
	if forkExec == nil {
		forkExec = syscall.ForkExec
	}

	return forkExec(exe, stageArgs(stage.Path, stage.Args, plan.Background), &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{w.Stdin.Fd(), w.Stdout.Fd(), w.Stderr.Fd()},
	})
}

func (l *Launcher) executable() (string, error) {
	if l.Executable != "" {
		return l.Executable, nil
	}
	return os.Executable()
}

func (l *Launcher) record(event logger.LogType) {
	if l.Events == nil {
		return
	}
	if err := l.Events.Record(event); err != nil {
		log.Printf("recording %s: %v", event.EventName(), err)
	}
}

// abort kills partially launched stages and waits for the reaper to collect
// them.
func abort(pids []int, exits []<-chan struct{}) {
	for _, pid := range pids {
		if err := unix.Kill(pid, unix.SIGKILL); err != nil {
			log.Printf("killing stage %d: %v", pid, err)
		}
	}
	for _, exit := range exits {
		<-exit
	}
}
