package jobs

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/josephlewis42/msh/core/logger"
)

// Status is the lifecycle state of a job.
type Status int

const (
	Running Status = iota
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Job is a background process. Values returned by the Table are snapshots.
type Job struct {
	ID     int
	Pid    int
	Name   string
	Status Status

	done chan struct{}
}

// Done returns a channel that's closed when the job terminates.
func (j Job) Done() <-chan struct{} {
	return j.done
}

// NoSuchJobError is returned when a job selector matches no running job.
type NoSuchJobError struct {
	Arg string
}

func (e *NoSuchJobError) Error() string {
	if e.Arg == "" {
		return "fg: no active jobs"
	}
	return fmt.Sprintf("fg: %s: no such active job", e.Arg)
}

type entry struct {
	Job
	notified bool
}

// Table is the registry of background jobs. Jobs are appended and never
// removed, identifiers start at 1 and are never reused.
type Table struct {
	// Events receives JobStart and JobDone events, it may be nil.
	Events logger.Recorder

	mu      sync.Mutex
	entries []*entry
}

// NewTable creates an empty job table.
func NewTable(events logger.Recorder) *Table {
	return &Table{Events: events}
}

// Add registers a Running job for the process and returns it.
func (t *Table) Add(pid int, name string) Job {
	t.mu.Lock()
	e := &entry{Job: Job{
		ID:     len(t.entries) + 1,
		Pid:    pid,
		Name:   name,
		Status: Running,
		done:   make(chan struct{}),
	}}
	t.entries = append(t.entries, e)
	t.mu.Unlock()

	t.record(logger.JobStart{JobID: e.ID, Pid: pid, Name: name})
	return e.Job
}

// MarkDone moves the job with the given identifier to Done. It reports
// whether the job existed and was Running.
func (t *Table) MarkDone(id int) (Job, bool) {
	return t.transition(func(e *entry) bool { return e.ID == id })
}

// Reap marks the Running job for pid as Done. Unknown pids are ignored.
func (t *Table) Reap(pid int) (Job, bool) {
	return t.transition(func(e *entry) bool { return e.Pid == pid })
}

func (t *Table) transition(match func(*entry) bool) (Job, bool) {
	t.mu.Lock()
	var found *entry
	for _, e := range t.entries {
		if e.Status == Running && match(e) {
			found = e
			break
		}
	}
	if found == nil {
		t.mu.Unlock()
		return Job{}, false
	}
	found.Status = Done
	close(found.done)
	job := found.Job
	t.mu.Unlock()

	t.record(logger.JobDone{JobID: job.ID, Pid: job.Pid, Name: job.Name})
	return job, true
}

// Running returns the Running jobs in creation order.
func (t *Table) Running() []Job {
	return t.filter(func(e *entry) bool { return e.Status == Running })
}

// All returns every job ever added in creation order.
func (t *Table) All() []Job {
	return t.filter(func(*entry) bool { return true })
}

// Finished returns Done jobs that haven't been returned by a previous call.
func (t *Table) Finished() []Job {
	return t.filter(func(e *entry) bool {
		if e.Status != Done || e.notified {
			return false
		}
		e.notified = true
		return true
	})
}

// Acknowledge stops a Done job from being returned by Finished.
func (t *Table) Acknowledge(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.ID == id && e.Status == Done {
			e.notified = true
		}
	}
}

func (t *Table) filter(keep func(*entry) bool) (out []Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if keep(e) {
			out = append(out, e.Job)
		}
	}
	return
}

// Select finds a Running job. An empty arg selects the earliest Running job,
// otherwise arg is a job identifier with an optional leading '%'.
func (t *Table) Select(arg string) (Job, error) {
	id := 0
	if arg != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(arg, "%"))
		if err != nil || n < 1 {
			return Job{}, &NoSuchJobError{Arg: arg}
		}
		id = n
	}

	for _, job := range t.Running() {
		if id == 0 || job.ID == id {
			return job, nil
		}
	}
	return Job{}, &NoSuchJobError{Arg: arg}
}

func (t *Table) record(event logger.LogType) {
	if t.Events == nil {
		return
	}
	if err := t.Events.Record(event); err != nil {
		log.Printf("recording %s: %v", event.EventName(), err)
	}
}
