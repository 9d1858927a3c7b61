package jobs

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// WaitFunc reclaims one terminated child without blocking. It returns pid 0
// when no child has terminated yet.
type WaitFunc func() (pid int, err error)

// WaitAny reclaims any terminated child of the process.
func WaitAny() (int, error) {
	var status unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return pid, err
	}
}

// Reaper reclaims terminated children whenever SIGCHLD is delivered and
// dispatches them to the job table and to foreground waiters.
//
// Launching a process must happen while the dispatch lock is held (see Hold)
// so a child can't be reaped before its pid is registered.
type Reaper struct {
	table *Table
	wait  WaitFunc

	dispatch sync.Mutex

	waitersMu sync.Mutex
	waiters   map[int]chan struct{}

	sigs      chan os.Signal
	stop      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewReaper creates a reaper for the table. A nil wait uses WaitAny.
func NewReaper(table *Table, wait WaitFunc) *Reaper {
	if wait == nil {
		wait = WaitAny
	}
	return &Reaper{
		table:   table,
		wait:    wait,
		waiters: make(map[int]chan struct{}),
		sigs:    make(chan os.Signal, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start subscribes to SIGCHLD and reaps in the background until Close.
func (r *Reaper) Start() {
	r.startOnce.Do(func() {
		signal.Notify(r.sigs, syscall.SIGCHLD)
		go r.loop()
	})
}

func (r *Reaper) loop() {
	defer close(r.stopped)
	for {
		select {
		case <-r.stop:
			return
		case <-r.sigs:
			r.Sweep()
		}
	}
}

// Close stops the background goroutine and reclaims anything that already
// terminated.
func (r *Reaper) Close() error {
	r.closeOnce.Do(func() {
		signal.Stop(r.sigs)
		close(r.stop)
		r.startOnce.Do(func() { close(r.stopped) })
		<-r.stopped
		r.Sweep()
	})
	return nil
}

// Hold takes the dispatch lock, no child is reaped until release is called.
func (r *Reaper) Hold() (release func()) {
	r.dispatch.Lock()
	return r.dispatch.Unlock
}

// Watch returns a channel that's closed when pid is reaped. It must be called
// while holding the dispatch lock, before the pid could have been reaped.
func (r *Reaper) Watch(pid int) <-chan struct{} {
	r.waitersMu.Lock()
	defer r.waitersMu.Unlock()

	ch, ok := r.waiters[pid]
	if !ok {
		ch = make(chan struct{})
		r.waiters[pid] = ch
	}
	return ch
}

// Sweep reclaims every terminated child, it returns the number reaped.
// Notifications coalesce so one pass must drain everything.
func (r *Reaper) Sweep() int {
	r.dispatch.Lock()
	defer r.dispatch.Unlock()

	reaped := 0
	for {
		pid, err := r.wait()
		if err != nil || pid <= 0 {
			// ECHILD means there are no children left.
			return reaped
		}
		reaped++
		r.deliver(pid)
	}
}

func (r *Reaper) deliver(pid int) {
	r.table.Reap(pid)

	r.waitersMu.Lock()
	ch, ok := r.waiters[pid]
	delete(r.waiters, pid)
	r.waitersMu.Unlock()

	if ok {
		close(ch)
	}
}
