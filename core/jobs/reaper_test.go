package jobs

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

// fakeWait returns the queued pids then reports that nothing is ready.
type fakeWait struct {
	mu   sync.Mutex
	pids []int
}

func (f *fakeWait) push(pids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pids = append(f.pids, pids...)
}

func (f *fakeWait) wait() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pids) == 0 {
		return 0, unix.ECHILD
	}
	pid := f.pids[0]
	f.pids = f.pids[1:]
	return pid, nil
}

func lookPath(t *testing.T, name string) string {
	t.Helper()

	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func spawn(t *testing.T, path string, args ...string) int {
	t.Helper()

	devNull, err := os.Open(os.DevNull)
	assert.NoError(t, err)
	defer devNull.Close()

	fd := devNull.Fd()
	pid, err := syscall.ForkExec(path, append([]string{path}, args...), &syscall.ProcAttr{
		Files: []uintptr{fd, fd, fd},
	})
	if err != nil {
		t.Errorf("starting %s: %v", path, err)
	}
	return pid
}

func TestReaper_Sweep(t *testing.T) {
	fake := &fakeWait{}
	table := NewTable(nil)
	reaper := NewReaper(table, fake.wait)

	a := table.Add(10, "a")
	b := table.Add(11, "b")
	c := table.Add(12, "c")

	release := reaper.Hold()
	fg := reaper.Watch(20)
	release()

	fake.push(10, 20, 12, 555)
	assert.Equal(t, 4, reaper.Sweep(), "one pass drains every terminated child")

	assert.True(t, isClosed(a.Done()))
	assert.False(t, isClosed(b.Done()))
	assert.True(t, isClosed(c.Done()))
	assert.True(t, isClosed(fg))
	assert.Equal(t, []Job{b}, table.Running())

	assert.Equal(t, 0, reaper.Sweep())
}

func TestReaper_Watch_shared(t *testing.T) {
	fake := &fakeWait{}
	reaper := NewReaper(NewTable(nil), fake.wait)

	first := reaper.Watch(30)
	second := reaper.Watch(30)
	assert.Equal(t, first, second)

	fake.push(30)
	reaper.Sweep()
	assert.True(t, isClosed(first))
}

func TestReaper_background(t *testing.T) {
	table := NewTable(nil)
	reaper := NewReaper(table, nil)
	reaper.Start()
	t.Cleanup(func() { reaper.Close() })

	truePath := lookPath(t, "true")
	release := reaper.Hold()
	var started []Job
	for i := 0; i < 3; i++ {
		started = append(started, table.Add(spawn(t, truePath), "true"))
	}
	release()

	assert.Eventually(t, func() bool {
		return len(table.Running()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	for _, job := range started {
		assert.True(t, isClosed(job.Done()))
	}
}

func TestReaper_foregroundWatch(t *testing.T) {
	reaper := NewReaper(NewTable(nil), nil)
	reaper.Start()
	t.Cleanup(func() { reaper.Close() })

	sleepPath := lookPath(t, "sleep")
	release := reaper.Hold()
	done := reaper.Watch(spawn(t, sleepPath, "0.1"))
	release()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("foreground process was never reaped")
	}
}

func TestReaper_Close(t *testing.T) {
	reaper := NewReaper(NewTable(nil), (&fakeWait{}).wait)
	assert.NoError(t, reaper.Close(), "close without start")
	assert.NoError(t, reaper.Close(), "close is idempotent")
}
