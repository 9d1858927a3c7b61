// Package loggertest contains recorders for use in tests.
package loggertest

import (
	"sync"

	"github.com/josephlewis42/msh/core/logger"
)

// Memory keeps every recorded event in order.
type Memory struct {
	mu     sync.Mutex
	events []logger.LogType
}

var _ logger.Recorder = (*Memory)(nil)

func (m *Memory) Record(event logger.LogType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []logger.LogType {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]logger.LogType(nil), m.events...)
}

// Named returns the names of the recorded events.
func (m *Memory) Named() (out []string) {
	for _, event := range m.Events() {
		out = append(out, event.EventName())
	}
	return
}
