// Package store provides the default in-memory task store. Task records are
// copied in and out; the mutex makes every mutation atomic with respect to a
// concurrent run transition.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
)

// Memory implements ports.TaskStore with a locked map.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

var _ ports.TaskStore = (*Memory)(nil)

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]domain.Task)}
}

func (m *Memory) Create(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[t.ID]; exists {
		return fmt.Errorf("store: duplicate task id %s", t.ID)
	}
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrUnknownTask
	}
	return cloneTask(t), nil
}

func (m *Memory) Update(_ context.Context, id string, fn func(*domain.Task) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.ErrUnknownTask
	}
	working := cloneTask(t)
	if err := fn(&working); err != nil {
		return err
	}
	m.tasks[id] = working
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *Memory) CountActive(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.tasks {
		if !t.State.Terminal() {
			n++
		}
	}
	return n, nil
}

func (m *Memory) List(_ context.Context) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, cloneTask(t))
	}
	return out, nil
}

// cloneTask deep-copies the map-valued fields so callers never alias the
// stored record.
func cloneTask(t domain.Task) domain.Task {
	out := t
	out.OutputFiles = make(map[string]string, len(t.OutputFiles))
	for k, v := range t.OutputFiles {
		out.OutputFiles[k] = v
	}
	out.Options.Formats = append([]string(nil), t.Options.Formats...)
	return out
}
