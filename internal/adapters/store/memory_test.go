package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/altolabs/clefshift/internal/core/domain"
)

func sampleTask(id string) domain.Task {
	now := time.Now()
	return domain.Task{
		ID:          id,
		State:       domain.TaskUploaded,
		Message:     "upload received",
		InputPath:   "/tmp/" + id + "/score.png",
		Filename:    "score.png",
		Options:     domain.ConvertOptions{Formats: []string{"png"}},
		OutputFiles: map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryCRUD(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Create(ctx, sampleTask("t1")); err != nil {
		t.Fatal(err)
	}
	if err := m.Create(ctx, sampleTask("t1")); err == nil {
		t.Fatal("duplicate create succeeded")
	}

	got, err := m.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "score.png" {
		t.Errorf("filename = %q", got.Filename)
	}

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, domain.ErrUnknownTask) {
		t.Fatalf("Get missing: %v", err)
	}

	err = m.Update(ctx, "t1", func(task *domain.Task) error {
		task.State = domain.TaskCompleted
		task.Progress = 100
		task.OutputFiles["png"] = "/tmp/t1/converted.png"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = m.Get(ctx, "t1")
	if got.State != domain.TaskCompleted || got.OutputFiles["png"] == "" {
		t.Errorf("update not applied: %+v", got)
	}

	if err := m.Delete(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "t1"); err != nil {
		t.Fatal("delete is not idempotent")
	}
	if _, err := m.Get(ctx, "t1"); !errors.Is(err, domain.ErrUnknownTask) {
		t.Fatal("task survived delete")
	}
}

func TestMemoryUpdateRollsBackOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Create(ctx, sampleTask("t1")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("no")
	err := m.Update(ctx, "t1", func(task *domain.Task) error {
		task.State = domain.TaskFailed
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update: %v", err)
	}
	got, _ := m.Get(ctx, "t1")
	if got.State != domain.TaskUploaded {
		t.Errorf("state = %s after failed update, want UPLOADED", got.State)
	}

	if err := m.Update(ctx, "missing", func(*domain.Task) error { return nil }); !errors.Is(err, domain.ErrUnknownTask) {
		t.Fatalf("Update missing: %v", err)
	}
}

func TestMemoryCountActive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := m.Create(ctx, sampleTask(id)); err != nil {
			t.Fatal(err)
		}
	}
	m.Update(ctx, "c", func(task *domain.Task) error {
		task.State = domain.TaskFailed
		return nil
	})

	n, err := m.CountActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("active = %d, want 2", n)
	}

	list, err := m.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Errorf("list = %d tasks, want 3", len(list))
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Create(ctx, sampleTask("t1")); err != nil {
		t.Fatal(err)
	}

	got, _ := m.Get(ctx, "t1")
	got.OutputFiles["png"] = "sneaky"
	got.Options.Formats[0] = "wav"

	fresh, _ := m.Get(ctx, "t1")
	if len(fresh.OutputFiles) != 0 {
		t.Error("stored output map aliased by Get")
	}
	if fresh.Options.Formats[0] != "png" {
		t.Error("stored formats slice aliased by Get")
	}
}
