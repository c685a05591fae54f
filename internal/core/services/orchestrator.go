// Package services contains the conversion task orchestrator: a
// finite-state machine per task that sequences preprocessing, recognition,
// clef transposition and rendering, and owns task lifecycle, progress,
// timeouts and cleanup.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
	"github.com/altolabs/clefshift/internal/core/transpose"
)

// Stage boundaries for the progress percentage. Progress only ever moves
// forward; COMPLETED pins it at 100.
var stageProgress = map[domain.TaskState]int{
	domain.TaskPreprocessing: 10,
	domain.TaskRecognizing:   40,
	domain.TaskConverting:    70,
	domain.TaskRendering:     90,
	domain.TaskCompleted:     100,
}

var stageMessage = map[domain.TaskState]string{
	domain.TaskPreprocessing: "preprocessing image",
	domain.TaskRecognizing:   "recognizing score",
	domain.TaskConverting:    "converting clef",
	domain.TaskRendering:     "rendering output",
	domain.TaskCompleted:     "conversion complete",
}

// Options tune one Orchestrator instance.
type Options struct {
	WorkDir    string        // root of the per-task work directories
	Timeout    time.Duration // wall-clock budget per task, from upload
	Capacity   int           // max concurrently active tasks admitted
	TargetClef domain.Clef   // clef every score is re-expressed under
}

// DefaultOptions mirror the documented defaults: 300 s budget, 10 tasks.
func DefaultOptions(workDir string) Options {
	return Options{
		WorkDir:    workDir,
		Timeout:    300 * time.Second,
		Capacity:   10,
		TargetClef: domain.ClefTreble,
	}
}

// Orchestrator coordinates the external collaborators and the transposition
// engine for every conversion task. Tasks are independent units of work; the
// task store is the only shared state between a run and concurrent
// status/cancel/cleanup calls.
type Orchestrator struct {
	store    ports.TaskStore
	pre      ports.Preprocessor
	rec      ports.Recognizer
	engine   *transpose.Engine
	renderer ports.Renderer
	midi     ports.MIDIWriter
	opts     Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewOrchestrator constructs an Orchestrator. All collaborators are
// required; Options fields fall back to DefaultOptions values when zero.
func NewOrchestrator(
	store ports.TaskStore,
	pre ports.Preprocessor,
	rec ports.Recognizer,
	engine *transpose.Engine,
	renderer ports.Renderer,
	midi ports.MIDIWriter,
	opts Options,
) *Orchestrator {
	def := DefaultOptions(opts.WorkDir)
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Capacity <= 0 {
		opts.Capacity = def.Capacity
	}
	if opts.TargetClef == "" {
		opts.TargetClef = def.TargetClef
	}
	return &Orchestrator{
		store:    store,
		pre:      pre,
		rec:      rec,
		engine:   engine,
		renderer: renderer,
		midi:     midi,
		opts:     opts,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit validates options, persists the uploaded image under a fresh task
// id and returns the task in state UPLOADED. It applies backpressure: when
// the active-task cap is reached it fails with domain.ErrCapacityExceeded
// instead of queuing unboundedly.
func (o *Orchestrator) Submit(ctx context.Context, filename string, src io.Reader, options domain.ConvertOptions) (domain.Task, error) {
	if err := options.Validate(); err != nil {
		return domain.Task{}, err
	}

	// Admission and record creation happen under one lock so two racing
	// submits cannot both squeeze under the cap.
	o.mu.Lock()
	defer o.mu.Unlock()

	active, err := o.store.CountActive(ctx)
	if err != nil {
		return domain.Task{}, fmt.Errorf("orchestrator: count active: %w", err)
	}
	if active >= o.opts.Capacity {
		return domain.Task{}, fmt.Errorf("orchestrator: %d active tasks: %w", active, domain.ErrCapacityExceeded)
	}

	id := uuid.New().String()
	dir := o.taskDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Task{}, fmt.Errorf("orchestrator: create work dir: %w", err)
	}

	inputPath := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(inputPath)
	if err != nil {
		return domain.Task{}, fmt.Errorf("orchestrator: save upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return domain.Task{}, fmt.Errorf("orchestrator: save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Task{}, fmt.Errorf("orchestrator: save upload: %w", err)
	}

	now := time.Now()
	task := domain.Task{
		ID:          id,
		State:       domain.TaskUploaded,
		Progress:    0,
		Message:     "upload received",
		InputPath:   inputPath,
		Filename:    filepath.Base(filename),
		Options:     options,
		OutputFiles: map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.Create(ctx, task); err != nil {
		return domain.Task{}, fmt.Errorf("orchestrator: store task: %w", err)
	}
	return task, nil
}

// Retry creates a new task sharing the original task's uploaded image,
// starting again from UPLOADED. The original record is left untouched.
func (o *Orchestrator) Retry(ctx context.Context, id string) (domain.Task, error) {
	orig, err := o.store.Get(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	src, err := os.Open(orig.InputPath)
	if err != nil {
		return domain.Task{}, fmt.Errorf("orchestrator: reopen upload: %w", err)
	}
	defer src.Close()

	task, err := o.Submit(ctx, orig.Filename, src, orig.Options)
	if err != nil {
		return domain.Task{}, err
	}
	err = o.store.Update(ctx, task.ID, func(t *domain.Task) error {
		t.RetryOf = orig.ID
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	task.RetryOf = orig.ID
	return task, nil
}

// Configure replaces a waiting task's options before its run starts.
// Tasks that already left UPLOADED keep the options they ran with.
func (o *Orchestrator) Configure(ctx context.Context, id string, options domain.ConvertOptions) error {
	if err := options.Validate(); err != nil {
		return err
	}
	return o.store.Update(ctx, id, func(t *domain.Task) error {
		if t.State != domain.TaskUploaded {
			return fmt.Errorf("orchestrator: cannot reconfigure task in state %s: %w", t.State, domain.ErrTaskActive)
		}
		t.Options = options
		t.UpdatedAt = time.Now()
		return nil
	})
}

// Run drives the task through the pipeline to a terminal state. It is the
// long-running operation and is meant to execute on its own goroutine (the
// worker pool); Status, Cancel and Cleanup are safe to call concurrently.
// Running an already-running task is a no-op.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	task, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}

	// Claim the task atomically so two Run calls cannot both drive it.
	var alreadyRunning bool
	err = o.store.Update(ctx, id, func(t *domain.Task) error {
		switch t.State {
		case domain.TaskUploaded:
			t.State = domain.TaskPreprocessing
			t.Progress = stageProgress[domain.TaskPreprocessing]
			t.Message = stageMessage[domain.TaskPreprocessing]
			t.UpdatedAt = time.Now()
			return nil
		case domain.TaskPreprocessing, domain.TaskRecognizing, domain.TaskConverting, domain.TaskRendering:
			alreadyRunning = true
			return nil
		default:
			return fmt.Errorf("orchestrator: cannot run task in state %s", t.State)
		}
	})
	if err != nil || alreadyRunning {
		return err
	}

	// The wall-clock budget is anchored at upload, not at run start.
	runCtx, cancel := context.WithDeadline(ctx, task.CreatedAt.Add(o.opts.Timeout))
	o.mu.Lock()
	o.cancels[id] = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		delete(o.cancels, id)
		o.mu.Unlock()
	}()

	started := time.Now()
	if err := o.runPipeline(runCtx, id, task); err != nil {
		return err
	}
	return o.store.Update(context.Background(), id, func(t *domain.Task) error {
		if t.State == domain.TaskCompleted {
			t.ProcessingTime = time.Since(started).Seconds()
		}
		return nil
	})
}

// runPipeline executes the four stages. Cancellation is cooperative: it is
// checked between stages, and a collaborator call already in progress is
// abandoned through its context rather than force-killed, its result
// discarded.
func (o *Orchestrator) runPipeline(ctx context.Context, id string, task domain.Task) error {
	dir := o.taskDir(id)

	// PREPROCESSING was entered by the claim in Run.
	enhanced, err := o.pre.Preprocess(ctx, task.InputPath, dir, task.Options.HighQuality)
	if err != nil {
		return o.finishErr(ctx, id, domain.CollaboratorError{Stage: "preprocessing", Err: err})
	}
	if err := o.advance(ctx, id, domain.TaskRecognizing); err != nil {
		return err
	}

	result, err := o.rec.Recognize(ctx, enhanced)
	if err != nil {
		return o.finishErr(ctx, id, domain.CollaboratorError{Stage: "recognition", Err: err})
	}
	// An external recognizer may omit confidence; substitute the documented
	// default instead of failing.
	if result.Confidence < 0 || result.Confidence > 1 {
		result.Confidence = 0
	}
	if result.ProcessingTime < 0 {
		result.ProcessingTime = 0
	}
	if err := result.Validate(); err != nil {
		return o.finishErr(ctx, id, domain.CollaboratorError{Stage: "recognition", Err: err})
	}
	if err := o.advance(ctx, id, domain.TaskConverting); err != nil {
		return err
	}

	converted := result
	if result.Metadata.Clef != o.opts.TargetClef {
		converted, err = o.engine.Convert(result, result.Metadata.Clef, o.opts.TargetClef)
		if err != nil {
			// Invariant violations are logic defects: fatal, never retried.
			return o.finishErr(ctx, id, err)
		}
	} else {
		log.Printf("WARN orchestrator: task %s already in %s, skipping conversion", id, o.opts.TargetClef)
	}
	if err := o.advance(ctx, id, domain.TaskRendering); err != nil {
		return err
	}

	outputs := make(map[string]string, len(task.Options.Formats))
	for _, format := range task.Options.Formats {
		outPath := filepath.Join(dir, "converted."+format)
		switch format {
		case "midi", "mid":
			err = o.midi.WriteMIDI(ctx, converted, outPath)
		default:
			err = o.renderer.Render(ctx, converted, outPath, format)
		}
		if err != nil {
			return o.finishErr(ctx, id, domain.CollaboratorError{Stage: "rendering", Err: err})
		}
		outputs[format] = outPath
	}

	if err := o.checkInterrupt(ctx, id); err != nil {
		return err
	}
	return o.store.Update(context.Background(), id, func(t *domain.Task) error {
		t.State = domain.TaskCompleted
		t.Progress = stageProgress[domain.TaskCompleted]
		t.Message = stageMessage[domain.TaskCompleted]
		t.OutputFiles = outputs
		t.NotesCount = len(converted.Notes)
		t.UpdatedAt = time.Now()
		return nil
	})
}

// advance moves the task into the next stage unless the run was cancelled
// or timed out between stages.
func (o *Orchestrator) advance(ctx context.Context, id string, next domain.TaskState) error {
	if err := o.checkInterrupt(ctx, id); err != nil {
		return err
	}
	// Fresh context: the stage record must be written even if the run
	// context dies between the check and the update.
	return o.store.Update(context.Background(), id, func(t *domain.Task) error {
		t.State = next
		if p := stageProgress[next]; p > t.Progress {
			t.Progress = p
		}
		t.Message = stageMessage[next]
		t.UpdatedAt = time.Now()
		return nil
	})
}

// checkInterrupt turns context termination into the matching terminal state
// and reports it; a live context is a nil return.
func (o *Orchestrator) checkInterrupt(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
	default:
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if err := o.markTerminal(id, domain.TaskFailed, domain.ErrTimeout.Error(), "task exceeded its time budget"); err != nil {
			return err
		}
		return domain.ErrTimeout
	}
	if err := o.markTerminal(id, domain.TaskCancelled, "", "task cancelled"); err != nil {
		return err
	}
	return context.Canceled
}

// finishErr records a failed stage, unless the underlying cause was the run
// context being cancelled or expiring mid-call.
func (o *Orchestrator) finishErr(ctx context.Context, id string, cause error) error {
	if ctx.Err() != nil {
		return o.checkInterrupt(ctx, id)
	}
	log.Printf("WARN orchestrator: task %s failed: %v", id, cause)
	if err := o.markTerminal(id, domain.TaskFailed, cause.Error(), "conversion failed: "+cause.Error()); err != nil {
		return err
	}
	return cause
}

func (o *Orchestrator) markTerminal(id string, state domain.TaskState, errText, message string) error {
	// A fresh context: the run context may already be dead.
	return o.store.Update(context.Background(), id, func(t *domain.Task) error {
		if t.State.Terminal() {
			return nil
		}
		t.State = state
		t.Error = errText
		t.Message = message
		t.UpdatedAt = time.Now()
		return nil
	})
}

// Status returns the current task record. It is read-only and side-effect
// free; unknown ids yield domain.ErrUnknownTask.
func (o *Orchestrator) Status(ctx context.Context, id string) (domain.Task, error) {
	return o.store.Get(ctx, id)
}

// Cancel requests best-effort cancellation. A task that never started
// running is moved to CANCELLED directly; a running one has its context
// cancelled and the run loop records the terminal state between stages.
// Cancelling a terminal task is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	task, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.State.Terminal() {
		return nil
	}

	o.mu.Lock()
	cancel, running := o.cancels[id]
	o.mu.Unlock()

	if running {
		cancel()
		return nil
	}
	return o.markTerminal(id, domain.TaskCancelled, "", "task cancelled")
}

// Cleanup releases every artifact of a terminal task: the work directory
// with the upload, intermediates and outputs, plus the task record itself.
// It is idempotent; cleaning an unknown id is not an error.
func (o *Orchestrator) Cleanup(ctx context.Context, id string) error {
	task, err := o.store.Get(ctx, id)
	if errors.Is(err, domain.ErrUnknownTask) {
		return nil
	}
	if err != nil {
		return err
	}
	if !task.State.Terminal() {
		return fmt.Errorf("orchestrator: task %s is still %s: %w", id, task.State, domain.ErrTaskActive)
	}
	if err := os.RemoveAll(o.taskDir(id)); err != nil {
		return fmt.Errorf("orchestrator: remove work dir: %w", err)
	}
	return o.store.Delete(ctx, id)
}

// SweepExpired cleans up tasks older than ttl, cancelling stragglers first.
// The serve command runs it on a background ticker.
func (o *Orchestrator) SweepExpired(ctx context.Context, ttl time.Duration) {
	tasks, err := o.store.List(ctx)
	if err != nil {
		log.Printf("WARN orchestrator: sweep: %v", err)
		return
	}
	cutoff := time.Now().Add(-ttl)
	for _, t := range tasks {
		if !t.CreatedAt.Before(cutoff) {
			continue
		}
		if !t.State.Terminal() {
			if err := o.Cancel(ctx, t.ID); err != nil {
				log.Printf("WARN orchestrator: sweep cancel %s: %v", t.ID, err)
			}
			continue // cleaned up on the next sweep once terminal
		}
		if err := o.Cleanup(ctx, t.ID); err != nil {
			log.Printf("WARN orchestrator: sweep cleanup %s: %v", t.ID, err)
		}
	}
}

func (o *Orchestrator) taskDir(id string) string {
	return filepath.Join(o.opts.WorkDir, id)
}
