package domain

import "time"

// TaskState is one stop in a conversion task's lifecycle.
type TaskState string

const (
	TaskCreated       TaskState = "CREATED"
	TaskUploaded      TaskState = "UPLOADED"
	TaskPreprocessing TaskState = "PREPROCESSING"
	TaskRecognizing   TaskState = "RECOGNIZING"
	TaskConverting    TaskState = "CONVERTING"
	TaskRendering     TaskState = "RENDERING"
	TaskCompleted     TaskState = "COMPLETED"
	TaskFailed        TaskState = "FAILED"
	TaskCancelled     TaskState = "CANCELLED"
)

// Terminal reports whether s admits no further transitions.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// OutputFormats is the fixed enumeration of producible artifacts.
var OutputFormats = map[string]bool{
	"png":  true,
	"svg":  true,
	"pdf":  true,
	"midi": true,
	"mid":  true,
}

// ConvertOptions are the client-supplied knobs for one task.
type ConvertOptions struct {
	HighQuality bool     `json:"high_quality"`
	Formats     []string `json:"formats"`
}

// Validate rejects unknown format names and empty format lists.
func (o ConvertOptions) Validate() error {
	if len(o.Formats) == 0 {
		return InvalidOptionsError{Reason: "no output formats requested"}
	}
	for _, f := range o.Formats {
		if !OutputFormats[f] {
			return InvalidOptionsError{Reason: "unknown output format " + f}
		}
	}
	return nil
}

// Task is the state record for one end-to-end conversion request. The task
// store is the single point of synchronization for it; everything here is
// plain data so stores can copy it by value.
type Task struct {
	ID             string            `json:"id"`
	State          TaskState         `json:"status"`
	Progress       int               `json:"progress"` // 0..100, monotonically non-decreasing
	Message        string            `json:"message"`
	Error          string            `json:"error,omitempty"`
	InputPath      string            `json:"input_path"`
	Filename       string            `json:"filename"`
	Options        ConvertOptions    `json:"options"`
	OutputFiles    map[string]string `json:"output_files"` // format -> path
	NotesCount     int               `json:"notes_count"`
	ProcessingTime float64           `json:"processing_time"` // seconds
	RetryOf        string            `json:"retry_of,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
