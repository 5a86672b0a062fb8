// Package pipeline orchestrates the photo-to-pendant flow: upload, detection,
// crop, engraving, compositing, optimization. Stages convert their own
// failures into step records; only mandatory gates terminate a run.
package pipeline

import (
	"fmt"
	"time"

	"github.com/pupring/engrave/internal/detect"
	"github.com/pupring/engrave/internal/engraving"
	"github.com/pupring/engrave/internal/facecrop"
)

// State is the orchestrator's position in the processing flow.
type State string

const (
	StateUploaded   State = "uploaded"
	StateDetected   State = "detected"
	StateCropped    State = "cropped"
	StateEngraved   State = "engraved"
	StateComposited State = "composited"
	StateOptimized  State = "optimized"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// StepStatus classifies the outcome of one pipeline step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Step names, in flow order.
const (
	StepUpload       = "upload"
	StepDetection    = "detection"
	StepCropping     = "cropping"
	StepEngraving    = "engraving"
	StepCompositing  = "compositing"
	StepOptimization = "optimization"
)

// StepRecord captures the outcome of one step for diagnostics and progress
// streaming.
type StepRecord struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Request is one processing job. CustomBox, when set, bypasses the external
// detector entirely and is treated as pre-validated with confidence 1.0.
type Request struct {
	Filename     string
	Data         []byte
	Size         int64
	LastModified time.Time
	PetName      string
	CustomBox    *facecrop.BoundingBox

	// Listener, when set, additionally receives this run's progress events.
	// It does not participate in cache identity.
	Listener ProgressListener
}

// Result aggregates everything one run produced. It is created empty, grows
// additively as stages complete, and is immutable once returned.
type Result struct {
	Success          bool                             `json:"success"`
	State            State                            `json:"state"`
	Error            string                           `json:"error,omitempty"`
	RequiresNewImage bool                             `json:"requiresNewImage,omitempty"`
	OriginalURL      string                           `json:"originalUrl,omitempty"`
	FinalURL         string                           `json:"finalUrl,omitempty"`
	Styles           map[string]engraving.StyleOutput `json:"styles,omitempty"`
	Composites       map[string]string                `json:"composites,omitempty"`
	Steps            []StepRecord                     `json:"steps"`
	DetectionSource  detect.Source                    `json:"detectionSource,omitempty"`
	Cached           bool                             `json:"cached,omitempty"`
	Elapsed          time.Duration                    `json:"elapsed"`

	// listener receives this run's progress events. Resolved once at the
	// start of a run; nil on cached copies.
	listener ProgressListener
}

// StyleURLs returns the style-name to URL mapping of the result.
func (r *Result) StyleURLs() map[string]string {
	urls := make(map[string]string, len(r.Styles))
	for name, out := range r.Styles {
		urls[name] = out.URL
	}
	return urls
}

// RejectionError is terminal and user-correctable: the uploaded photo, not
// the system, is the problem. RequiresNewImage distinguishes it from
// try-again-later failures.
type RejectionError struct {
	Message string
	Err     error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RejectionError) Unwrap() error { return e.Err }

// FatalError is terminal and system-side: a mandatory stage failed.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
