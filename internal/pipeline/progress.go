package pipeline

import "log/slog"

// ProgressListener receives step records and state changes as a run advances.
// The server streams these over WebSocket; the CLI logs them.
type ProgressListener interface {
	OnStep(record StepRecord)
	OnStateChange(state State)
}

// NoopListener implements ProgressListener and does nothing. Useful as a
// default when no progress reporting is needed.
type NoopListener struct{}

func (NoopListener) OnStep(StepRecord)   {}
func (NoopListener) OnStateChange(State) {}

// LogListener reports progress through slog.
type LogListener struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogListener creates a log-based progress reporter.
func NewLogListener(logger *slog.Logger, level slog.Level) *LogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener{logger: logger, level: level}
}

func (l *LogListener) OnStep(record StepRecord) {
	l.logger.Log(nil, l.level, "pipeline step",
		"step", record.Name,
		"status", record.Status,
		"details", record.Details,
		"duration", record.Duration)
}

func (l *LogListener) OnStateChange(state State) {
	l.logger.Log(nil, l.level, "pipeline state", "state", state)
}

// MultiListener fans progress out to several listeners.
type MultiListener struct {
	listeners []ProgressListener
}

// NewMultiListener combines multiple progress listeners.
func NewMultiListener(listeners ...ProgressListener) *MultiListener {
	return &MultiListener{listeners: listeners}
}

// Add registers another listener.
func (m *MultiListener) Add(listener ProgressListener) {
	m.listeners = append(m.listeners, listener)
}

func (m *MultiListener) OnStep(record StepRecord) {
	for _, l := range m.listeners {
		l.OnStep(record)
	}
}

func (m *MultiListener) OnStateChange(state State) {
	for _, l := range m.listeners {
		l.OnStateChange(state)
	}
}
