package world

type WorldMetrics struct {
	Tick       uint64  `json:"tick"`
	Machines   int     `json:"machines"`
	Levers     int     `json:"levers"`
	Sinks      int     `json:"sinks"`
	QueueDepth int     `json:"queue_depth"`
	StepMS     float64 `json:"step_ms"`

	// Synced and TaskErrors count the last step only.
	Synced     int `json:"synced"`
	TaskErrors int `json:"task_errors"`
}

// Metrics returns the figures recorded at the end of the last step. Safe from
// any goroutine.
func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}
