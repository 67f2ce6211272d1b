package router

// Request carries one inbound request through the routing pipeline.
// It is immutable once built; enhancement derives a new prompt rather
// than mutating the request.
type Request struct {
	Text            string            `json:"text"`
	ExplicitBackend string            `json:"explicit_backend,omitempty"`
	WorkspaceHint   map[string]string `json:"workspace_hint,omitempty"`
}

// Decision is the selector's output: the ordered candidates the cascade
// will attempt, and the reason the primary was chosen. Candidates hold
// every enabled backend exactly once; the list is empty only when no
// backend is enabled.
type Decision struct {
	Candidates []string `json:"candidates"`
	Reason     string   `json:"reason"`
}

// Status classifies the outcome of one backend attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// Attempt records one backend attempt within a cascade.
type Attempt struct {
	Backend   string `json:"backend"`
	Status    Status `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Response is the canonical result shape. Every routed request produces
// exactly one, including the no-backends and all-failed paths.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FallbackFrom string `json:"fallback_from,omitempty"`
	Enhanced     bool   `json:"enhanced"`
	Error        string `json:"error,omitempty"`
}

// Report is the per-request observability view: what was decided and
// every attempt made. It is handed to the caller and not retained.
type Report struct {
	RequestID string    `json:"request_id"`
	Decision  Decision  `json:"decision"`
	Attempts  []Attempt `json:"attempts"`
	Enhanced  bool      `json:"enhanced"`
}
