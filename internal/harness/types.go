package harness

// Trace event types.
const (
	EventStatement = "statement"
	EventResponse  = "response"
	EventError     = "error"
)

// TraceEvent is one entry of a scenario trace: a statement sent to
// storage, or the outcome of a step.
type TraceEvent struct {
	Step int    `json:"step"`
	Type string `json:"type"`

	// Text is the statement, or the code of an error.
	Text string `json:"text,omitempty"`

	// Value is the rendered response of a successful step.
	Value any `json:"value,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation or assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Statements returns the statement texts of the trace in order.
func (r *Result) Statements() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Type == EventStatement {
			out = append(out, e.Text)
		}
	}
	return out
}

// Outcomes returns the response and error events, one per step.
func (r *Result) Outcomes() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type != EventStatement {
			out = append(out, e)
		}
	}
	return out
}
