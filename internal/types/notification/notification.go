package notification

// Outcome is the result of one email attempted during a sweep. It is never
// persisted.
type Outcome struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SweepResult is the JSON body returned by a successful sweep invocation.
type SweepResult struct {
	Message string    `json:"message"`
	Results []Outcome `json:"results"`

	Resets int `json:"-"`
}

// Counts returns the number of successful and failed outcomes.
func (r *SweepResult) Counts() (sent, failed int) {
	for _, o := range r.Results {
		if o.Success {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}
