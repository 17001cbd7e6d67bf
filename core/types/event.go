package types

// Event is a structured, append-only record of a state change. Once written to
// the event log it is never mutated.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
