package testutil

// FixedRunID generates the same run ID every time.
//
// This enables deterministic store rows and report output in tests.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a new fixed run ID generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunID) Generate() string {
	return g.id
}
