// Package migrate orchestrates per-query migration: sanitize, attempt a
// structural tree-based rewrite, fall back to direct text substitution when
// the query does not parse, and apply the resulting replacement log to the
// original text.
package migrate

// QueryRecord is one uploaded query and its migration outcome. OldURL,
// NewURL and Status are carried through for downstream tooling and are not
// interpreted here, except that Status records a per-query failure.
type QueryRecord struct {
	Name          string
	Description   string
	OriginalQuery string
	UpdatedQuery  string
	Impacted      bool
	OldURL        string
	NewURL        string
	Status        string
}

// ParseError reports that a query could not be parsed as a SELECT statement.
// It is recoverable: the orchestrator answers it with the fallback rewriter.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "structural parse failed: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
