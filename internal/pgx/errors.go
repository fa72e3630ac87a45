package pgx

import "fmt"

// ErrorKind is the closed set of structured error categories the pipeline
// can raise. Callers must switch on Kind, never on the Message string —
// this is the re-architecture of the source's exception-based control
// flow described in the design notes.
type ErrorKind string

const (
	ErrUnsupportedDrug      ErrorKind = "UnsupportedDrug"
	ErrUnsupportedGene      ErrorKind = "UnsupportedGene"
	ErrUnresolvedPhenotype  ErrorKind = "UnresolvedPhenotype"
	ErrIntegrityViolation   ErrorKind = "IntegrityViolation"
	ErrInvariantViolation   ErrorKind = "InvariantViolation"
	ErrMalformedVariant     ErrorKind = "MalformedVariant"
)

// PipelineError is the structured error carried by the pipeline's result
// sum type. It replaces exception-based control flow: handlers match on
// Kind.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Gene    string
	Drug    string
}

func (e *PipelineError) Error() string {
	if e.Gene == "" && e.Drug == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (drug=%s gene=%s)", e.Kind, e.Message, e.Drug, e.Gene)
}

// NewPipelineError constructs a PipelineError.
func NewPipelineError(kind ErrorKind, message, drug, gene string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Drug: drug, Gene: gene}
}
