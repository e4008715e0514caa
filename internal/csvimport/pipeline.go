package csvimport

import (
	"context"
	"fmt"
)

// State is the shared blackboard the pipeline steps read and write. Each step
// fills in the fields it owns and leaves the rest alone.
type State struct {
	RawCSV    string
	HasHeader bool

	Parsed  *ParseResult
	Session *Session
	Result  *ImportResult
}

// Step is one stage of the one-shot import pipeline.
type Step interface {
	Run(ctx context.Context, state *State) error
}

// Pipeline executes steps in order, stopping at the first failure.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

func (p *Pipeline) Run(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Run(ctx, state); err != nil {
			return fmt.Errorf("import step %d: %w", i+1, err)
		}
	}
	return nil
}

// ParseStep turns the raw CSV text into the parsed grid.
type ParseStep struct{}

func (ParseStep) Run(_ context.Context, state *State) error {
	parsed, err := Parse(state.RawCSV, state.HasHeader)
	if err != nil {
		return err
	}
	state.Parsed = parsed
	return nil
}

// CreateSessionStep loads the reference snapshot and opens a session over the
// parsed grid.
type CreateSessionStep struct {
	Loader ReferenceLoader
}

func (s CreateSessionStep) Run(ctx context.Context, state *State) error {
	ref, err := s.Loader.LoadReferenceSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load reference snapshot: %w", err)
	}
	state.Session = NewSession(state.Parsed, ref)
	return nil
}

// ValidateStep runs full validation. In the one-shot pipeline there is no
// operator to fix rows, so any invalid row is dropped from the commit set
// rather than failing the run.
type ValidateStep struct{}

func (ValidateStep) Run(_ context.Context, state *State) error {
	if err := state.Session.ValidateAll(); err != nil {
		return err
	}
	state.Session.UnselectErrorRows()
	return nil
}

// CommitStep writes the included rows through the committer.
type CommitStep struct {
	Committer *Committer
}

func (s CommitStep) Run(ctx context.Context, state *State) error {
	result, err := s.Committer.Commit(ctx, state.Session, nil)
	state.Result = result
	return err
}
