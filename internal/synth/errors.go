package synth

import (
	"fmt"
	"strings"
)

// SynthesisError names the text that could not be synthesized.
type SynthesisError struct {
	Text  string
	Index int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("failed to synthesize text %d %q: %v", e.Index, e.Text, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// BatchError collects the failures of a batch run with CollectErrors set.
type BatchError struct {
	Failures []*SynthesisError
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d texts failed:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
