package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls whether failed expectations stop a run.
type AssertionMode int

const (
	// AssertionStrict fails the step on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps going.
	AssertionLogOnly
)

// Assertions reports unmet expectations according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf records an unmet expectation. It returns an error only in strict mode.
func (a Assertions) Failf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("expectation: %v", err)
		}
		return nil
	}
	return err
}

// Equal checks an integer expectation.
func (a Assertions) Equal(what string, got, want int64) error {
	if got == want {
		return nil
	}
	return a.Failf("%s = %d, want %d", what, got, want)
}
