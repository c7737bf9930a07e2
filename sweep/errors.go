package sweep

import (
	"fmt"
	"time"
)

// PersistenceError reports that the event store could not commit the step
// at Instant. It always terminates the sweep.
type PersistenceError struct {
	Instant time.Time
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("commit step %s: %v", e.Instant.UTC().Format(time.RFC3339), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
