// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "fmt"

// StageError wraps a failure that aborted a turn with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
