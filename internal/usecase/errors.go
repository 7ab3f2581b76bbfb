package usecase

import (
	"errors"
	"fmt"
)

var errNoSink = errors.New("output sink is not configured")

// Stage names a step of batch processing.
type Stage string

const (
	StageRead       Stage = "read"
	StageRefresh    Stage = "refresh"
	StageWrite      Stage = "write"
	StageCatalog    Stage = "catalog"
	StageCheckpoint Stage = "checkpoint"
)

// StageError is returned when a batch fails; it records where.
type StageError struct {
	Stage   Stage
	BatchID int64
	Err     error
}

func (e StageError) Error() string {
	return fmt.Sprintf("batch %d: %s: %v", e.BatchID, e.Stage, e.Err)
}

func (e StageError) Unwrap() error {
	return e.Err
}
