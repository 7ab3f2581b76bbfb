package domain

import (
	"errors"
	"time"
)

// ErrCheckpointNotFound is returned by checkpoint stores before the first commit.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Position maps a stream shard to the last sequence number already processed.
type Position map[string]string

// Clone returns an independent copy of p.
func (p Position) Clone() Position {
	out := make(Position, len(p))
	for shard, seq := range p {
		out[shard] = seq
	}
	return out
}

// Checkpoint is the durable progress marker of the stream driver.
type Checkpoint struct {
	JobName     string    `json:"job_name"`
	LastBatchID int64     `json:"last_batch_id"`
	Position    Position  `json:"position"`
	CommittedAt time.Time `json:"committed_at"`
}
