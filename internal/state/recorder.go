package state

import (
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/types"
)

// Recorder persists vault receipts through the global pool. Persistence
// failures are logged and swallowed so a database outage never blocks the
// engine.
type Recorder struct {
	log zerolog.Logger
}

// NewRecorder builds a database-backed receipt recorder.
func NewRecorder() *Recorder {
	return &Recorder{log: logger.GetForComponent("state_recorder")}
}

func (r *Recorder) RecordRebalance(snapshot types.RebalanceSnapshot) {
	if _, err := SaveRebalanceSnapshot(snapshot); err != nil {
		r.log.Error().Err(err).Str("traceId", snapshot.TraceID).Msg("Failed to persist rebalance snapshot")
	}
}

func (r *Recorder) RecordEvent(event types.VaultEvent) {
	if _, err := SaveVaultEvent(event); err != nil {
		r.log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to persist vault event")
	}
}
