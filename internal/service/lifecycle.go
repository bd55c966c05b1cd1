package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/darts-bracket/internal/bracket"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/store"
	"github.com/AdamBeresnev/darts-bracket/internal/utils"
	"github.com/jmoiron/sqlx"
)

type lifecycle struct {
	store   *store.TournamentStore
	metrics *metrics.Metrics
}

// complete moves t from in_progress to completed. A tournament that is
// already completed is left as it is.
func (l *lifecycle) complete(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) error {
	if t.Status == bracket.TournamentCompleted {
		return nil
	}

	now := time.Now().UTC()
	changed, err := l.store.CompleteTournamentTx(ctx, tx, t.ID, now)
	if err != nil {
		return fmt.Errorf("failed to complete tournament: %w", err)
	}
	if !changed {
		return nil
	}

	t.Status = bracket.TournamentCompleted
	t.EndTime = utils.Ptr(now)
	l.metrics.TournamentCompleted()
	slog.InfoContext(ctx, "tournament completed", "tournament_id", t.ID, "format", t.Format)
	return nil
}
