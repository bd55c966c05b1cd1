package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/darts-bracket/internal/gamerules"
	"github.com/AdamBeresnev/darts-bracket/internal/metrics"
	"github.com/AdamBeresnev/darts-bracket/internal/notify"
	"github.com/AdamBeresnev/darts-bracket/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/AdamBeresnev/darts-bracket/internal/service"

// core holds what every service needs to run a unit of work: the stores,
// the advancement engine with its scheduler and lifecycle controller, and
// the event sink that receives the outbox after commit.
type core struct {
	db       *sqlx.DB
	store    *store.TournamentStore
	boards   *store.BoardStore
	players  *store.PlayerStore
	sched    *scheduler
	life     *lifecycle
	engine   *advancement
	notifier notify.Notifier
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func newCore(db *sqlx.DB, notifier notify.Notifier, m *metrics.Metrics) *core {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	c := &core{
		db:       db,
		store:    store.NewTournamentStore(db),
		boards:   store.NewBoardStore(db),
		players:  store.NewPlayerStore(db),
		notifier: notifier,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
	}
	c.sched = &scheduler{store: c.store, boards: c.boards, metrics: m}
	c.life = &lifecycle{store: c.store, metrics: m}
	c.engine = &advancement{store: c.store, sched: c.sched, life: c.life, metrics: m}
	return c
}

// run executes fn as one unit of work. Events raised through the outbox are
// delivered only when the transaction commits.
func (c *core) run(ctx context.Context, op string, fn func(ctx context.Context, tx *sqlx.Tx, outbox *notify.Outbox) error) error {
	ctx, span := c.tracer.Start(ctx, op)
	defer span.End()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	outbox := notify.NewOutbox()
	if err := fn(ctx, tx, outbox); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}

	span.SetAttributes(attribute.Int("events", outbox.Len()))
	outbox.Flush(ctx, c.notifier)
	return nil
}

// Services bundles every service built on one database handle.
type Services struct {
	Players     *PlayerService
	Tournaments *TournamentService
	Entries     *EntryService
	Brackets    *BracketService
	Matches     *MatchService
	Boards      *BoardService
}

func New(db *sqlx.DB, notifier notify.Notifier, m *metrics.Metrics) *Services {
	c := newCore(db, notifier, m)
	return &Services{
		Players:     &PlayerService{core: c},
		Tournaments: &TournamentService{core: c},
		Entries:     &EntryService{core: c},
		Brackets:    &BracketService{core: c},
		Matches:     &MatchService{core: c, rules: gamerules.New()},
		Boards:      &BoardService{core: c},
	}
}
