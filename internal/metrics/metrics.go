package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "darts"

const (
	ReasonReport   = "report"
	ReasonOverride = "override"
	ReasonBye      = "bye"

	ModeManual = "manual"
	ModeAuto   = "auto"
)

type Metrics struct {
	matchesCompleted     *prometheus.CounterVec
	disputes             prometheus.Counter
	boardAssignments     *prometheus.CounterVec
	boardConflicts       prometheus.Counter
	tournamentsCompleted prometheus.Counter
}

// New registers the bracket counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Matches completed, by how the result was decided.",
		}, []string{"reason"}),
		disputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disputes_total",
			Help:      "Matches moved to disputed after inconsistent reports.",
		}),
		boardAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_assignments_total",
			Help:      "Dartboards assigned to matches.",
		}, []string{"mode"}),
		boardConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_conflicts_total",
			Help:      "Board assignments rejected because the board was taken.",
		}),
		tournamentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_completed_total",
			Help:      "Tournaments that reached completed.",
		}),
	}
	reg.MustRegister(m.matchesCompleted, m.disputes, m.boardAssignments, m.boardConflicts, m.tournamentsCompleted)
	return m
}

func (m *Metrics) MatchCompleted(reason string) {
	m.matchesCompleted.WithLabelValues(reason).Inc()
}

func (m *Metrics) Dispute() {
	m.disputes.Inc()
}

func (m *Metrics) BoardAssigned(mode string) {
	m.boardAssignments.WithLabelValues(mode).Inc()
}

func (m *Metrics) BoardConflict() {
	m.boardConflicts.Inc()
}

func (m *Metrics) TournamentCompleted() {
	m.tournamentsCompleted.Inc()
}
