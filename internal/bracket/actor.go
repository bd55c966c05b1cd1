package bracket

import "github.com/google/uuid"

type actorKind int

const (
	actorAdmin actorKind = iota + 1
	actorCompetitor
)

// Actor is the party performing an operation: an administrator or a
// competitor. It is resolved once at the request boundary. The zero value
// is an anonymous caller with no capabilities.
type Actor struct {
	kind     actorKind
	playerID uuid.UUID
}

func Admin() Actor {
	return Actor{kind: actorAdmin}
}

func CompetitorActor(playerID uuid.UUID) Actor {
	return Actor{kind: actorCompetitor, playerID: playerID}
}

func (a Actor) IsAdmin() bool {
	return a.kind == actorAdmin
}

// PlayerID returns the competitor's id; admins and anonymous callers have none.
func (a Actor) PlayerID() (uuid.UUID, bool) {
	return a.playerID, a.kind == actorCompetitor
}

func (a Actor) IsAuthenticated() bool {
	return a.kind != 0
}

func (a Actor) CanOverrideResult() bool {
	return a.IsAdmin()
}

func (a Actor) CanManageTournament() bool {
	return a.IsAdmin()
}

// CanReportFor reports whether the actor occupies the match. Admins do not
// self-report; they override.
func (a Actor) CanReportFor(players []MatchPlayer) bool {
	id, ok := a.PlayerID()
	if !ok {
		return false
	}
	_, found := FindPlayer(players, id)
	return found
}

// CanStart allows admins and match participants to start a match.
func (a Actor) CanStart(players []MatchPlayer) bool {
	return a.IsAdmin() || a.CanReportFor(players)
}

func (a Actor) String() string {
	switch a.kind {
	case actorAdmin:
		return "admin"
	case actorCompetitor:
		return "competitor:" + a.playerID.String()
	}
	return "anonymous"
}
