package bracket

import (
	"fmt"
	"strconv"
	"strings"
)

type PositionKind int

const (
	// R{r}M{m}: single elimination and lucky draw doubles
	KindRound PositionKind = iota + 1
	// WR{r}M{m}: double elimination winners bracket
	KindWinners
	// LR{r}M{m}: double elimination losers bracket
	KindLosers
	// GF1, GF2
	KindGrandFinal
	// RR{n}
	KindRoundRobin
)

// Position identifies a match's place in the tournament graph. The canonical
// string form is what gets persisted in matches.bracket_position.
//
// Round and Match are used by the round kinds; a grand final keeps its
// number (1 or 2) in Round, a round robin match its number in Match.
type Position struct {
	Kind  PositionKind
	Round int
	Match int
}

func RoundPosition(round, match int) Position {
	return Position{Kind: KindRound, Round: round, Match: match}
}

func WinnersPosition(round, match int) Position {
	return Position{Kind: KindWinners, Round: round, Match: match}
}

func LosersPosition(round, match int) Position {
	return Position{Kind: KindLosers, Round: round, Match: match}
}

func GrandFinalPosition(n int) Position {
	return Position{Kind: KindGrandFinal, Round: n}
}

func RoundRobinPosition(n int) Position {
	return Position{Kind: KindRoundRobin, Match: n}
}

func (p Position) String() string {
	switch p.Kind {
	case KindRound:
		return fmt.Sprintf("R%dM%d", p.Round, p.Match)
	case KindWinners:
		return fmt.Sprintf("WR%dM%d", p.Round, p.Match)
	case KindLosers:
		return fmt.Sprintf("LR%dM%d", p.Round, p.Match)
	case KindGrandFinal:
		return fmt.Sprintf("GF%d", p.Round)
	case KindRoundRobin:
		return fmt.Sprintf("RR%d", p.Match)
	}
	return "invalid"
}

func (p Position) IsGrandFinal() bool {
	return p.Kind == KindGrandFinal
}

// IsSeeded reports whether the position belongs to a round whose occupants
// come from seeding instead of feeder matches.
func (p Position) IsSeeded() bool {
	switch p.Kind {
	case KindRound, KindWinners:
		return p.Round <= 1
	case KindRoundRobin:
		return true
	}
	return false
}

func ParsePosition(s string) (Position, error) {
	var (
		p   Position
		err error
	)

	if rest, ok := strings.CutPrefix(s, "WR"); ok {
		p.Kind = KindWinners
		p.Round, p.Match, err = parseRoundMatch(rest)
	} else if rest, ok := strings.CutPrefix(s, "LR"); ok {
		p.Kind = KindLosers
		p.Round, p.Match, err = parseRoundMatch(rest)
	} else if rest, ok := strings.CutPrefix(s, "GF"); ok {
		p.Kind = KindGrandFinal
		p.Round, err = strconv.Atoi(rest)
		if err == nil && p.Round != 1 && p.Round != 2 {
			err = fmt.Errorf("grand final must be 1 or 2")
		}
	} else if rest, ok := strings.CutPrefix(s, "RR"); ok {
		p.Kind = KindRoundRobin
		p.Match, err = strconv.Atoi(rest)
		if err == nil && p.Match < 1 {
			err = fmt.Errorf("match number must be positive")
		}
	} else if rest, ok := strings.CutPrefix(s, "R"); ok {
		p.Kind = KindRound
		p.Round, p.Match, err = parseRoundMatch(rest)
	} else {
		err = fmt.Errorf("unknown prefix")
	}

	if err != nil {
		return Position{}, fmt.Errorf("invalid bracket position %q: %w", s, err)
	}

	// Reject non-canonical spellings like "R01M1" or "R+1M1"
	if p.String() != s {
		return Position{}, fmt.Errorf("invalid bracket position %q: not canonical", s)
	}
	return p, nil
}

func parseRoundMatch(s string) (int, int, error) {
	roundStr, matchStr, ok := strings.Cut(s, "M")
	if !ok {
		return 0, 0, fmt.Errorf("missing match number")
	}
	round, err := strconv.Atoi(roundStr)
	if err != nil {
		return 0, 0, err
	}
	match, err := strconv.Atoi(matchStr)
	if err != nil {
		return 0, 0, err
	}
	if round < 1 || match < 1 {
		return 0, 0, fmt.Errorf("round and match must be positive")
	}
	return round, match, nil
}
