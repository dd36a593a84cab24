// Package domain holds the value types shared across the expansion engine:
// positions, moves, candidates, and the tree node itself. None of these
// types carry behavior beyond equality/ordering helpers; I/O and mutation
// live in the packages that consume them (arena, pipeline, policy).
package domain

import (
	"encoding/json"
	"fmt"
)

// Side is the side to move in a position.
type Side uint8

const (
	White Side = iota
	Black
)

// String renders the side as its config/CLI spelling.
func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// MarshalJSON renders the side as its config/CLI spelling rather than its
// underlying numeric value.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the side from its config/CLI spelling.
func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSide(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSide parses the CLI/config spelling of a side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	default:
		return White, fmt.Errorf("invalid side %q: want \"white\" or \"black\"", s)
	}
}

// PositionKey is the canonical identity of a position: the board/rights/clock
// encoding plus whose move it is. Two PositionKeys are equal iff the
// position they describe is identical for engine/database purposes.
// Comparison is case-sensitive on FEN, matching FEN's own case-sensitive
// piece-letter encoding.
type PositionKey struct {
	FEN        string `json:"fen"`
	SideToMove Side   `json:"side_to_move"`
}

// String renders the key for logging and map-key fallback contexts.
func (k PositionKey) String() string {
	return fmt.Sprintf("%s|%s", k.FEN, k.SideToMove)
}
