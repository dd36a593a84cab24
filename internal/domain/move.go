package domain

import (
	"encoding/json"
	"fmt"
)

// UciMove is a move in UCI notation: source square, destination square, and
// an optional promotion piece letter. Rendered as a 4- or 5-character token,
// e.g. "e2e4" or "a7a8q".
type UciMove struct {
	From       string
	To         string
	Promotion  string // empty when no promotion
}

// String renders the move as its UCI token.
func (m UciMove) String() string {
	if m.Promotion == "" {
		return m.From + m.To
	}
	return m.From + m.To + m.Promotion
}

// ParseUCI parses a 4- or 5-character UCI token into a UciMove.
func ParseUCI(token string) (UciMove, bool) {
	if len(token) != 4 && len(token) != 5 {
		return UciMove{}, false
	}
	m := UciMove{From: token[0:2], To: token[2:4]}
	if len(token) == 5 {
		m.Promotion = token[4:5]
	}
	return m, true
}

// MarshalJSON renders the move as its single UCI token, e.g. "e2e4".
func (m UciMove) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON parses the move from its single UCI token.
func (m *UciMove) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	parsed, ok := ParseUCI(token)
	if !ok {
		return fmt.Errorf("invalid UCI move token %q", token)
	}
	*m = parsed
	return nil
}
