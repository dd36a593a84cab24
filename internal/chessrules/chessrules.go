// Package chessrules is the engine's only dependency on chess legality, SAN,
// and FEN handling, delegated entirely to github.com/notnil/chess per the
// specification's explicit "delegated to a chess rules library" boundary.
// Nothing outside this package imports notnil/chess directly.
package chessrules

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
)

// StartPosition returns the PositionKey for the standard starting position.
func StartPosition() domain.PositionKey {
	g := chess.NewGame()
	return domain.PositionKey{
		FEN:        g.Position().String(),
		SideToMove: domain.White,
	}
}

// FromLine replays a space-separated line of SAN or UCI moves from the
// starting position and returns the resulting PositionKey. Used by the CLI's
// optional --start flag.
func FromLine(line string) (domain.PositionKey, error) {
	g := chess.NewGame()
	if line == "" {
		return StartPosition(), nil
	}
	var tokens []string
	cur := ""
	for _, r := range line {
		if r == ' ' {
			if cur != "" {
				tokens = append(tokens, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		tokens = append(tokens, cur)
	}

	for _, tok := range tokens {
		if err := applyToken(g, tok); err != nil {
			return domain.PositionKey{}, engineerr.New(engineerr.ConfigInvalid,
				fmt.Sprintf("--start line contains an illegal move %q", tok), err)
		}
	}
	return keyFromGame(g), nil
}

func applyToken(g *chess.Game, tok string) error {
	if mv, ok := domain.ParseUCI(tok); ok {
		if err := applyUCIToGame(g, mv); err == nil {
			return nil
		}
	}
	return g.MoveStr(tok)
}

// Apply applies uci to position and returns the resulting PositionKey. Fails
// with an IllegalMove engineerr.Error if the move is not legal from
// position.
func Apply(position domain.PositionKey, uci domain.UciMove) (domain.PositionKey, error) {
	g, err := gameFromFEN(position.FEN)
	if err != nil {
		return domain.PositionKey{}, engineerr.New(engineerr.IllegalMove,
			fmt.Sprintf("position %q is not a well-formed FEN", position.FEN), err)
	}
	if err := applyUCIToGame(g, uci); err != nil {
		return domain.PositionKey{}, engineerr.New(engineerr.IllegalMove,
			fmt.Sprintf("move %s is illegal in position %q", uci, position.FEN), err)
	}
	return keyFromGame(g), nil
}

// ToSAN renders uci as SAN in the context of position, for the PGN writer.
func ToSAN(position domain.PositionKey, uci domain.UciMove) (string, error) {
	g, err := gameFromFEN(position.FEN)
	if err != nil {
		return "", err
	}
	mv, err := findMove(g, uci)
	if err != nil {
		return "", err
	}
	return chess.AlgebraicNotation{}.Encode(g.Position(), mv), nil
}

func gameFromFEN(fen string) (*chess.Game, error) {
	if fen == "" {
		return chess.NewGame(), nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse FEN: %w", err)
	}
	return chess.NewGame(opt), nil
}

func applyUCIToGame(g *chess.Game, uci domain.UciMove) error {
	mv, err := findMove(g, uci)
	if err != nil {
		return err
	}
	return g.Move(mv)
}

func findMove(g *chess.Game, uci domain.UciMove) (*chess.Move, error) {
	target := uci.String()
	for _, mv := range g.ValidMoves() {
		if (chess.UCINotation{}).Encode(g.Position(), mv) == target {
			return mv, nil
		}
	}
	return nil, fmt.Errorf("no legal move matches %s", target)
}

func keyFromGame(g *chess.Game) domain.PositionKey {
	side := domain.White
	if g.Position().Turn() == chess.Black {
		side = domain.Black
	}
	return domain.PositionKey{FEN: g.Position().String(), SideToMove: side}
}
