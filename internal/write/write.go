// Package write renders a completed arena into portable documents: PGN move
// text and a JSON (or msgpack) encoding of the raw node tree, each encoder
// picked by format and writing to an io.Writer.
package write

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aaweaver-actuary/repgrow/internal/chessrules"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// PGN renders nodes (in arena id order, id == index, root at 0) as a single
// PGN game: the main line inline, every sibling after the first as a
// parenthesized variation. nodes must come from Arena.Snapshot, so Children
// ids index directly into the slice.
func PGN(nodes []domain.Node) (string, error) {
	if len(nodes) == 0 {
		return "", fmt.Errorf("write: PGN requires at least a root node")
	}
	var b strings.Builder
	if err := writeLine(&b, nodes, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}

// writeLine recursively emits the main line starting at parentID, branching
// off a parenthesized variation for every non-first child.
func writeLine(b *strings.Builder, nodes []domain.Node, parentID uint64) error {
	parent := nodes[parentID]
	for i, childID := range parent.Children {
		if childID >= uint64(len(nodes)) {
			return fmt.Errorf("write: child id %d out of range", childID)
		}
		child := nodes[childID]
		san, err := chessrules.ToSAN(parent.Position, *child.LastMove)
		if err != nil {
			return fmt.Errorf("write: SAN for node %d: %w", childID, err)
		}

		if i == 0 {
			writeToken(b, parent.Position, san, false)
			if err := writeLine(b, nodes, childID); err != nil {
				return err
			}
			continue
		}

		var v strings.Builder
		writeToken(&v, parent.Position, san, true)
		if err := writeLine(&v, nodes, childID); err != nil {
			return err
		}
		b.WriteString("(" + strings.TrimSpace(v.String()) + ") ")
	}
	return nil
}

// writeToken appends san, the move played from parent, to b. White's moves
// always get a move-number prefix ("N. e4"). Black's moves get a prefix only
// when opening a parenthesized variation, where PGN convention requires the
// continuation marker ("N... e5") since the line resumes mid move-pair. N is
// the fullmove number of parent's FEN (1 if the FEN has no such field).
func writeToken(b *strings.Builder, parent domain.PositionKey, san string, variationStart bool) {
	moveNumber := "1"
	if fields := strings.Fields(parent.FEN); len(fields) == 6 {
		moveNumber = fields[5]
	}
	switch {
	case parent.SideToMove == domain.White:
		b.WriteString(moveNumber + ". " + san + " ")
	case variationStart:
		b.WriteString(moveNumber + "... " + san + " ")
	default:
		b.WriteString(san + " ")
	}
}

// treeDoc is the JSON/msgpack wire shape for the node tree: a flat,
// id-ordered list, matching the arena's own append-only layout so decoding
// needs no tree reconstruction.
type treeDoc struct {
	Nodes []domain.Node `json:"nodes" msgpack:"nodes"`
}

// JSON renders nodes as an indented JSON document.
func JSON(w io.Writer, nodes []domain.Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(treeDoc{Nodes: nodes})
}

// MsgPack renders nodes in msgpack, for callers that want a compact binary
// tree dump rather than JSON text.
func MsgPack(w io.Writer, nodes []domain.Node) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(treeDoc{Nodes: nodes})
}
