// Package columnar flattens a completed arena into a row-per-node parquet
// file, an opt-in export alongside the tree document internal/write
// produces.
package columnar

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// Row is one flattened node, shaped for columnar analysis (e.g. "what's the
// average eval_centipawns at ply 4 across the tree").
type Row struct {
	ID             uint64  `parquet:"id"`
	Parent         int64   `parquet:"parent"` // -1 when the node is the root
	FEN            string  `parquet:"fen"`
	SideToMove     string  `parquet:"side_to_move"`
	LastMove       string  `parquet:"last_move,optional"`
	PlyDepth       uint32  `parquet:"ply_depth"`
	EvalCentipawns int64   `parquet:"eval_centipawns,optional"`
	HasEval        bool    `parquet:"has_eval"`
	PlayRate       float64 `parquet:"play_rate,optional"`
	HasPlayRate    bool    `parquet:"has_play_rate"`
}

// Flatten converts an arena snapshot (Arena.Snapshot order, id == index)
// into parquet rows.
func Flatten(nodes []domain.Node) []Row {
	rows := make([]Row, len(nodes))
	for i, n := range nodes {
		row := Row{
			ID:         n.ID,
			Parent:     -1,
			FEN:        n.Position.FEN,
			SideToMove: n.Position.SideToMove.String(),
			PlyDepth:   n.PlyDepth,
		}
		if n.Parent != nil {
			row.Parent = int64(*n.Parent)
		}
		if n.LastMove != nil {
			row.LastMove = n.LastMove.String()
		}
		if n.Signals.EvalCentipawns != nil {
			row.EvalCentipawns = int64(*n.Signals.EvalCentipawns)
			row.HasEval = true
		}
		if n.Signals.PlayRate != nil {
			row.PlayRate = *n.Signals.PlayRate
			row.HasPlayRate = true
		}
		rows[i] = row
	}
	return rows
}

// Write flattens nodes and writes them to w as a parquet file.
func Write(w io.Writer, nodes []domain.Node) error {
	rows := Flatten(nodes)
	writer := parquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}
