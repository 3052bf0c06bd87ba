package chesscore

import "github.com/notnil/chess"

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookRays    = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays  = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func pieceAt(board map[chess.Square]chess.Piece, file, rank int) (chess.Piece, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoPiece, false
	}
	p, ok := board[chess.Square(rank*8+file)]
	return p, ok && p != chess.NoPiece
}

// inCheck reports whether the king of color c is attacked.
func inCheck(board map[chess.Square]chess.Piece, c chess.Color) bool {
	for sq, p := range board {
		if p.Type() == chess.King && p.Color() == c {
			return attacked(board, sq, c.Other())
		}
	}
	return false
}

// attacked reports whether any piece of color by attacks target.
func attacked(board map[chess.Square]chess.Piece, target chess.Square, by chess.Color) bool {
	tf, tr := int(target.File()), int(target.Rank())

	hits := func(steps [8][2]int, kind chess.PieceType) bool {
		for _, s := range steps {
			if p, ok := pieceAt(board, tf+s[0], tr+s[1]); ok && p.Color() == by && p.Type() == kind {
				return true
			}
		}
		return false
	}
	if hits(knightSteps, chess.Knight) || hits(kingSteps, chess.King) {
		return true
	}

	// A white pawn attacks upwards, so it sits one rank below its target.
	pawnRank := tr - 1
	if by == chess.Black {
		pawnRank = tr + 1
	}
	for _, df := range [2]int{-1, 1} {
		if p, ok := pieceAt(board, tf+df, pawnRank); ok && p.Color() == by && p.Type() == chess.Pawn {
			return true
		}
	}

	slides := func(rays [4][2]int, kind chess.PieceType) bool {
		for _, r := range rays {
			for f, rk := tf+r[0], tr+r[1]; f >= 0 && f <= 7 && rk >= 0 && rk <= 7; f, rk = f+r[0], rk+r[1] {
				p, ok := pieceAt(board, f, rk)
				if !ok {
					continue
				}
				if p.Color() == by && (p.Type() == kind || p.Type() == chess.Queen) {
					return true
				}
				break
			}
		}
		return false
	}
	return slides(rookRays, chess.Rook) || slides(bishopRays, chess.Bishop)
}
