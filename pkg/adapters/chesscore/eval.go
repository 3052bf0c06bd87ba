package chesscore

import (
	"github.com/notnil/chess"

	"github.com/aretw0/opera/pkg/domain"
)

// Style holds the evaluation options.
type Style struct {
	Contempt           int
	Morphy             bool
	SacrificeThreshold int
	TacticalDepth      int
}

// DefaultStyle mirrors the default engine configuration.
func DefaultStyle() Style {
	return StyleFrom(domain.DefaultEngineConfig())
}

// StyleFrom extracts the evaluation options from an engine configuration.
func StyleFrom(cfg domain.EngineConfig) Style {
	return Style{
		Contempt:           cfg.Contempt,
		Morphy:             cfg.MorphyStyle,
		SacrificeThreshold: cfg.SacrificeThreshold,
		TacticalDepth:      cfg.TacticalDepth,
	}
}

var pieceValue = map[chess.PieceType]int{
	chess.Pawn:   100,
	chess.Knight: 320,
	chess.Bishop: 330,
	chess.Rook:   500,
	chess.Queen:  900,
	chess.King:   0,
}

// Piece-square tables from white's point of view, rank 8 first.
var (
	pawnTable = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		50, 50, 50, 50, 50, 50, 50, 50,
		10, 10, 20, 30, 30, 20, 10, 10,
		5, 5, 10, 25, 25, 10, 5, 5,
		0, 0, 0, 20, 20, 0, 0, 0,
		5, -5, -10, 0, 0, -10, -5, 5,
		5, 10, 10, -20, -20, 10, 10, 5,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	knightTable = [64]int{
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-30, 0, 10, 15, 15, 10, 0, -30,
		-30, 5, 15, 20, 20, 15, 5, -30,
		-30, 0, 15, 20, 20, 15, 0, -30,
		-30, 5, 10, 15, 15, 10, 5, -30,
		-40, -20, 0, 5, 5, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	}
	bishopTable = [64]int{
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 10, 10, 5, 0, -10,
		-10, 5, 5, 10, 10, 5, 5, -10,
		-10, 0, 10, 10, 10, 10, 0, -10,
		-10, 10, 10, 10, 10, 10, 10, -10,
		-10, 5, 0, 0, 0, 0, 5, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	}
	rookTable = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 10, 10, 10, 10, 10, 10, 5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		0, 0, 0, 5, 5, 0, 0, 0,
	}
	queenTable = [64]int{
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 5, 5, 5, 0, -10,
		-5, 0, 5, 5, 5, 5, 0, -5,
		0, 0, 5, 5, 5, 5, 0, -5,
		-10, 5, 5, 5, 5, 5, 0, -10,
		-10, 0, 5, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	}
	kingTable = [64]int{
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-10, -20, -20, -20, -20, -20, -20, -10,
		20, 20, 0, 0, 0, 0, 20, 20,
		20, 30, 10, 0, 0, 10, 30, 20,
	}
	kingEndgameTable = [64]int{
		-50, -40, -30, -20, -20, -30, -40, -50,
		-30, -20, -10, 0, 0, -10, -20, -30,
		-30, -10, 20, 30, 30, 20, -10, -30,
		-30, -10, 30, 40, 40, 30, -10, -30,
		-30, -10, 30, 40, 40, 30, -10, -30,
		-30, -10, 20, 30, 30, 20, -10, -30,
		-30, -30, 0, 0, 0, 0, -30, -30,
		-50, -30, -30, -30, -30, -30, -30, -50,
	}
)

const (
	tempoBonus        = 10
	developmentBonus  = 10
	centralPieceBonus = 5
	uncastledPenalty  = 25
	// Deficits beyond this are real losses, not sacrifices.
	maxSacrificeDeficit = 400
)

// tableIndex maps a square to a table slot for the given color.
func tableIndex(sq chess.Square, c chess.Color) int {
	file, rank := int(sq.File()), int(sq.Rank())
	if c == chess.White {
		return (7-rank)*8 + file
	}
	return rank*8 + file
}

func pstValue(p chess.Piece, sq chess.Square, endgame bool) int {
	i := tableIndex(sq, p.Color())
	switch p.Type() {
	case chess.Pawn:
		return pawnTable[i]
	case chess.Knight:
		return knightTable[i]
	case chess.Bishop:
		return bishopTable[i]
	case chess.Rook:
		return rookTable[i]
	case chess.Queen:
		return queenTable[i]
	case chess.King:
		if endgame {
			return kingEndgameTable[i]
		}
		return kingTable[i]
	}
	return 0
}

func nonPawnMaterial(board map[chess.Square]chess.Piece) int {
	total := 0
	for _, p := range board {
		if p.Type() != chess.Pawn {
			total += pieceValue[p.Type()]
		}
	}
	return total
}

// evaluate scores pos in centipawns from the side to move's point of view.
func evaluate(pos *chess.Position, style Style) int {
	board := pos.Board().SquareMap()
	endgame := nonPawnMaterial(board) <= endgameMaterial

	var material [2]int
	score := 0
	for sq, p := range board {
		v := pieceValue[p.Type()] + pstValue(p, sq, endgame)
		if p.Color() == chess.White {
			score += v
			material[0] += pieceValue[p.Type()]
		} else {
			score -= v
			material[1] += pieceValue[p.Type()]
		}
	}

	if style.Morphy && !endgame {
		score += morphyAdjustment(board, material[0]-material[1], style)
	}

	if pos.Turn() == chess.Black {
		score = -score
	}
	return score + tempoBonus
}

// morphyAdjustment favours development, king attack and initiative, and
// compensates small material deficits up to the sacrifice threshold. The
// result is from white's point of view.
func morphyAdjustment(board map[chess.Square]chess.Piece, balance int, style Style) int {
	white := initiative(board, chess.White)
	black := initiative(board, chess.Black)
	adj := white - black

	if uncastled(board, chess.Black) {
		adj += uncastledPenalty
	}
	if uncastled(board, chess.White) {
		adj -= uncastledPenalty
	}

	switch {
	case balance < -50 && balance >= -maxSacrificeDeficit:
		adj += min(white, style.SacrificeThreshold)
	case balance > 50 && balance <= maxSacrificeDeficit:
		adj -= min(black, style.SacrificeThreshold)
	}
	return adj
}

func initiative(board map[chess.Square]chess.Piece, c chess.Color) int {
	backRank := chess.Rank1
	if c == chess.Black {
		backRank = chess.Rank8
	}
	score := 0
	for sq, p := range board {
		if p.Color() != c {
			continue
		}
		switch p.Type() {
		case chess.Knight, chess.Bishop:
			if sq.Rank() != backRank {
				score += developmentBonus
			}
		}
		if isCentral(sq) && p.Type() != chess.King {
			score += centralPieceBonus
		}
	}
	return score
}

func isCentral(sq chess.Square) bool {
	f, r := sq.File(), sq.Rank()
	return f >= chess.FileC && f <= chess.FileF && r >= chess.Rank3 && r <= chess.Rank6
}

// uncastled reports a king still on its back rank between the c and f files.
func uncastled(board map[chess.Square]chess.Piece, c chess.Color) bool {
	backRank := chess.Rank1
	if c == chess.Black {
		backRank = chess.Rank8
	}
	for sq, p := range board {
		if p.Type() == chess.King && p.Color() == c {
			f := sq.File()
			return sq.Rank() == backRank && f >= chess.FileC && f <= chess.FileF
		}
	}
	return false
}
