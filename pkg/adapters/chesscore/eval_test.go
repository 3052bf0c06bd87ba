package chesscore

import (
	"testing"

	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Symmetric(t *testing.T) {
	pos := chess.StartingPosition()
	assert.Equal(t, tempoBonus, evaluate(pos, DefaultStyle()))
}

func TestEvaluate_MaterialMatters(t *testing.T) {
	up, err := decodeFEN("4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	require.NoError(t, err)
	down, err := decodeFEN("3qk3/8/8/8/8/8/8/4K3 w - - 0 1")
	require.NoError(t, err)

	assert.Greater(t, evaluate(up, DefaultStyle()), 500)
	assert.Less(t, evaluate(down, DefaultStyle()), -500)
}

func TestEvaluate_SideToMovePerspective(t *testing.T) {
	white, err := decodeFEN("4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	require.NoError(t, err)
	black, err := decodeFEN("4k3/8/8/8/8/8/8/3QK3 b - - 0 1")
	require.NoError(t, err)

	assert.Equal(t, evaluate(white, DefaultStyle())-tempoBonus, -(evaluate(black, DefaultStyle()) - tempoBonus))
}

func TestMorphyAdjustment(t *testing.T) {
	// White has developed both knights and is a pawn down.
	board, err := decodeFEN("r1bqkbnr/pppp1ppp/2n5/8/4P3/2N2N2/PPP2PPP/R1BQKB1R w KQkq - 0 4")
	require.NoError(t, err)
	squares := board.Board().SquareMap()

	style := DefaultStyle()
	style.Morphy = true
	withComp := morphyAdjustment(squares, -100, style)

	style.SacrificeThreshold = 0
	withoutComp := morphyAdjustment(squares, -100, style)

	assert.Greater(t, withComp, withoutComp)
	assert.Equal(t, withoutComp, morphyAdjustment(squares, -900, DefaultStyle()), "large deficits get no compensation")
}

func TestAttacked(t *testing.T) {
	pos, err := decodeFEN("4k3/8/8/8/8/8/8/R3K3 w - - 0 1")
	require.NoError(t, err)
	squares := pos.Board().SquareMap()

	assert.True(t, attacked(squares, chess.A8, chess.White), "rook covers its file")
	assert.True(t, attacked(squares, chess.D1, chess.White), "rook and king cover d1")
	assert.False(t, attacked(squares, chess.H8, chess.White))
	assert.True(t, attacked(squares, chess.D8, chess.Black), "king covers d8")
}
