package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wfunc/memory-duel/internal/models"
)

func players(a, b int) models.PlayerMap {
	return models.PlayerMap{
		"alice": {Integrity: a},
		"bob":   {Integrity: b},
	}
}

var order = models.StringList{"alice", "bob"}

func TestEvaluateVictoryUpperThreshold(t *testing.T) {
	v := EvaluateVictory(players(10, 3), order, 10, -10)
	assert.True(t, v.HasWinner)
	assert.Equal(t, "alice", v.WinnerID)
	assert.Equal(t, models.WinReasonUpperThreshold, v.Reason)
}

func TestEvaluateVictoryLowerThresholdCreditsOpponent(t *testing.T) {
	v := EvaluateVictory(players(2, -10), order, 10, -10)
	assert.True(t, v.HasWinner)
	assert.Equal(t, "alice", v.WinnerID)
	assert.Equal(t, models.WinReasonOpponentDown, v.Reason)
}

func TestEvaluateVictoryUpperHasPriority(t *testing.T) {
	// 双方同时越界时，达到上限者优先胜出
	v := EvaluateVictory(players(-12, 11), order, 10, -10)
	assert.True(t, v.HasWinner)
	assert.Equal(t, "bob", v.WinnerID)
	assert.Equal(t, models.WinReasonUpperThreshold, v.Reason)
}

func TestEvaluateVictoryScanOrder(t *testing.T) {
	// 双方都达到上限时按行动顺序取第一个
	v := EvaluateVictory(players(10, 12), order, 10, -10)
	assert.True(t, v.HasWinner)
	assert.Equal(t, "alice", v.WinnerID)
}

func TestEvaluateVictoryNoWinner(t *testing.T) {
	v := EvaluateVictory(players(9, -9), order, 10, -10)
	assert.False(t, v.HasWinner)
	assert.Empty(t, v.WinnerID)
	assert.Empty(t, v.Reason)
}
