package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wfunc/memory-duel/internal/models"
)

func TestMatchSummaryCountsOnlyResolvedCards(t *testing.T) {
	started := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)

	m := &models.Match{
		RoomCode:  "ROOM01",
		CreatorID: "alice",
		Status:    models.MatchStatusFinished,
		Players: models.PlayerMap{
			"alice": {Integrity: 10},
			"bob":   {Integrity: 2},
		},
		OrderPlayers: models.StringList{"alice", "bob"},
		// 已上桌7张，其中3张终局时仍未结算
		CardsDrawn: 7,
		TableCards: models.CardList{
			{Memory: "桌上一", Authenticity: models.AuthenticityAuthentic, Value: 1},
			{Memory: "桌上二", Authenticity: models.AuthenticityCorrupted, Value: -1},
			{Memory: "桌上三", Authenticity: models.AuthenticityAuthentic, Value: 1},
		},
		RevealedMemories: models.RevealedList{
			{Memory: "已揭示", Authenticity: models.AuthenticityAuthentic, Points: 1, Initiator: "alice", ResolvedBy: "alice", RevealedAt: started},
		},
		Winner:     "alice",
		WinReason:  models.WinReasonUpperThreshold,
		StartedAt:  &started,
		FinishedAt: &finished,
	}

	summary := NewMatchSummary(m)

	assert.Equal(t, 4, summary.Turns)
	assert.Equal(t, int64(300), summary.Duration)
	assert.Equal(t, "alice", summary.Winner)
	assert.Len(t, summary.Results, 2)
	assert.True(t, summary.Results[0].IsWinner)
	assert.False(t, summary.Results[1].IsWinner)
	assert.Len(t, summary.RevealedMemories, 1)
}
