package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/content"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/game"
	"github.com/wfunc/memory-duel/internal/models"
	"github.com/wfunc/memory-duel/internal/repository"
	"go.uber.org/zap"
)

func newTestMatchService(t *testing.T) (*MatchService, func()) {
	t.Helper()
	db := repository.SetupTestDB(t)
	matchCfg := repository.TestMatchConfig()

	engine := game.NewEngine(&game.EngineConfig{
		Deck: &config.DeckConfig{
			TotalCards:     15,
			AuthenticCount: 8,
			CorruptedCount: 6,
			GlitchCount:    1,
			GlitchMinIndex: 7,
			AuthenticValue: 1,
			CorruptedValue: -1,
			GlitchValue:    -10,
			TableSize:      3,
		},
		Match: matchCfg,
		Rand:  rand.New(rand.NewSource(99)),
		Now:   time.Now,
	})

	svc := NewMatchService(
		repository.NewMatchRepository(db, matchCfg),
		engine,
		content.NewBuiltinProvider(),
		nil, // 无WebSocket推送
		matchCfg,
		zap.NewNop(),
	)
	return svc, func() { repository.CleanupTestDB(db) }
}

// startPlayingMatch 把一局推进到playing状态
func startPlayingMatch(t *testing.T, svc *MatchService) string {
	t.Helper()
	ctx := context.Background()

	view, err := svc.CreateMatch(ctx, "alice")
	require.NoError(t, err)
	roomCode := view.RoomCode

	_, err = svc.JoinMatch(ctx, roomCode, "bob")
	require.NoError(t, err)
	_, err = svc.StartMatch(ctx, roomCode, "alice")
	require.NoError(t, err)
	view, err = svc.CompleteIntro(ctx, roomCode, "alice")
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusPlaying, view.Status)
	return roomCode
}

func TestCreateMatch(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()

	view, err := svc.CreateMatch(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, view.RoomCode, 6)
	assert.Equal(t, models.MatchStatusWaiting, view.Status)
	assert.Equal(t, []string{"alice"}, view.OrderPlayers)
	assert.Equal(t, int64(1), view.Version)

	found, err := svc.GetMatch(ctx, view.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, view.RoomCode, found.RoomCode)
}

func TestJoinAndStartFlow(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()

	view, err := svc.CreateMatch(ctx, "alice")
	require.NoError(t, err)
	roomCode := view.RoomCode

	// 人数不足不能开局
	_, err = svc.StartMatch(ctx, roomCode, "alice")
	assert.True(t, errors.Is(err, errors.ErrNotEnoughPlayers))

	view, err = svc.JoinMatch(ctx, roomCode, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, view.OrderPlayers)

	// 第三人挤不进来
	_, err = svc.JoinMatch(ctx, roomCode, "carol")
	assert.True(t, errors.Is(err, errors.ErrMatchFull))

	view, err = svc.StartMatch(ctx, roomCode, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusIntro, view.Status)
}

func TestViewRedactsDeckAndAuthenticity(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()
	roomCode := startPlayingMatch(t, svc)

	view, err := svc.GetMatch(ctx, roomCode)
	require.NoError(t, err)

	// 牌桌只露记忆文本
	require.Len(t, view.TableCards, 3)
	for _, face := range view.TableCards {
		assert.NotEmpty(t, face.Memory)
	}
	assert.Equal(t, 12, view.DeckRemaining)

	// 选中的卡牌同样不揭真伪
	view, err = svc.SelectCard(ctx, roomCode, view.CurrentPlayer, 0)
	require.NoError(t, err)
	require.NotNil(t, view.CurrentCard)
	assert.NotEmpty(t, view.CurrentCard.Memory)
	assert.Equal(t, models.TurnStateDecide, view.TurnState)
}

func TestRejectFlowRaisesMultiplier(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()
	roomCode := startPlayingMatch(t, svc)

	view, err := svc.GetMatch(ctx, roomCode)
	require.NoError(t, err)
	initiator := view.CurrentPlayer

	_, err = svc.SelectCard(ctx, roomCode, initiator, 1)
	require.NoError(t, err)
	view, err = svc.Reject(ctx, roomCode, initiator)
	require.NoError(t, err)
	assert.Equal(t, models.TurnStateOpponentDecide, view.TurnState)
	assert.Equal(t, 3, view.CurrentMultiplier)

	// 对手接下后倍率结算并推进回合
	opponent := "bob"
	if initiator == "bob" {
		opponent = "alice"
	}
	view, err = svc.OpponentClaim(ctx, roomCode, opponent)
	require.NoError(t, err)
	if view.Status == models.MatchStatusPlaying {
		assert.Equal(t, models.TurnStateDraw, view.TurnState)
		assert.Equal(t, 1, view.CurrentMultiplier)
		assert.Equal(t, opponent, view.CurrentPlayer)
	}
	delta := view.Players[opponent].Integrity
	assert.True(t, delta == 3 || delta == -3 || delta == -30, "3倍结算，实际%d", delta)
}

func TestPlayUntilFinished(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()
	roomCode := startPlayingMatch(t, svc)

	// 战报要等对局结束
	_, err := svc.GetSummary(ctx, roomCode)
	assert.True(t, errors.Is(err, errors.ErrMatchNotPlaying))

	// 双方都无脑保留第一张，牌堆有限，对局必然终结
	view, err := svc.GetMatch(ctx, roomCode)
	require.NoError(t, err)
	lastVersion := view.Version
	for i := 0; i < 20 && view.Status == models.MatchStatusPlaying; i++ {
		player := view.CurrentPlayer
		view, err = svc.SelectCard(ctx, roomCode, player, 0)
		require.NoError(t, err)
		view, err = svc.Claim(ctx, roomCode, player)
		require.NoError(t, err)

		// 版本号随每次迁移单调递增
		assert.Greater(t, view.Version, lastVersion)
		lastVersion = view.Version
	}
	require.Equal(t, models.MatchStatusFinished, view.Status)
	assert.NotEmpty(t, view.WinReason)
	require.NotNil(t, view.FinishedAt)

	// 对局结束后不再接受任何迁移
	_, err = svc.SelectCard(ctx, roomCode, "alice", 0)
	assert.True(t, errors.Is(err, errors.ErrMatchFinished))

	summary, err := svc.GetSummary(ctx, roomCode)
	require.NoError(t, err)
	assert.Equal(t, roomCode, summary.RoomCode)
	assert.Len(t, summary.Results, 2)
	assert.Equal(t, view.Winner, summary.Winner)
}

func TestTurnEnforcement(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()
	roomCode := startPlayingMatch(t, svc)

	view, err := svc.GetMatch(ctx, roomCode)
	require.NoError(t, err)
	waiting := "bob"
	if view.CurrentPlayer == "bob" {
		waiting = "alice"
	}

	_, err = svc.SelectCard(ctx, roomCode, waiting, 0)
	assert.True(t, errors.Is(err, errors.ErrNotYourTurn))

	// 外人连牌都摸不到
	_, err = svc.SelectCard(ctx, roomCode, "mallory", 0)
	assert.True(t, errors.Is(err, errors.ErrNotYourTurn))
}

func TestLeaveMatch(t *testing.T) {
	svc, cleanup := newTestMatchService(t)
	defer cleanup()
	ctx := context.Background()

	view, err := svc.CreateMatch(ctx, "alice")
	require.NoError(t, err)
	roomCode := view.RoomCode

	// 创建者自己也走了，房间直接终结
	view, err = svc.LeaveMatch(ctx, roomCode, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusFinished, view.Status)
	assert.Equal(t, models.WinReasonAbandoned, view.WinReason)
}
