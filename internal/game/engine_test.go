package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
)

func testMatchConfig() *config.MatchConfig {
	return &config.MatchConfig{
		InitialIntegrity: 0,
		UpperThreshold:   10,
		LowerThreshold:   -10,
		RejectMultiplier: 3,
		UpdateRetries:    3,
		AbandonPolicy:    AbandonPolicyNone,
	}
}

func newTestEngine(t *testing.T, mutate ...func(*config.MatchConfig)) *Engine {
	t.Helper()
	matchCfg := testMatchConfig()
	for _, fn := range mutate {
		fn(matchCfg)
	}
	return NewEngine(&EngineConfig{
		Deck:  testDeckConfig(),
		Match: matchCfg,
		Rand:  rand.New(rand.NewSource(42)),
		Now:   func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
}

// playingMatch 搭一个进行中的双人对局，牌堆内容可控
func playingMatch(deck models.CardList) *models.Match {
	table := make(models.CardList, 3)
	copy(table, deck[:3])
	return &models.Match{
		RoomCode:  "TEST01",
		CreatorID: "alice",
		Status:    models.MatchStatusPlaying,
		Players: models.PlayerMap{
			"alice": {Integrity: 0},
			"bob":   {Integrity: 0},
		},
		OrderPlayers:      models.StringList{"alice", "bob"},
		Turn:              0,
		TurnState:         models.TurnStateDraw,
		CurrentMultiplier: 1,
		MemoryDeck:        deck,
		CardsDrawn:        3,
		TableCards:        table,
	}
}

// ---- 房间生命周期 ----

func TestNewMatchAndJoin(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")

	assert.Equal(t, models.MatchStatusWaiting, m.Status)
	assert.Equal(t, models.StringList{"alice"}, m.OrderPlayers)
	assert.Equal(t, 0, m.Players["alice"].Integrity)
	assert.Equal(t, 1, m.CurrentMultiplier)

	require.NoError(t, e.Join(m, "bob"))
	assert.Equal(t, models.StringList{"alice", "bob"}, m.OrderPlayers)

	// 重复加入与满员
	assert.True(t, errors.Is(e.Join(m, "bob"), errors.ErrAlreadyJoined))
	assert.True(t, errors.Is(e.Join(m, "carol"), errors.ErrMatchFull))
}

func TestJoinRequiresWaiting(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")
	m.Status = models.MatchStatusPlaying

	assert.True(t, errors.Is(e.Join(m, "bob"), errors.ErrMatchNotWaiting))
}

func TestStart(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")

	// 人数不足
	assert.True(t, errors.Is(e.Start(m, "alice"), errors.ErrNotEnoughPlayers))

	require.NoError(t, e.Join(m, "bob"))

	// 只有创建者能开局
	assert.True(t, errors.Is(e.Start(m, "bob"), errors.ErrNotCreator))

	require.NoError(t, e.Start(m, "alice"))
	assert.Equal(t, models.MatchStatusIntro, m.Status)

	// 重复开局
	assert.True(t, errors.Is(e.Start(m, "alice"), errors.ErrMatchNotWaiting))
}

func TestCompleteIntro(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")
	require.NoError(t, e.Join(m, "bob"))
	pool := testPool(48)

	// 状态不对
	assert.True(t, errors.Is(e.CompleteIntro(m, "bob", pool), errors.ErrMatchNotIntro))

	require.NoError(t, e.Start(m, "alice"))
	require.NoError(t, e.CompleteIntro(m, "bob", pool))

	assert.Equal(t, models.MatchStatusPlaying, m.Status)
	assert.Len(t, m.MemoryDeck, 15)
	assert.Len(t, m.TableCards, 3)
	assert.Equal(t, 3, m.CardsDrawn)
	assert.Equal(t, 0, m.Turn)
	assert.Equal(t, models.TurnStateDraw, m.TurnState)
	require.NotNil(t, m.StartedAt)

	// 牌桌来自牌堆头部
	assert.Equal(t, models.CardList(m.MemoryDeck[:3]), m.TableCards)

	// 重复触发被状态校验拦下
	assert.True(t, errors.Is(e.CompleteIntro(m, "alice", pool), errors.ErrMatchNotIntro))
}

func TestCompleteIntroOutsiderRejected(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")
	require.NoError(t, e.Join(m, "bob"))
	require.NoError(t, e.Start(m, "alice"))

	assert.True(t, errors.Is(e.CompleteIntro(m, "mallory", testPool(48)), errors.ErrNotInMatch))
}

// ---- 选牌与决定 ----

func TestSelectCard(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	// 没轮到bob
	assert.True(t, errors.Is(e.SelectCard(m, "bob", 0), errors.ErrNotYourTurn))

	// 序号越界
	assert.True(t, errors.Is(e.SelectCard(m, "alice", 3), errors.ErrInvalidCardIndex))
	assert.True(t, errors.Is(e.SelectCard(m, "alice", -1), errors.ErrInvalidCardIndex))

	require.NoError(t, e.SelectCard(m, "alice", 1))
	assert.Equal(t, models.TurnStateDecide, m.TurnState)
	assert.Equal(t, "alice", m.CardInitiator)
	require.NotNil(t, m.SelectedCardIndex)
	assert.Equal(t, 1, *m.SelectedCardIndex)
	require.NotNil(t, m.CurrentCard.Card)
	assert.Equal(t, m.TableCards[1], *m.CurrentCard.Card)
	assert.Equal(t, 1, m.CurrentMultiplier)

	// decide阶段不能再选
	assert.True(t, errors.Is(e.SelectCard(m, "alice", 0), errors.ErrWrongPhase))
}

func TestClaimResolvesToInitiator(t *testing.T) {
	deck := testDeck15()
	e := newTestEngine(t)
	m := playingMatch(deck)

	require.NoError(t, e.SelectCard(m, "alice", 0)) // 真实记忆，+1
	require.NoError(t, e.Claim(m, "alice"))

	assert.Equal(t, 1, m.Players["alice"].Integrity)
	assert.Equal(t, 0, m.Players["bob"].Integrity)

	// 回合推进到bob，临时字段清空
	assert.Equal(t, 1, m.Turn)
	assert.Equal(t, models.TurnStateDraw, m.TurnState)
	assert.Nil(t, m.CurrentCard.Card)
	assert.Nil(t, m.SelectedCardIndex)
	assert.Empty(t, m.CardInitiator)
	assert.Equal(t, 1, m.CurrentMultiplier)

	// 牌桌原位补了牌堆第4张
	assert.Equal(t, deck[3], m.TableCards[0])
	assert.Equal(t, 4, m.CardsDrawn)

	// 真实记忆进了结局记录
	require.Len(t, m.RevealedMemories, 1)
	assert.Equal(t, "alice", m.RevealedMemories[0].ResolvedBy)
	assert.Equal(t, 1, m.RevealedMemories[0].Points)
}

func TestClaimOnlyByInitiator(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.SelectCard(m, "alice", 0))
	assert.True(t, errors.Is(e.Claim(m, "bob"), errors.ErrNotCardInitiator))
}

func TestStaleClaimRejected(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.SelectCard(m, "alice", 0))
	require.NoError(t, e.Claim(m, "alice"))

	// 卡牌已结算，迟到的第二次claim必须失败且不改状态
	snapshot := m.Clone()
	err := e.Claim(m, "alice")
	assert.True(t, errors.Is(err, errors.ErrWrongPhase))
	assert.Equal(t, snapshot.Players["alice"].Integrity, m.Players["alice"].Integrity)
	assert.Equal(t, snapshot.Turn, m.Turn)
}

func TestRejectRaisesMultiplier(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.SelectCard(m, "alice", 1)) // 损坏记忆，-1
	require.NoError(t, e.Reject(m, "alice"))

	assert.Equal(t, models.TurnStateOpponentDecide, m.TurnState)
	assert.Equal(t, 3, m.CurrentMultiplier)

	// 拒绝不结算分值也不推进回合
	assert.Equal(t, 0, m.Players["alice"].Integrity)
	assert.Equal(t, 0, m.Players["bob"].Integrity)
	assert.Equal(t, 0, m.Turn)
	require.NotNil(t, m.CurrentCard.Card)
}

func TestOpponentClaimTriplePoints(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.SelectCard(m, "alice", 1)) // 损坏记忆，-1
	require.NoError(t, e.Reject(m, "alice"))

	// 选择者不能自己接
	assert.True(t, errors.Is(e.OpponentClaim(m, "alice"), errors.ErrIsCardInitiator))

	require.NoError(t, e.OpponentClaim(m, "bob"))
	assert.Equal(t, -3, m.Players["bob"].Integrity)
	assert.Equal(t, 0, m.Players["alice"].Integrity)
	assert.Equal(t, 1, m.Turn)
	assert.Equal(t, models.TurnStateDraw, m.TurnState)
}

func TestOpponentRejectBackTriplePointsToInitiator(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.SelectCard(m, "alice", 0)) // 真实记忆，+1
	require.NoError(t, e.Reject(m, "alice"))
	require.NoError(t, e.OpponentRejectBack(m, "bob"))

	// 退回后按3倍结算到选择者
	assert.Equal(t, 3, m.Players["alice"].Integrity)
	assert.Equal(t, 0, m.Players["bob"].Integrity)

	require.Len(t, m.RevealedMemories, 1)
	assert.Equal(t, "alice", m.RevealedMemories[0].Initiator)
	assert.Equal(t, "alice", m.RevealedMemories[0].ResolvedBy)
	assert.Equal(t, 3, m.RevealedMemories[0].Points)
}

func TestCorruptedMemoryNotRevealed(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.SelectCard(m, "alice", 1)) // 损坏记忆
	require.NoError(t, e.Claim(m, "alice"))

	assert.Equal(t, -1, m.Players["alice"].Integrity)
	assert.Empty(t, m.RevealedMemories)
}

// ---- 胜负判定 ----

func TestClaimTriggersUpperThresholdWin(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())
	m.Players["alice"].Integrity = 9

	require.NoError(t, e.SelectCard(m, "alice", 0)) // +1 → 10
	require.NoError(t, e.Claim(m, "alice"))

	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Equal(t, "alice", m.Winner)
	assert.Equal(t, models.WinReasonUpperThreshold, m.WinReason)
	require.NotNil(t, m.FinishedAt)

	// 结束后一切迁移被拒绝
	assert.True(t, errors.Is(e.SelectCard(m, "bob", 0), errors.ErrMatchFinished))
	assert.True(t, errors.Is(e.Claim(m, "alice"), errors.ErrMatchFinished))
}

func TestGlitchDefeatsClaimer(t *testing.T) {
	deck := testDeck15()
	deck[2] = card("致命", models.AuthenticityFatalGlitch, -10)
	e := newTestEngine(t)
	m := playingMatch(deck)

	require.NoError(t, e.SelectCard(m, "alice", 2))
	require.NoError(t, e.Claim(m, "alice")) // -10 → 跌破下限

	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Equal(t, "bob", m.Winner)
	assert.Equal(t, models.WinReasonOpponentDown, m.WinReason)
}

func TestRejectedGlitchDefeatsOpponent(t *testing.T) {
	deck := testDeck15()
	deck[2] = card("致命", models.AuthenticityFatalGlitch, -10)
	e := newTestEngine(t)
	m := playingMatch(deck)

	require.NoError(t, e.SelectCard(m, "alice", 2))
	require.NoError(t, e.Reject(m, "alice"))
	require.NoError(t, e.OpponentClaim(m, "bob")) // -30

	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Equal(t, "alice", m.Winner)
	assert.Equal(t, -30, m.Players["bob"].Integrity)
}

func TestDeckExhaustedEnding(t *testing.T) {
	// 只剩一张可打：牌堆已全部抽出，牌桌只有一张
	deck := models.CardList{
		card("甲", models.AuthenticityAuthentic, 1),
	}
	e := newTestEngine(t)
	m := playingMatch3(deck)

	m.Players["alice"].Integrity = 2
	m.Players["bob"].Integrity = 1

	require.NoError(t, e.SelectCard(m, "alice", 0))
	require.NoError(t, e.Claim(m, "alice"))

	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Equal(t, models.WinReasonDeckExhausted, m.WinReason)
	assert.Equal(t, "alice", m.Winner)
}

func TestDeckExhaustedTieHasNoWinner(t *testing.T) {
	deck := models.CardList{
		card("甲", models.AuthenticityCorrupted, -1),
	}
	e := newTestEngine(t)
	m := playingMatch3(deck)

	m.Players["alice"].Integrity = 1
	m.Players["bob"].Integrity = 0

	require.NoError(t, e.SelectCard(m, "alice", 0))
	require.NoError(t, e.Claim(m, "alice")) // alice 0，双方平

	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Empty(t, m.Winner)
	assert.Equal(t, models.WinReasonDeckExhausted, m.WinReason)
}

// playingMatch3 牌堆已耗尽、牌桌即为全部剩余牌的对局
func playingMatch3(remaining models.CardList) *models.Match {
	table := make(models.CardList, len(remaining))
	copy(table, remaining)
	return &models.Match{
		RoomCode:  "TEST02",
		CreatorID: "alice",
		Status:    models.MatchStatusPlaying,
		Players: models.PlayerMap{
			"alice": {Integrity: 0},
			"bob":   {Integrity: 0},
		},
		OrderPlayers:      models.StringList{"alice", "bob"},
		TurnState:         models.TurnStateDraw,
		CurrentMultiplier: 1,
		MemoryDeck:        remaining,
		CardsDrawn:        len(remaining),
		TableCards:        table,
	}
}

// ---- 离开与弃局 ----

func TestLeaveNotInMatch(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")

	assert.True(t, errors.Is(e.Leave(m, "mallory"), errors.ErrNotInMatch))
}

func TestLeaveAllGoneFinishesMatch(t *testing.T) {
	e := newTestEngine(t)
	m := e.NewMatch("ROOM01", "alice")

	require.NoError(t, e.Leave(m, "alice"))
	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Empty(t, m.Winner)
	assert.Equal(t, models.WinReasonAbandoned, m.WinReason)
}

func TestLeaveDuringPlayPolicyNone(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())

	require.NoError(t, e.Leave(m, "bob"))
	// 默认策略下对局挂起等待
	assert.Equal(t, models.MatchStatusPlaying, m.Status)
	assert.Equal(t, models.StringList{"alice"}, m.OrderPlayers)
	assert.Equal(t, 0, m.Turn)
}

func TestLeaveDuringPlayRemainingWins(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.MatchConfig) {
		cfg.AbandonPolicy = AbandonPolicyRemainingWins
	})
	m := playingMatch(testDeck15())

	require.NoError(t, e.Leave(m, "alice"))
	assert.Equal(t, models.MatchStatusFinished, m.Status)
	assert.Equal(t, "bob", m.Winner)
	assert.Equal(t, models.WinReasonAbandoned, m.WinReason)
}

func TestLeaveClampsTurn(t *testing.T) {
	e := newTestEngine(t)
	m := playingMatch(testDeck15())
	m.Turn = 1 // 轮到bob

	require.NoError(t, e.Leave(m, "bob"))
	assert.Equal(t, 0, m.Turn)
}

// testDeck15 15张内容可控的牌堆：偶数位真实、奇数位损坏
func testDeck15() models.CardList {
	deck := make(models.CardList, 15)
	for i := range deck {
		if i%2 == 0 {
			deck[i] = card(poolName(i), models.AuthenticityAuthentic, 1)
		} else {
			deck[i] = card(poolName(i), models.AuthenticityCorrupted, -1)
		}
	}
	return deck
}

func poolName(i int) string {
	return string(rune('A' + i))
}
