package game

import (
	"math/rand"
	"time"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
	"go.uber.org/zap"
)

// 弃局策略
const (
	AbandonPolicyNone          = "none"           // 剩余玩家等待，对局挂起
	AbandonPolicyRemainingWins = "remaining_wins" // 剩余玩家直接获胜
)

// Engine 回合状态机
// 所有方法都是针对单个对局文档的纯内存迁移：先校验前置条件，
// 校验失败立即返回且不产生任何修改；持久化与并发控制由仓储层负责。
type Engine struct {
	deck   *config.DeckConfig
	match  *config.MatchConfig
	logger *zap.Logger
	rng    *rand.Rand
	now    func() time.Time
}

// EngineConfig 状态机配置
type EngineConfig struct {
	Deck   *config.DeckConfig
	Match  *config.MatchConfig
	Logger *zap.Logger
	Rand   *rand.Rand       // 可注入的随机源，默认时间种子
	Now    func() time.Time // 可注入的时钟，默认time.Now
}

// NewEngine 创建状态机
func NewEngine(cfg *EngineConfig) *Engine {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		deck:   cfg.Deck,
		match:  cfg.Match,
		logger: logger,
		rng:    rng,
		now:    now,
	}
}

// NewMatch 创建对局文档，创建者自动入座
func (e *Engine) NewMatch(roomCode, creatorID string) *models.Match {
	return &models.Match{
		RoomCode:  roomCode,
		CreatorID: creatorID,
		Status:    models.MatchStatusWaiting,
		Players: models.PlayerMap{
			creatorID: {Integrity: e.match.InitialIntegrity},
		},
		OrderPlayers:      models.StringList{creatorID},
		Turn:              0,
		TurnState:         models.TurnStateDraw,
		CurrentMultiplier: 1,
	}
}

// Join 加入对局
func (e *Engine) Join(m *models.Match, playerID string) error {
	if m.Status != models.MatchStatusWaiting {
		return errors.New(errors.ErrMatchNotWaiting)
	}
	if m.HasPlayer(playerID) {
		return errors.New(errors.ErrAlreadyJoined)
	}
	if len(m.OrderPlayers) >= 2 {
		return errors.New(errors.ErrMatchFull)
	}

	m.Players[playerID] = &models.PlayerState{Integrity: e.match.InitialIntegrity}
	m.OrderPlayers = append(m.OrderPlayers, playerID)
	return nil
}

// Leave 离开对局
// 所有玩家都离开后对局标记为结束；对局进行中只剩一人时按弃局策略处理。
func (e *Engine) Leave(m *models.Match, playerID string) error {
	if !m.HasPlayer(playerID) {
		return errors.New(errors.ErrNotInMatch)
	}

	delete(m.Players, playerID)
	order := make(models.StringList, 0, len(m.OrderPlayers))
	for _, id := range m.OrderPlayers {
		if id != playerID {
			order = append(order, id)
		}
	}
	m.OrderPlayers = order

	// turn必须始终是orderPlayers的合法下标
	if len(m.OrderPlayers) > 0 {
		m.Turn = m.Turn % len(m.OrderPlayers)
	} else {
		m.Turn = 0
	}

	if len(m.OrderPlayers) == 0 {
		e.finish(m, "", models.WinReasonAbandoned)
		return nil
	}

	if m.Status == models.MatchStatusPlaying && e.match.AbandonPolicy == AbandonPolicyRemainingWins {
		e.finish(m, m.OrderPlayers[0], models.WinReasonAbandoned)
	}
	return nil
}

// Start 创建者启动对局，进入开场过场
func (e *Engine) Start(m *models.Match, requesterID string) error {
	if requesterID != m.CreatorID {
		return errors.New(errors.ErrNotCreator)
	}
	if m.Status != models.MatchStatusWaiting {
		return errors.New(errors.ErrMatchNotWaiting)
	}
	if len(m.OrderPlayers) != 2 {
		return errors.Newf(errors.ErrNotEnoughPlayers, "当前%d人，需要2人", len(m.OrderPlayers))
	}

	m.Status = models.MatchStatusIntro
	return nil
}

// CompleteIntro 过场结束，生成牌堆并铺出牌桌，对局进入playing
// 任意在局玩家都可以触发；重复触发会因状态校验而失败。
func (e *Engine) CompleteIntro(m *models.Match, playerID string, pool []string) error {
	if !m.HasPlayer(playerID) {
		return errors.New(errors.ErrNotInMatch)
	}
	if m.Status != models.MatchStatusIntro {
		return errors.New(errors.ErrMatchNotIntro)
	}

	deck, err := GenerateDeck(pool, e.deck, e.rng)
	if err != nil {
		return err
	}
	table, err := InitTable(deck, e.deck.TableSize)
	if err != nil {
		return err
	}

	now := e.now()
	m.MemoryDeck = deck
	m.TableCards = table
	m.CardsDrawn = e.deck.TableSize
	m.Status = models.MatchStatusPlaying
	m.StartedAt = &now
	m.Turn = 0
	m.TurnState = models.TurnStateDraw
	m.CurrentMultiplier = 1
	return nil
}

// SelectCard 当前玩家从牌桌选择一张卡牌
func (e *Engine) SelectCard(m *models.Match, playerID string, index int) error {
	if err := e.requirePlaying(m); err != nil {
		return err
	}
	if m.TurnState != models.TurnStateDraw {
		return errors.Newf(errors.ErrWrongPhase, "当前阶段%s，选牌需要draw", m.TurnState)
	}
	if playerID != m.CurrentPlayerID() {
		return errors.New(errors.ErrNotYourTurn)
	}
	if index < 0 || index >= len(m.TableCards) {
		return errors.Newf(errors.ErrInvalidCardIndex, "序号%d超出牌桌范围[0,%d)", index, len(m.TableCards))
	}

	card := m.TableCards[index]
	m.CurrentCard.Card = &card
	idx := index
	m.SelectedCardIndex = &idx
	m.CardInitiator = playerID
	m.TurnState = models.TurnStateDecide
	m.CurrentMultiplier = 1
	return nil
}

// Claim 选择者保留卡牌，按1倍结算到自己身上
func (e *Engine) Claim(m *models.Match, playerID string) error {
	if err := e.requirePlaying(m); err != nil {
		return err
	}
	if m.TurnState != models.TurnStateDecide {
		return errors.Newf(errors.ErrWrongPhase, "当前阶段%s，保留需要decide", m.TurnState)
	}
	if playerID != m.CardInitiator {
		return errors.New(errors.ErrNotCardInitiator)
	}
	if m.CurrentCard.IsEmpty() {
		return errors.New(errors.ErrNoCurrentCard)
	}

	return e.resolve(m, playerID)
}

// Reject 选择者拒绝卡牌，压给对手，倍率升至3倍
// 不结算分值也不推进回合，等待对手决定。
func (e *Engine) Reject(m *models.Match, playerID string) error {
	if err := e.requirePlaying(m); err != nil {
		return err
	}
	if m.TurnState != models.TurnStateDecide {
		return errors.Newf(errors.ErrWrongPhase, "当前阶段%s，拒绝需要decide", m.TurnState)
	}
	if playerID != m.CardInitiator {
		return errors.New(errors.ErrNotCardInitiator)
	}
	if m.CurrentCard.IsEmpty() {
		return errors.New(errors.ErrNoCurrentCard)
	}

	m.TurnState = models.TurnStateOpponentDecide
	m.CurrentMultiplier = e.match.RejectMultiplier
	return nil
}

// OpponentClaim 对手盲收被拒绝的卡牌，按3倍结算到自己身上
func (e *Engine) OpponentClaim(m *models.Match, playerID string) error {
	if err := e.requirePlaying(m); err != nil {
		return err
	}
	if m.TurnState != models.TurnStateOpponentDecide {
		return errors.Newf(errors.ErrWrongPhase, "当前阶段%s，接受需要opponent_decide", m.TurnState)
	}
	if !m.HasPlayer(playerID) {
		return errors.New(errors.ErrNotInMatch)
	}
	if playerID == m.CardInitiator {
		return errors.New(errors.ErrIsCardInitiator)
	}

	return e.resolve(m, playerID)
}

// OpponentRejectBack 对手把卡牌退回，选择者被迫盲收，按3倍结算
func (e *Engine) OpponentRejectBack(m *models.Match, playerID string) error {
	if err := e.requirePlaying(m); err != nil {
		return err
	}
	if m.TurnState != models.TurnStateOpponentDecide {
		return errors.Newf(errors.ErrWrongPhase, "当前阶段%s，退回需要opponent_decide", m.TurnState)
	}
	if !m.HasPlayer(playerID) {
		return errors.New(errors.ErrNotInMatch)
	}
	if playerID == m.CardInitiator {
		return errors.New(errors.ErrIsCardInitiator)
	}
	if m.CardInitiator == "" || !m.HasPlayer(m.CardInitiator) {
		return errors.New(errors.ErrNoCurrentCard)
	}

	return e.resolve(m, m.CardInitiator)
}

// requirePlaying 校验对局可以继续接受迁移
func (e *Engine) requirePlaying(m *models.Match) error {
	switch m.Status {
	case models.MatchStatusPlaying:
		return nil
	case models.MatchStatusFinished:
		return errors.New(errors.ErrMatchFinished)
	default:
		return errors.New(errors.ErrMatchNotPlaying)
	}
}

// resolve 结算当前卡牌到目标玩家
// 顺序不可调换：先记分，再刷新牌桌，再追加记录，最后在变更后的状态上判定胜负。
func (e *Engine) resolve(m *models.Match, targetID string) error {
	card := m.CurrentCard.Card
	if card == nil || m.SelectedCardIndex == nil {
		return errors.New(errors.ErrNoCurrentCard)
	}
	target, ok := m.Players[targetID]
	if !ok {
		return errors.New(errors.ErrNotInMatch)
	}

	// (1) 计算分值并落到目标玩家
	points := card.Value * m.CurrentMultiplier
	target.Integrity += points

	// (2) 刷新牌桌
	table, drawn, err := RefreshTable(m.TableCards, *m.SelectedCardIndex, m.MemoryDeck, m.CardsDrawn)
	if err != nil {
		return err
	}
	m.TableCards = table
	m.CardsDrawn = drawn

	// (3) 真实记忆进入结局叙事记录
	if card.Authenticity == models.AuthenticityAuthentic {
		m.RevealedMemories = append(m.RevealedMemories, models.RevealedMemory{
			Memory:       card.Memory,
			Authenticity: card.Authenticity,
			Points:       points,
			Initiator:    m.CardInitiator,
			ResolvedBy:   targetID,
			RevealedAt:   e.now(),
		})
	}

	e.logger.Debug("卡牌结算",
		zap.String("room_code", m.RoomCode),
		zap.String("resolved_by", targetID),
		zap.String("authenticity", card.Authenticity),
		zap.Int("points", points),
		zap.Int("integrity", target.Integrity))

	// (4) 在变更后的状态上判定胜负
	verdict := EvaluateVictory(m.Players, m.OrderPlayers, e.match.UpperThreshold, e.match.LowerThreshold)
	if verdict.HasWinner {
		e.finish(m, verdict.WinnerID, verdict.Reason)
		return nil
	}

	// (5) 无牌可打时按完整度判定，平局则无胜者结束
	if !CanContinue(m.TableCards, m.MemoryDeck, m.CardsDrawn) {
		winner := e.integrityLeader(m)
		e.finish(m, winner, models.WinReasonDeckExhausted)
		return nil
	}

	// (6) 推进回合并重置本张卡牌的临时字段
	m.Turn = (m.Turn + 1) % len(m.OrderPlayers)
	m.TurnState = models.TurnStateDraw
	e.clearTransient(m)
	return nil
}

// integrityLeader 返回完整度更高的玩家，平局返回空串
func (e *Engine) integrityLeader(m *models.Match) string {
	var leader string
	best := 0
	tie := false
	for i, id := range m.OrderPlayers {
		p := m.Players[id]
		if p == nil {
			continue
		}
		if i == 0 || p.Integrity > best {
			leader = id
			best = p.Integrity
			tie = false
		} else if p.Integrity == best {
			tie = true
		}
	}
	if tie {
		return ""
	}
	return leader
}

// finish 终结对局，状态机不再接受任何迁移
func (e *Engine) finish(m *models.Match, winnerID, reason string) {
	now := e.now()
	m.Status = models.MatchStatusFinished
	m.Winner = winnerID
	m.WinReason = reason
	m.FinishedAt = &now
	e.clearTransient(m)

	e.logger.Info("对局结束",
		zap.String("room_code", m.RoomCode),
		zap.String("winner", winnerID),
		zap.String("reason", reason))
}

// clearTransient 清除单张卡牌生命周期内的临时字段
func (e *Engine) clearTransient(m *models.Match) {
	m.CurrentCard.Card = nil
	m.SelectedCardIndex = nil
	m.CardInitiator = ""
	m.CurrentMultiplier = 1
}
