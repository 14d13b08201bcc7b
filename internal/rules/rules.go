// Package rules 是状态机之外的第二道防线。
// 它不实现游戏逻辑，只在每次写入前把新旧文档的差异归类为
// 某一种合法的迁移形状，并拒绝一切不符合形状的写入——
// 即使业务层出了bug或被绕过，非法写入也到不了存储。
// 这里的谓词必须与 internal/game 的迁移保持同步。
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
)

// 文档字段名，用于差异归类与按场景的允许清单
const (
	fieldStatus        = "status"
	fieldPlayers       = "players"
	fieldOrderPlayers  = "order_players"
	fieldTurn          = "turn"
	fieldTurnState     = "turn_state"
	fieldMultiplier    = "current_multiplier"
	fieldMemoryDeck    = "memory_deck"
	fieldCardsDrawn    = "cards_drawn"
	fieldTableCards    = "table_cards"
	fieldCurrentCard   = "current_card"
	fieldSelectedIndex = "selected_card_index"
	fieldCardInitiator = "card_initiator"
	fieldRevealed      = "revealed_memories"
	fieldWinner        = "winner"
	fieldWinReason     = "win_reason"
	fieldStartedAt     = "started_at"
	fieldFinishedAt    = "finished_at"
	fieldRoomCode      = "room_code"
	fieldCreator       = "creator_id"
)

// Validator 写入形状校验器
type Validator struct {
	cfg *config.MatchConfig
}

// NewValidator 创建校验器
func NewValidator(cfg *config.MatchConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate 校验一次写入
// old是存储中的当前文档，next是待写入的文档，actorID是经过认证的操作者。
func (v *Validator) Validate(old, next *models.Match, actorID string) error {
	// 已结束的对局不再接受任何写入
	if old.Status == models.MatchStatusFinished {
		return errors.New(errors.ErrIllegalStatusJump, "对局已结束，文档不可再修改")
	}

	changed := diffFields(old, next)

	// 不可变字段在任何场景下都不允许修改
	for _, f := range []string{fieldRoomCode, fieldCreator} {
		if changed[f] {
			return errors.Newf(errors.ErrFieldNotAllowed, "字段%s不可修改", f)
		}
	}
	// 牌堆生成后不可修改
	if changed[fieldMemoryDeck] && len(old.MemoryDeck) > 0 {
		return errors.New(errors.ErrDeckModified)
	}

	switch {
	case isJoin(old, next):
		return v.checkJoin(old, next, actorID, changed)
	case isLeave(old, next):
		return v.checkLeave(old, next, actorID, changed)
	case isStart(old, next):
		return v.checkStart(old, next, actorID, changed)
	case isIntroComplete(old, next):
		return v.checkIntroComplete(old, next, actorID, changed)
	case isSelectCard(old, next):
		return v.checkSelectCard(old, next, actorID, changed)
	case isReject(old, next):
		return v.checkReject(old, next, actorID, changed)
	case isResolve(old, next):
		return v.checkResolve(old, next, actorID, changed)
	}

	return errors.New(errors.ErrIllegalWriteShape)
}

// ---- 场景识别 ----

func isJoin(old, next *models.Match) bool {
	return old.Status == models.MatchStatusWaiting &&
		next.Status == models.MatchStatusWaiting &&
		len(next.OrderPlayers) == len(old.OrderPlayers)+1
}

func isLeave(old, next *models.Match) bool {
	return len(next.OrderPlayers) == len(old.OrderPlayers)-1
}

func isStart(old, next *models.Match) bool {
	return old.Status == models.MatchStatusWaiting &&
		next.Status == models.MatchStatusIntro
}

func isIntroComplete(old, next *models.Match) bool {
	return old.Status == models.MatchStatusIntro &&
		next.Status == models.MatchStatusPlaying
}

func isSelectCard(old, next *models.Match) bool {
	return old.Status == models.MatchStatusPlaying &&
		old.TurnState == models.TurnStateDraw &&
		next.TurnState == models.TurnStateDecide
}

func isReject(old, next *models.Match) bool {
	return old.Status == models.MatchStatusPlaying &&
		old.TurnState == models.TurnStateDecide &&
		next.TurnState == models.TurnStateOpponentDecide
}

func isResolve(old, next *models.Match) bool {
	if old.Status != models.MatchStatusPlaying {
		return false
	}
	if old.TurnState != models.TurnStateDecide && old.TurnState != models.TurnStateOpponentDecide {
		return false
	}
	return next.TurnState == models.TurnStateDraw || next.Status == models.MatchStatusFinished
}

// ---- 场景校验 ----

func (v *Validator) checkJoin(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldPlayers, fieldOrderPlayers); err != nil {
		return err
	}
	if old.HasPlayer(actorID) || !next.HasPlayer(actorID) {
		return errors.New(errors.ErrIllegalWriteShape, "加入者必须是操作者本人")
	}
	if next.OrderPlayers[len(next.OrderPlayers)-1] != actorID {
		return errors.New(errors.ErrIllegalWriteShape, "新玩家必须追加在行动顺序末尾")
	}
	// 原有玩家不得被改动
	for id, p := range old.Players {
		np, ok := next.Players[id]
		if !ok || np.Integrity != p.Integrity {
			return errors.New(errors.ErrFieldNotAllowed, "加入不得改动其他玩家")
		}
	}
	if np := next.Players[actorID]; np.Integrity != v.cfg.InitialIntegrity {
		return errors.Newf(errors.ErrIllegalWriteShape, "新玩家完整度必须为初始值%d", v.cfg.InitialIntegrity)
	}
	return nil
}

func (v *Validator) checkLeave(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldPlayers, fieldOrderPlayers, fieldTurn,
		fieldStatus, fieldWinner, fieldWinReason, fieldFinishedAt,
		fieldCurrentCard, fieldSelectedIndex, fieldCardInitiator, fieldMultiplier); err != nil {
		return err
	}
	if !old.HasPlayer(actorID) || next.HasPlayer(actorID) {
		return errors.New(errors.ErrIllegalWriteShape, "离开者必须是操作者本人")
	}
	if next.Status == models.MatchStatusFinished {
		// 全员离开，或按弃局策略判剩余玩家获胜
		if len(next.OrderPlayers) > 0 &&
			(v.cfg.AbandonPolicy != "remaining_wins" || next.Winner != next.OrderPlayers[0]) {
			return errors.New(errors.ErrIllegalWriteShape, "离开导致的结束不符合弃局策略")
		}
		return nil
	}
	if changed[fieldStatus] {
		return errors.New(errors.ErrIllegalStatusJump)
	}
	if len(next.OrderPlayers) > 0 && next.Turn >= len(next.OrderPlayers) {
		return errors.New(errors.ErrIllegalTurnAdvance, "turn越界")
	}
	return nil
}

func (v *Validator) checkStart(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldStatus); err != nil {
		return err
	}
	if actorID != old.CreatorID {
		return errors.New(errors.ErrIllegalWriteShape, "只有创建者可以开始对局")
	}
	if len(old.OrderPlayers) != 2 {
		return errors.New(errors.ErrIllegalWriteShape, "开始对局需要恰好2名玩家")
	}
	return nil
}

func (v *Validator) checkIntroComplete(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldStatus, fieldMemoryDeck, fieldCardsDrawn,
		fieldTableCards, fieldTurn, fieldTurnState, fieldMultiplier, fieldStartedAt); err != nil {
		return err
	}
	if !old.HasPlayer(actorID) {
		return errors.New(errors.ErrIllegalWriteShape, "操作者不在对局中")
	}
	if len(next.MemoryDeck) == 0 || len(next.TableCards) == 0 {
		return errors.New(errors.ErrIllegalWriteShape, "进入playing必须铺出牌堆与牌桌")
	}
	if next.CardsDrawn != len(next.TableCards) {
		return errors.New(errors.ErrIllegalWriteShape, "初始抽牌数必须等于牌桌数量")
	}
	if next.Turn != 0 || next.TurnState != models.TurnStateDraw || next.CurrentMultiplier != 1 {
		return errors.New(errors.ErrIllegalWriteShape, "开局必须从turn 0的draw阶段开始")
	}
	// 牌桌必须来自牌堆头部
	for i, card := range next.TableCards {
		if card != next.MemoryDeck[i] {
			return errors.New(errors.ErrIllegalWriteShape, "初始牌桌必须取自牌堆头部")
		}
	}
	return nil
}

func (v *Validator) checkSelectCard(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldTurnState, fieldCurrentCard,
		fieldSelectedIndex, fieldCardInitiator, fieldMultiplier); err != nil {
		return err
	}
	if actorID != old.CurrentPlayerID() {
		return errors.New(errors.ErrIllegalWriteShape, "未轮到该玩家选牌")
	}
	if next.CardInitiator != actorID {
		return errors.New(errors.ErrIllegalWriteShape, "选择者必须是操作者本人")
	}
	if next.CurrentMultiplier != 1 {
		return errors.New(errors.ErrIllegalMultiplier, "选牌阶段倍率必须为1")
	}
	idx := next.SelectedCardIndex
	if idx == nil || *idx < 0 || *idx >= len(old.TableCards) {
		return errors.New(errors.ErrIllegalWriteShape, "选中序号越界")
	}
	if next.CurrentCard.Card == nil || *next.CurrentCard.Card != old.TableCards[*idx] {
		return errors.New(errors.ErrIllegalWriteShape, "当前卡牌必须取自被选中的牌桌位置")
	}
	return nil
}

func (v *Validator) checkReject(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldTurnState, fieldMultiplier); err != nil {
		return err
	}
	if actorID != old.CardInitiator {
		return errors.New(errors.ErrIllegalWriteShape, "只有选择者可以拒绝")
	}
	if old.CurrentMultiplier != 1 || next.CurrentMultiplier != v.cfg.RejectMultiplier {
		return errors.Newf(errors.ErrIllegalMultiplier, "拒绝必须把倍率从1升至%d", v.cfg.RejectMultiplier)
	}
	return nil
}

func (v *Validator) checkResolve(old, next *models.Match, actorID string, changed map[string]bool) error {
	if err := allowOnly(changed, fieldPlayers, fieldTurn, fieldTurnState,
		fieldTableCards, fieldCardsDrawn, fieldRevealed,
		fieldCurrentCard, fieldSelectedIndex, fieldCardInitiator, fieldMultiplier,
		fieldStatus, fieldWinner, fieldWinReason, fieldFinishedAt); err != nil {
		return err
	}

	card := old.CurrentCard.Card
	if card == nil || old.SelectedCardIndex == nil {
		return errors.New(errors.ErrIllegalWriteShape, "没有待结算的卡牌")
	}

	// 恰好一名玩家的完整度按 卡牌分值×当前倍率 变化
	expected := card.Value * old.CurrentMultiplier
	var credited string
	for id, p := range old.Players {
		np, ok := next.Players[id]
		if !ok {
			return errors.New(errors.ErrFieldNotAllowed, "结算不得移除玩家")
		}
		switch np.Integrity - p.Integrity {
		case 0:
		case expected:
			if credited != "" {
				return errors.New(errors.ErrIllegalWriteShape, "每次结算只能变更一名玩家")
			}
			credited = id
		default:
			return errors.Newf(errors.ErrIllegalWriteShape, "分值变化必须恰好为%d", expected)
		}
	}
	if credited == "" && expected != 0 {
		return errors.New(errors.ErrIllegalWriteShape, "结算必须有玩家承受分值")
	}

	// 承受者的角色必须与阶段匹配
	if old.TurnState == models.TurnStateDecide {
		// claim：选择者本人结算
		if actorID != old.CardInitiator || (credited != "" && credited != actorID) {
			return errors.New(errors.ErrIllegalWriteShape, "decide阶段只有选择者可以结算到自己")
		}
	} else {
		// opponentClaim / opponentRejectBack：操作者必须是对手
		if actorID == old.CardInitiator || !old.HasPlayer(actorID) {
			return errors.New(errors.ErrIllegalWriteShape, "opponent_decide阶段必须由对手操作")
		}
		if credited != "" && credited != actorID && credited != old.CardInitiator {
			return errors.New(errors.ErrIllegalWriteShape, "分值只能落在对手或选择者身上")
		}
	}

	// 牌桌必须按选中位置刷新
	if err := checkRefresh(old, next); err != nil {
		return err
	}

	// 记录只追加
	if len(next.RevealedMemories) < len(old.RevealedMemories) ||
		len(next.RevealedMemories) > len(old.RevealedMemories)+1 {
		return errors.New(errors.ErrIllegalWriteShape, "结算记录只能追加一条")
	}
	for i, r := range old.RevealedMemories {
		if next.RevealedMemories[i] != r {
			return errors.New(errors.ErrFieldNotAllowed, "历史结算记录不可修改")
		}
	}

	// 临时字段必须清空
	if next.CurrentCard.Card != nil || next.SelectedCardIndex != nil ||
		next.CardInitiator != "" || next.CurrentMultiplier != 1 {
		return errors.New(errors.ErrIllegalWriteShape, "结算后必须清空临时字段")
	}

	if next.Status == models.MatchStatusFinished {
		if next.WinReason == "" || next.FinishedAt == nil {
			return errors.New(errors.ErrIllegalWriteShape, "结束必须记录原因与时间")
		}
		return nil
	}

	// 未结束则回合恰好推进1
	if next.Turn != (old.Turn+1)%len(old.OrderPlayers) {
		return errors.New(errors.ErrIllegalTurnAdvance)
	}
	return nil
}

// checkRefresh 校验牌桌刷新与抽牌计数的一致性
func checkRefresh(old, next *models.Match) error {
	idx := *old.SelectedCardIndex
	if old.CardsDrawn < len(old.MemoryDeck) {
		// 原位替换
		if len(next.TableCards) != len(old.TableCards) ||
			next.CardsDrawn != old.CardsDrawn+1 {
			return errors.New(errors.ErrIllegalWriteShape, "牌堆未耗尽时必须原位补牌")
		}
		for i, card := range next.TableCards {
			want := old.TableCards[i]
			if i == idx {
				want = old.MemoryDeck[old.CardsDrawn]
			}
			if card != want {
				return errors.New(errors.ErrIllegalWriteShape, "补牌必须来自牌堆下一张")
			}
		}
		return nil
	}

	// 牌堆耗尽，牌桌收缩
	if len(next.TableCards) != len(old.TableCards)-1 ||
		next.CardsDrawn != old.CardsDrawn {
		return errors.New(errors.ErrIllegalWriteShape, "牌堆耗尽时牌桌必须收缩")
	}
	for i, card := range next.TableCards {
		j := i
		if i >= idx {
			j = i + 1
		}
		if card != old.TableCards[j] {
			return errors.New(errors.ErrIllegalWriteShape, "收缩只能移除被选中的位置")
		}
	}
	return nil
}

// ---- 差异工具 ----

// diffFields 按字段比较两份文档，返回有变化的字段集合
func diffFields(old, next *models.Match) map[string]bool {
	changed := make(map[string]bool)
	for field, extract := range fieldExtractors {
		if extract(old) != extract(next) {
			changed[field] = true
		}
	}
	return changed
}

// allowOnly 校验变化的字段都在允许清单内
func allowOnly(changed map[string]bool, allowed ...string) error {
	allowSet := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		allowSet[f] = true
	}
	for f := range changed {
		if !allowSet[f] {
			return errors.Newf(errors.ErrFieldNotAllowed, "该场景不允许修改字段%s", f)
		}
	}
	return nil
}

// fieldExtractors 把每个受控字段规格化成可比较的快照
var fieldExtractors = map[string]func(*models.Match) string{
	fieldStatus:        func(m *models.Match) string { return m.Status },
	fieldRoomCode:      func(m *models.Match) string { return m.RoomCode },
	fieldCreator:       func(m *models.Match) string { return m.CreatorID },
	fieldPlayers:       func(m *models.Match) string { return asJSON(m.Players) },
	fieldOrderPlayers:  func(m *models.Match) string { return asJSON(m.OrderPlayers) },
	fieldTurn:          func(m *models.Match) string { return fmt.Sprint(m.Turn) },
	fieldTurnState:     func(m *models.Match) string { return m.TurnState },
	fieldMultiplier:    func(m *models.Match) string { return fmt.Sprint(m.CurrentMultiplier) },
	fieldMemoryDeck:    func(m *models.Match) string { return asJSON(m.MemoryDeck) },
	fieldCardsDrawn:    func(m *models.Match) string { return fmt.Sprint(m.CardsDrawn) },
	fieldTableCards:    func(m *models.Match) string { return asJSON(m.TableCards) },
	fieldCurrentCard:   func(m *models.Match) string { return asJSON(m.CurrentCard) },
	fieldSelectedIndex: func(m *models.Match) string { return asJSON(m.SelectedCardIndex) },
	fieldCardInitiator: func(m *models.Match) string { return m.CardInitiator },
	fieldRevealed:      func(m *models.Match) string { return asJSON(m.RevealedMemories) },
	fieldWinner:        func(m *models.Match) string { return m.Winner },
	fieldWinReason:     func(m *models.Match) string { return m.WinReason },
	fieldStartedAt:     func(m *models.Match) string { return asJSON(m.StartedAt) },
	fieldFinishedAt:    func(m *models.Match) string { return asJSON(m.FinishedAt) },
}

func asJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("!err:%v", err)
	}
	return string(data)
}
