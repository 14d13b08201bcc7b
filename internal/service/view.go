package service

import (
	"time"

	"github.com/wfunc/memory-duel/internal/game"
	"github.com/wfunc/memory-duel/internal/models"
)

// CardFace 卡牌的对外表示
// 只露出记忆文本，真伪要到结算那一刻才揭晓
type CardFace struct {
	Memory string `json:"memory"`
}

// PlayerView 玩家的对外表示
type PlayerView struct {
	Integrity int `json:"integrity"`
}

// MatchView 对局状态的对外表示
// 牌堆内容与未结算卡牌的真伪一律不下发，防止客户端作弊
type MatchView struct {
	RoomCode          string                  `json:"room_code"`
	CreatorID         string                  `json:"creator_id"`
	Status            string                  `json:"status"`
	Players           map[string]PlayerView   `json:"players"`
	OrderPlayers      []string                `json:"order_players"`
	Turn              int                     `json:"turn"`
	CurrentPlayer     string                  `json:"current_player,omitempty"`
	TurnState         string                  `json:"turn_state"`
	CurrentMultiplier int                     `json:"current_multiplier"`
	TableCards        []CardFace              `json:"table_cards"`
	CurrentCard       *CardFace               `json:"current_card,omitempty"`
	SelectedCardIndex *int                    `json:"selected_card_index,omitempty"`
	CardInitiator     string                  `json:"card_initiator,omitempty"`
	DeckRemaining     int                     `json:"deck_remaining"`
	RevealedMemories  []models.RevealedMemory `json:"revealed_memories"`
	Winner            string                  `json:"winner,omitempty"`
	WinReason         string                  `json:"win_reason,omitempty"`
	StartedAt         *time.Time              `json:"started_at,omitempty"`
	FinishedAt        *time.Time              `json:"finished_at,omitempty"`
	Version           int64                   `json:"version"`
}

// NewMatchView 构建对局视图
func NewMatchView(m *models.Match) *MatchView {
	players := make(map[string]PlayerView, len(m.Players))
	for id, p := range m.Players {
		players[id] = PlayerView{Integrity: p.Integrity}
	}

	table := make([]CardFace, len(m.TableCards))
	for i, card := range m.TableCards {
		table[i] = CardFace{Memory: card.Memory}
	}

	var current *CardFace
	if m.CurrentCard.Card != nil {
		current = &CardFace{Memory: m.CurrentCard.Card.Memory}
	}

	revealed := m.RevealedMemories
	if revealed == nil {
		revealed = models.RevealedList{}
	}

	return &MatchView{
		RoomCode:          m.RoomCode,
		CreatorID:         m.CreatorID,
		Status:            m.Status,
		Players:           players,
		OrderPlayers:      m.OrderPlayers,
		Turn:              m.Turn,
		CurrentPlayer:     m.CurrentPlayerID(),
		TurnState:         m.TurnState,
		CurrentMultiplier: m.CurrentMultiplier,
		TableCards:        table,
		CurrentCard:       current,
		SelectedCardIndex: m.SelectedCardIndex,
		CardInitiator:     m.CardInitiator,
		DeckRemaining:     game.RemainingCount(m.TableCards, m.MemoryDeck, m.CardsDrawn),
		RevealedMemories:  revealed,
		Winner:            m.Winner,
		WinReason:         m.WinReason,
		StartedAt:         m.StartedAt,
		FinishedAt:        m.FinishedAt,
		Version:           m.Version,
	}
}

// PlayerResult 战报中的单个玩家结果
type PlayerResult struct {
	PlayerID  string `json:"player_id"`
	Integrity int    `json:"integrity"`
	IsWinner  bool   `json:"is_winner"`
}

// MatchSummary 已结束对局的战报
type MatchSummary struct {
	RoomCode         string                  `json:"room_code"`
	Winner           string                  `json:"winner,omitempty"`
	WinReason        string                  `json:"win_reason"`
	Results          []PlayerResult          `json:"results"`
	RevealedMemories []models.RevealedMemory `json:"revealed_memories"`
	Turns            int                     `json:"turns"` // 结算过的卡牌轮数
	Duration         int64                   `json:"duration_seconds"`
}

// NewMatchSummary 构建战报
func NewMatchSummary(m *models.Match) *MatchSummary {
	results := make([]PlayerResult, 0, len(m.OrderPlayers))
	for _, id := range m.OrderPlayers {
		p, ok := m.Players[id]
		if !ok {
			continue
		}
		results = append(results, PlayerResult{
			PlayerID:  id,
			Integrity: p.Integrity,
			IsWinner:  id == m.Winner && m.Winner != "",
		})
	}

	revealed := m.RevealedMemories
	if revealed == nil {
		revealed = models.RevealedList{}
	}

	var duration int64
	if m.StartedAt != nil && m.FinishedAt != nil {
		duration = int64(m.FinishedAt.Sub(*m.StartedAt).Seconds())
	}

	return &MatchSummary{
		RoomCode:         m.RoomCode,
		Winner:           m.Winner,
		WinReason:        m.WinReason,
		Results:          results,
		RevealedMemories: revealed,
		Turns:            m.CardsDrawn - len(m.TableCards),
		Duration:         duration,
	}
}
