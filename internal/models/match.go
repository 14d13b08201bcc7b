package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// 对局状态
const (
	MatchStatusWaiting  = "waiting"  // 等待第二名玩家
	MatchStatusIntro    = "intro"    // 开场过场
	MatchStatusPlaying  = "playing"  // 对局进行中
	MatchStatusFinished = "finished" // 对局已结束
)

// 回合阶段
const (
	TurnStateDraw           = "draw"            // 等待当前玩家选牌
	TurnStateDecide         = "decide"          // 选择者决定保留或拒绝
	TurnStateOpponentDecide = "opponent_decide" // 对手决定接受或退回
)

// 卡牌真伪
const (
	AuthenticityAuthentic   = "authentic"    // 真实记忆
	AuthenticityCorrupted   = "corrupted"    // 损坏记忆
	AuthenticityFatalGlitch = "fatal_glitch" // 致命故障
)

// 胜负原因
const (
	WinReasonUpperThreshold = "reached_upper_threshold" // 完整度达到胜利阈值
	WinReasonOpponentDown   = "opponent_defeated"       // 对手完整度跌破失败阈值
	WinReasonDeckExhausted  = "deck_exhausted"          // 牌堆耗尽，按完整度判定
	WinReasonAbandoned      = "opponent_abandoned"      // 对手中途离开
)

// Card 一张记忆卡牌
// 分值在生成时由真伪派生，之后不再变化
type Card struct {
	Memory       string `json:"memory"`
	Authenticity string `json:"authenticity"`
	Value        int    `json:"value"`
}

// PlayerState 对局内单个玩家的状态
type PlayerState struct {
	Integrity int      `json:"integrity"`       // 完整度，胜负资源
	Items     []string `json:"items,omitempty"` // 持有物（保留位）
}

// RevealedMemory 已结算真实记忆的记录，只追加不修改
// 用于结局叙事与统计
type RevealedMemory struct {
	Memory       string    `json:"memory"`
	Authenticity string    `json:"authenticity"`
	Points       int       `json:"points"`      // 实际结算分值（含倍率）
	Initiator    string    `json:"initiator"`   // 最初选牌的玩家
	ResolvedBy   string    `json:"resolved_by"` // 承受分值的玩家
	RevealedAt   time.Time `json:"revealed_at"`
}

// CardList 卡牌序列JSON字段
type CardList []Card

// Value 实现driver.Valuer接口
func (l CardList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现sql.Scanner接口
func (l *CardList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// StringList 字符串序列JSON字段
type StringList []string

// Value 实现driver.Valuer接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现sql.Scanner接口
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// PlayerMap 玩家ID到玩家状态的JSON字段
type PlayerMap map[string]*PlayerState

// Value 实现driver.Valuer接口
func (m PlayerMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现sql.Scanner接口
func (m *PlayerMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, m)
}

// RevealedList 已结算记录JSON字段
type RevealedList []RevealedMemory

// Value 实现driver.Valuer接口
func (l RevealedList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan 实现sql.Scanner接口
func (l *RevealedList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// CardSlot 可空的当前卡牌JSON字段
type CardSlot struct {
	Card *Card
}

// Value 实现driver.Valuer接口
func (s CardSlot) Value() (driver.Value, error) {
	if s.Card == nil {
		return nil, nil
	}
	return json.Marshal(s.Card)
}

// Scan 实现sql.Scanner接口
func (s *CardSlot) Scan(value interface{}) error {
	if value == nil {
		s.Card = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		s.Card = nil
		return nil
	}
	card := &Card{}
	if err := json.Unmarshal(bytes, card); err != nil {
		return err
	}
	s.Card = card
	return nil
}

// MarshalJSON 序列化为卡牌本身或null
func (s CardSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Card)
}

// UnmarshalJSON 从卡牌本身或null反序列化
func (s *CardSlot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		s.Card = nil
		return nil
	}
	card := &Card{}
	if err := json.Unmarshal(data, card); err != nil {
		return err
	}
	s.Card = card
	return nil
}

// IsEmpty 是否没有待决定的卡牌
func (s CardSlot) IsEmpty() bool {
	return s.Card == nil
}

// Match 对局文档（每个房间一条记录）
// 所有状态迁移都通过乐观锁版本号原子更新
type Match struct {
	BaseModel
	RoomCode  string `gorm:"uniqueIndex;size:32;not null" json:"room_code"`
	CreatorID string `gorm:"index;size:64;not null" json:"creator_id"`
	Status    string `gorm:"size:16;not null;default:'waiting'" json:"status"`

	Players      PlayerMap  `gorm:"type:json" json:"players"`
	OrderPlayers StringList `gorm:"type:json" json:"order_players"`

	Turn              int      `gorm:"default:0" json:"turn"`
	TurnState         string   `gorm:"size:24;default:'draw'" json:"turn_state"`
	CurrentMultiplier int      `gorm:"default:1" json:"current_multiplier"`
	MemoryDeck        CardList `gorm:"type:json" json:"-"`
	CardsDrawn        int      `gorm:"default:0" json:"cards_drawn"`
	TableCards        CardList `gorm:"type:json" json:"table_cards"`
	CurrentCard       CardSlot `gorm:"type:json" json:"current_card"`
	SelectedCardIndex *int     `json:"selected_card_index"`
	CardInitiator     string   `gorm:"size:64" json:"card_initiator"`

	RevealedMemories RevealedList `gorm:"type:json" json:"revealed_memories"`

	Winner     string     `gorm:"size:64" json:"winner"`
	WinReason  string     `gorm:"size:32" json:"win_reason"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// 乐观锁版本号，每次成功写入递增
	Version int64 `gorm:"not null;default:0" json:"version"`
}

// TableName 指定表名
func (Match) TableName() string {
	return "matches"
}

// CurrentPlayerID 返回当前轮到行动的玩家ID
func (m *Match) CurrentPlayerID() string {
	if len(m.OrderPlayers) == 0 {
		return ""
	}
	return m.OrderPlayers[m.Turn%len(m.OrderPlayers)]
}

// HasPlayer 判断玩家是否在对局中
func (m *Match) HasPlayer(playerID string) bool {
	_, ok := m.Players[playerID]
	return ok
}

// OtherPlayerID 返回对局中另一名玩家的ID，没有则返回空串
func (m *Match) OtherPlayerID(playerID string) string {
	for _, id := range m.OrderPlayers {
		if id != playerID {
			return id
		}
	}
	return ""
}

// Clone 深拷贝对局文档，用于规则层比对与重试
func (m *Match) Clone() *Match {
	clone := *m

	clone.Players = make(PlayerMap, len(m.Players))
	for id, p := range m.Players {
		state := *p
		state.Items = append([]string(nil), p.Items...)
		clone.Players[id] = &state
	}

	clone.OrderPlayers = append(StringList(nil), m.OrderPlayers...)
	clone.MemoryDeck = append(CardList(nil), m.MemoryDeck...)
	clone.TableCards = append(CardList(nil), m.TableCards...)
	clone.RevealedMemories = append(RevealedList(nil), m.RevealedMemories...)

	if m.CurrentCard.Card != nil {
		card := *m.CurrentCard.Card
		clone.CurrentCard.Card = &card
	}
	if m.SelectedCardIndex != nil {
		idx := *m.SelectedCardIndex
		clone.SelectedCardIndex = &idx
	}
	if m.StartedAt != nil {
		t := *m.StartedAt
		clone.StartedAt = &t
	}
	if m.FinishedAt != nil {
		t := *m.FinishedAt
		clone.FinishedAt = &t
	}

	return &clone
}
