package game

import (
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
)

// InitTable 从牌堆头部取出可见牌桌
// 返回的切片是拷贝，牌堆本身不被修改。
func InitTable(deck models.CardList, tableSize int) (models.CardList, error) {
	if len(deck) < tableSize {
		return nil, errors.Newf(errors.ErrInsufficientDeck,
			"牌堆只有%d张，不足以铺出%d张牌桌", len(deck), tableSize)
	}
	table := make(models.CardList, tableSize)
	copy(table, deck[:tableSize])
	return table, nil
}

// RefreshTable 结算后刷新牌桌
// 被选中的位置用牌堆中下一张原位替换；牌堆耗尽时该位置被移除，
// 牌桌自然收缩而不是用伪造的牌补位。
// 失败时不产生任何修改，返回入参原值。
func RefreshTable(table models.CardList, selectedIndex int, deck models.CardList, cardsDrawn int) (models.CardList, int, error) {
	if selectedIndex < 0 || selectedIndex >= len(table) {
		return table, cardsDrawn, errors.Newf(errors.ErrInvalidCardIndex,
			"序号%d超出牌桌范围[0,%d)", selectedIndex, len(table))
	}

	if cardsDrawn < len(deck) {
		// 原位替换
		next := make(models.CardList, len(table))
		copy(next, table)
		next[selectedIndex] = deck[cardsDrawn]
		return next, cardsDrawn + 1, nil
	}

	// 牌堆耗尽，收缩牌桌
	next := make(models.CardList, 0, len(table)-1)
	next = append(next, table[:selectedIndex]...)
	next = append(next, table[selectedIndex+1:]...)
	return next, cardsDrawn, nil
}

// CanContinue 判断对局是否还有牌可打
func CanContinue(table models.CardList, deck models.CardList, cardsDrawn int) bool {
	return len(table) > 0 || cardsDrawn < len(deck)
}

// RemainingCount 剩余牌数（牌桌+未抽取），仅用于展示与统计
func RemainingCount(table models.CardList, deck models.CardList, cardsDrawn int) int {
	remaining := len(deck) - cardsDrawn
	if remaining < 0 {
		remaining = 0
	}
	return len(table) + remaining
}
