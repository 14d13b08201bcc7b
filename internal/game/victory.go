package game

import (
	"github.com/wfunc/memory-duel/internal/models"
)

// Verdict 胜负判定结果
type Verdict struct {
	HasWinner bool   `json:"has_winner"`
	WinnerID  string `json:"winner_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// EvaluateVictory 在每次结算后检查胜负
// 先按行动顺序扫描胜利阈值，再扫描失败阈值（败者的对手获胜）。
// 两个条件同时成立时胜利阈值优先——这是有意的平局决胜顺序，不是巧合。
func EvaluateVictory(players models.PlayerMap, orderPlayers models.StringList, upper, lower int) Verdict {
	for _, id := range orderPlayers {
		p, ok := players[id]
		if !ok {
			continue
		}
		if p.Integrity >= upper {
			return Verdict{HasWinner: true, WinnerID: id, Reason: models.WinReasonUpperThreshold}
		}
	}

	for _, id := range orderPlayers {
		p, ok := players[id]
		if !ok {
			continue
		}
		if p.Integrity <= lower {
			// 跌破阈值的玩家出局，对手获胜
			for _, other := range orderPlayers {
				if other != id {
					return Verdict{HasWinner: true, WinnerID: other, Reason: models.WinReasonOpponentDown}
				}
			}
			// 只剩一名玩家时无人可判胜
			return Verdict{}
		}
	}

	return Verdict{}
}
