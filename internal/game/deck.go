package game

import (
	"math/rand"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
)

// GenerateDeck 生成一副对局牌堆
// 文本从外部池中不重复抽取并洗牌，真伪标签按分布独立洗牌，
// 致命故障被约束在不早于 GlitchMinIndex 的位置，避免开局即被秒杀。
// 纯函数：不修改传入的池，随机源由调用方注入。
func GenerateDeck(pool []string, cfg *config.DeckConfig, rng *rand.Rand) (models.CardList, error) {
	total := cfg.TotalCards

	if len(pool) < total {
		return nil, errors.Newf(errors.ErrInsufficientPool,
			"需要%d条文本，池中只有%d条", total, len(pool))
	}
	if cfg.AuthenticCount+cfg.CorruptedCount+cfg.GlitchCount != total {
		return nil, errors.Newf(errors.ErrDistributionMismatch,
			"分布%d+%d+%d与总数%d不匹配",
			cfg.AuthenticCount, cfg.CorruptedCount, cfg.GlitchCount, total)
	}

	// 文本不重复抽取：洗牌后取前N条
	texts := make([]string, len(pool))
	copy(texts, pool)
	rng.Shuffle(len(texts), func(i, j int) { texts[i], texts[j] = texts[j], texts[i] })
	texts = texts[:total]

	// 非故障标签独立洗牌
	labels := make([]string, 0, total-cfg.GlitchCount)
	for i := 0; i < cfg.AuthenticCount; i++ {
		labels = append(labels, models.AuthenticityAuthentic)
	}
	for i := 0; i < cfg.CorruptedCount; i++ {
		labels = append(labels, models.AuthenticityCorrupted)
	}
	rng.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })

	deck := make(models.CardList, 0, total)
	for i, label := range labels {
		deck = append(deck, models.Card{
			Memory:       texts[i],
			Authenticity: label,
			Value:        CardValue(label, cfg),
		})
	}

	// 每张故障卡独立选取一个不早于下限的位置插入
	for g := 0; g < cfg.GlitchCount; g++ {
		card := models.Card{
			Memory:       texts[len(labels)+g],
			Authenticity: models.AuthenticityFatalGlitch,
			Value:        CardValue(models.AuthenticityFatalGlitch, cfg),
		}

		minIdx := cfg.GlitchMinIndex
		if minIdx > len(deck) {
			minIdx = len(deck)
		}
		pos := minIdx + rng.Intn(len(deck)-minIdx+1)

		deck = append(deck, models.Card{})
		copy(deck[pos+1:], deck[pos:])
		deck[pos] = card
	}

	return deck, nil
}

// CardValue 按真伪派生卡牌分值
func CardValue(authenticity string, cfg *config.DeckConfig) int {
	switch authenticity {
	case models.AuthenticityAuthentic:
		return cfg.AuthenticValue
	case models.AuthenticityCorrupted:
		return cfg.CorruptedValue
	case models.AuthenticityFatalGlitch:
		return cfg.GlitchValue
	default:
		return 0
	}
}
