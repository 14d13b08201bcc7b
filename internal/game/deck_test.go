package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
)

func testDeckConfig() *config.DeckConfig {
	return &config.DeckConfig{
		TotalCards:     15,
		AuthenticCount: 8,
		CorruptedCount: 6,
		GlitchCount:    1,
		GlitchMinIndex: 7,
		AuthenticValue: 1,
		CorruptedValue: -1,
		GlitchValue:    -10,
		TableSize:      3,
	}
}

func testPool(n int) []string {
	pool := make([]string, n)
	for i := range pool {
		pool[i] = fmt.Sprintf("记忆片段%02d", i)
	}
	return pool
}

func TestGenerateDeck(t *testing.T) {
	cfg := testDeckConfig()
	pool := testPool(48)

	// 多个随机种子下分布约束都必须成立
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		deck, err := GenerateDeck(pool, cfg, rng)
		require.NoError(t, err)
		require.Len(t, deck, cfg.TotalCards)

		counts := map[string]int{}
		seen := map[string]bool{}
		glitchPos := -1
		for i, card := range deck {
			counts[card.Authenticity]++
			assert.False(t, seen[card.Memory], "文本不得重复: %s", card.Memory)
			seen[card.Memory] = true

			if card.Authenticity == models.AuthenticityFatalGlitch {
				glitchPos = i
			}
		}

		assert.Equal(t, cfg.AuthenticCount, counts[models.AuthenticityAuthentic])
		assert.Equal(t, cfg.CorruptedCount, counts[models.AuthenticityCorrupted])
		assert.Equal(t, cfg.GlitchCount, counts[models.AuthenticityFatalGlitch])
		assert.GreaterOrEqual(t, glitchPos, cfg.GlitchMinIndex,
			"致命故障不得早于第%d张", cfg.GlitchMinIndex)
	}
}

func TestGenerateDeckValues(t *testing.T) {
	cfg := testDeckConfig()
	rng := rand.New(rand.NewSource(1))

	deck, err := GenerateDeck(testPool(48), cfg, rng)
	require.NoError(t, err)

	for _, card := range deck {
		switch card.Authenticity {
		case models.AuthenticityAuthentic:
			assert.Equal(t, 1, card.Value)
		case models.AuthenticityCorrupted:
			assert.Equal(t, -1, card.Value)
		case models.AuthenticityFatalGlitch:
			assert.Equal(t, -10, card.Value)
		}
	}
}

func TestGenerateDeckInsufficientPool(t *testing.T) {
	cfg := testDeckConfig()
	rng := rand.New(rand.NewSource(1))

	_, err := GenerateDeck(testPool(10), cfg, rng)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientPool))
}

func TestGenerateDeckDistributionMismatch(t *testing.T) {
	cfg := testDeckConfig()
	cfg.AuthenticCount = 9 // 9+6+1 != 15
	rng := rand.New(rand.NewSource(1))

	_, err := GenerateDeck(testPool(48), cfg, rng)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDistributionMismatch))
}

func TestGenerateDeckDoesNotMutatePool(t *testing.T) {
	cfg := testDeckConfig()
	pool := testPool(48)
	snapshot := make([]string, len(pool))
	copy(snapshot, pool)

	_, err := GenerateDeck(pool, cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, snapshot, pool)
}

func TestCardValueUnknown(t *testing.T) {
	assert.Equal(t, 0, CardValue("unknown", testDeckConfig()))
}
