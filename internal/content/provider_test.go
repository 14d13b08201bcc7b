package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
)

// countingProvider 记录调用次数的内层提供者
type countingProvider struct {
	pool  []string
	err   error
	calls int
}

func (p *countingProvider) GetPool(ctx context.Context) ([]string, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.pool, nil
}

func TestBuiltinPool(t *testing.T) {
	pool, err := NewBuiltinProvider().GetPool(context.Background())
	require.NoError(t, err)

	// 内置池必须足够生成一副完整牌堆
	assert.GreaterOrEqual(t, len(pool), 48)

	seen := make(map[string]bool)
	for _, m := range pool {
		assert.NotEmpty(t, m)
		assert.False(t, seen[m], "内置池不应有重复文本: %s", m)
		seen[m] = true
	}
}

func TestHTTPProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["记忆一","记忆二","记忆三"]`))
	}))
	defer server.Close()

	pool, err := NewHTTPProvider(server.URL, time.Second).GetPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"记忆一", "记忆二", "记忆三"}, pool)
}

func TestHTTPProviderBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewHTTPProvider(server.URL, time.Second).GetPool(context.Background())
	assert.True(t, errors.Is(err, errors.ErrPoolFetchFailed))
}

func TestHTTPProviderBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer server.Close()

	_, err := NewHTTPProvider(server.URL, time.Second).GetPool(context.Background())
	assert.True(t, errors.Is(err, errors.ErrPoolFetchFailed))
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	p := &fallbackProvider{
		primary:  &countingProvider{err: errors.New(errors.ErrPoolFetchFailed)},
		fallback: &countingProvider{pool: []string{"备用"}},
	}

	pool, err := p.GetPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"备用"}, pool)
}

func TestCachedWithinTTL(t *testing.T) {
	inner := &countingProvider{pool: []string{"甲", "乙"}}
	c := NewCached(inner, time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		pool, err := c.GetPool(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"甲", "乙"}, pool)
	}
	assert.Equal(t, 1, inner.calls)

	// TTL过期后重新拉取
	now = now.Add(2 * time.Minute)
	_, err := c.GetPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedServesStaleOnRefreshFailure(t *testing.T) {
	inner := &countingProvider{pool: []string{"甲"}}
	c := NewCached(inner, time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := c.GetPool(ctx)
	require.NoError(t, err)

	// 缓存过期且刷新失败，沿用过期数据
	now = now.Add(2 * time.Minute)
	inner.err = errors.New(errors.ErrPoolFetchFailed)

	pool, err := c.GetPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"甲"}, pool)
}

func TestCachedFirstFetchFailure(t *testing.T) {
	inner := &countingProvider{err: errors.New(errors.ErrPoolFetchFailed)}
	c := NewCached(inner, time.Minute)

	_, err := c.GetPool(context.Background())
	assert.True(t, errors.Is(err, errors.ErrPoolFetchFailed))
}

func TestNewProviderComposition(t *testing.T) {
	// 无外部地址时直接用内置池
	p := NewProvider(&config.PoolConfig{})
	pool, err := p.GetPool(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, pool)

	// 外部地址不可达时回退到内置池
	p = NewProvider(&config.PoolConfig{
		URL:      "http://127.0.0.1:1/pool",
		Timeout:  200 * time.Millisecond,
		CacheTTL: time.Minute,
	})
	pool, err = p.GetPool(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, pool)
}
