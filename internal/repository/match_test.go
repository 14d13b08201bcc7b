package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
)

func setupMatchRepo(t *testing.T) (MatchRepository, func()) {
	db := SetupTestDB(t)
	repo := NewMatchRepository(db, TestMatchConfig())
	return repo, func() { CleanupTestDB(db) }
}

// joinMutation 第二名玩家入座的合法变更
func joinMutation(playerID string) func(*models.Match) error {
	return func(m *models.Match) error {
		m.Players[playerID] = &models.PlayerState{Integrity: 0}
		m.OrderPlayers = append(m.OrderPlayers, playerID)
		return nil
	}
}

func TestCreateAndFind(t *testing.T) {
	repo, cleanup := setupMatchRepo(t)
	defer cleanup()
	ctx := context.Background()

	match := &models.Match{
		RoomCode:  "ROOM01",
		CreatorID: "player-a",
		Status:    models.MatchStatusWaiting,
		Players: models.PlayerMap{
			"player-a": {Integrity: 0},
		},
		OrderPlayers:      models.StringList{"player-a"},
		TurnState:         models.TurnStateDraw,
		CurrentMultiplier: 1,
	}
	require.NoError(t, repo.Create(ctx, match))
	assert.Equal(t, int64(1), match.Version)

	found, err := repo.FindByRoomCode(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, match.ID, found.ID)
	assert.Equal(t, "player-a", found.CreatorID)
	assert.True(t, found.HasPlayer("player-a"))

	byID, err := repo.FindByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, "ROOM01", byID.RoomCode)
}

func TestFindByRoomCodeNotFound(t *testing.T) {
	repo, cleanup := setupMatchRepo(t)
	defer cleanup()

	_, err := repo.FindByRoomCode(context.Background(), "NOSUCH")
	assert.True(t, errors.Is(err, errors.ErrMatchNotFound))
}

func TestAtomicUpdateIncrementsVersion(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()
	CreateTestMatch(t, db, "ROOM01")

	updated, err := repo.AtomicUpdate(ctx, "ROOM01", "player-b", joinMutation("player-b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.HasPlayer("player-b"))

	// 写入已落库
	found, err := repo.FindByRoomCode(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.Version)
	assert.Equal(t, models.StringList{"player-a", "player-b"}, found.OrderPlayers)
}

func TestAtomicUpdateMutateErrorAborts(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()
	CreateTestMatch(t, db, "ROOM01")

	_, err := repo.AtomicUpdate(ctx, "ROOM01", "player-a", func(m *models.Match) error {
		return errors.New(errors.ErrNotYourTurn)
	})
	assert.True(t, errors.Is(err, errors.ErrNotYourTurn))

	// 文档未被写入
	found, findErr := repo.FindByRoomCode(ctx, "ROOM01")
	require.NoError(t, findErr)
	assert.Equal(t, int64(1), found.Version)
}

func TestAtomicUpdateRejectsIllegalWrite(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()
	CreateTestMatch(t, db, "ROOM01")

	// 凭空改不可变字段，形状校验必须拦下
	_, err := repo.AtomicUpdate(ctx, "ROOM01", "player-a", func(m *models.Match) error {
		m.CreatorID = "mallory"
		return nil
	})
	assert.True(t, errors.Is(err, errors.ErrFieldNotAllowed))

	found, findErr := repo.FindByRoomCode(ctx, "ROOM01")
	require.NoError(t, findErr)
	assert.Equal(t, "player-a", found.CreatorID)
	assert.Equal(t, int64(1), found.Version)
}

func TestAtomicUpdateRetriesOnVersionConflict(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()
	CreateTestMatch(t, db, "ROOM01")

	// 第一次尝试在写回前被并发写入抢先，重试后成功
	interfered := false
	updated, err := repo.AtomicUpdate(ctx, "ROOM01", "player-b", func(m *models.Match) error {
		if !interfered {
			interfered = true
			require.NoError(t, db.Exec(
				"UPDATE matches SET version = version + 1 WHERE room_code = ?", "ROOM01").Error)
		}
		return joinMutation("player-b")(m)
	})
	require.NoError(t, err)
	assert.True(t, interfered)
	assert.Equal(t, int64(3), updated.Version)
}

func TestAtomicUpdateGivesUpAfterRetries(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	cfg := TestMatchConfig()
	cfg.UpdateRetries = 2
	repo := NewMatchRepository(db, cfg)
	ctx := context.Background()
	CreateTestMatch(t, db, "ROOM01")

	// 每次尝试都被并发写入抢先
	attempts := 0
	_, err := repo.AtomicUpdate(ctx, "ROOM01", "player-b", func(m *models.Match) error {
		attempts++
		require.NoError(t, db.Exec(
			"UPDATE matches SET version = version + 1 WHERE room_code = ?", "ROOM01").Error)
		return joinMutation("player-b")(m)
	})
	assert.True(t, errors.Is(err, errors.ErrVersionConflict))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 3, attempts)
}

func TestFindActiveByPlayer(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()

	CreateTestMatch(t, db, "ROOM01")
	finished := CreateTestMatch(t, db, "ROOM02")
	require.NoError(t, db.Model(finished).Update("status", models.MatchStatusFinished).Error)

	matches, err := repo.FindActiveByPlayer(ctx, "player-a")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ROOM01", matches[0].RoomCode)

	matches, err = repo.FindActiveByPlayer(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestListWithPagination(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()

	for _, code := range []string{"ROOM01", "ROOM02", "ROOM03"} {
		CreateTestMatch(t, db, code)
	}

	p := NewPagination(1, 2)
	matches, err := repo.List(ctx, models.MatchStatusWaiting, p)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	assert.Equal(t, int64(3), p.Total)

	p = NewPagination(2, 2)
	matches, err = repo.List(ctx, models.MatchStatusWaiting, p)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// 状态过滤
	p = NewPagination(1, 10)
	matches, err = repo.List(ctx, models.MatchStatusFinished, p)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCleanupStale(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(db)
	repo := NewMatchRepository(db, TestMatchConfig())
	ctx := context.Background()

	stale := CreateTestMatch(t, db, "ROOM01")
	CreateTestMatch(t, db, "ROOM02")
	playing := CreateTestMatch(t, db, "ROOM03")
	require.NoError(t, db.Model(playing).Update("status", models.MatchStatusPlaying).Error)

	// 把一个等待中房间和进行中对局都改成陈旧时间
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Exec(
		"UPDATE matches SET updated_at = ? WHERE room_code IN (?, ?)",
		old, stale.RoomCode, playing.RoomCode).Error)

	removed, err := repo.CleanupStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// 进行中的对局即使陈旧也不清理
	_, err = repo.FindByRoomCode(ctx, "ROOM03")
	assert.NoError(t, err)
	_, err = repo.FindByRoomCode(ctx, "ROOM01")
	assert.True(t, errors.Is(err, errors.ErrMatchNotFound))
}
