package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置测试数据库
// 使用内存数据库（更快，不依赖文件系统，在所有环境中都能工作）
func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Match{})
	require.NoError(t, err)

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// TestMatchConfig 测试用对局配置
func TestMatchConfig() *config.MatchConfig {
	return &config.MatchConfig{
		InitialIntegrity: 0,
		UpperThreshold:   10,
		LowerThreshold:   -10,
		RejectMultiplier: 3,
		UpdateRetries:    3,
		AbandonPolicy:    "none",
	}
}

// CreateTestMatch 创建一个进行中的双人测试对局
func CreateTestMatch(t *testing.T, db *gorm.DB, roomCode string) *models.Match {
	match := &models.Match{
		RoomCode:  roomCode,
		CreatorID: "player-a",
		Status:    models.MatchStatusWaiting,
		Players: models.PlayerMap{
			"player-a": {Integrity: 0},
		},
		OrderPlayers:      models.StringList{"player-a"},
		TurnState:         models.TurnStateDraw,
		CurrentMultiplier: 1,
		Version:           1,
	}
	require.NoError(t, db.Create(match).Error)
	return match
}
