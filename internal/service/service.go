package service

import (
	"time"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/content"
	"github.com/wfunc/memory-duel/internal/game"
	"github.com/wfunc/memory-duel/internal/repository"
	"github.com/wfunc/memory-duel/internal/utils"
	"github.com/wfunc/memory-duel/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth  *AuthService
	Match *MatchService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, cfg *config.Config, hub *websocket.Hub, log *zap.Logger) *Services {
	// 初始化仓储
	matchRepo := repository.NewMatchRepository(db, &cfg.Game.Match)

	// 初始化JWT管理器
	jwtManager := utils.NewJWTManager(
		cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour,
	)

	// 初始化游戏引擎与文本池
	engine := game.NewEngine(&game.EngineConfig{
		Deck:   &cfg.Game.Deck,
		Match:  &cfg.Game.Match,
		Logger: log,
	})
	provider := content.NewProvider(&cfg.Pool)

	authService := NewAuthService(jwtManager, log)
	matchService := NewMatchService(matchRepo, engine, provider, hub, &cfg.Game.Match, log)

	return &Services{
		Auth:  authService,
		Match: matchService,
	}
}
