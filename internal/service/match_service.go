package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/content"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/game"
	"github.com/wfunc/memory-duel/internal/models"
	"github.com/wfunc/memory-duel/internal/repository"
	"github.com/wfunc/memory-duel/internal/utils"
	"github.com/wfunc/memory-duel/internal/websocket"
	"go.uber.org/zap"
)

// 房间码长度与创建时的防碰撞重试次数
const (
	roomCodeLength     = 6
	roomCodeMaxRetries = 5
)

// MatchService 对局服务
// 所有状态迁移都通过仓储的AtomicUpdate走乐观锁与规则校验，
// 迁移成功后把新状态推送给订阅该房间的WebSocket客户端。
type MatchService struct {
	repo   repository.MatchRepository
	engine *game.Engine
	pool   content.Provider
	hub    *websocket.Hub
	cfg    *config.MatchConfig
	log    *zap.Logger
}

// NewMatchService 创建对局服务
func NewMatchService(
	repo repository.MatchRepository,
	engine *game.Engine,
	pool content.Provider,
	hub *websocket.Hub,
	cfg *config.MatchConfig,
	log *zap.Logger,
) *MatchService {
	return &MatchService{
		repo:   repo,
		engine: engine,
		pool:   pool,
		hub:    hub,
		cfg:    cfg,
		log:    log,
	}
}

// CreateMatch 创建对局房间
func (s *MatchService) CreateMatch(ctx context.Context, creatorID string) (*MatchView, error) {
	for attempt := 0; attempt < roomCodeMaxRetries; attempt++ {
		roomCode, err := utils.GenerateRoomCode(roomCodeLength)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrUnknown)
		}

		match := s.engine.NewMatch(roomCode, creatorID)
		if err := s.repo.Create(ctx, match); err != nil {
			// 房间码撞车概率极低，撞上换一个再试
			if attempt < roomCodeMaxRetries-1 {
				continue
			}
			return nil, errors.Wrap(err, errors.ErrDatabaseInsert)
		}

		s.log.Info("创建对局",
			zap.String("room_code", roomCode),
			zap.String("creator", creatorID))
		return NewMatchView(match), nil
	}
	return nil, errors.New(errors.ErrUnknown, "生成房间码失败")
}

// GetMatch 查询对局状态
func (s *MatchService) GetMatch(ctx context.Context, roomCode string) (*MatchView, error) {
	match, err := s.repo.FindByRoomCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	return NewMatchView(match), nil
}

// ListMatches 分页查询对局
func (s *MatchService) ListMatches(ctx context.Context, status string, page, pageSize int) ([]*MatchView, *repository.Pagination, error) {
	pagination := repository.NewPagination(page, pageSize)
	matches, err := s.repo.List(ctx, status, pagination)
	if err != nil {
		return nil, nil, err
	}

	views := make([]*MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, NewMatchView(m))
	}
	return views, pagination, nil
}

// JoinMatch 加入对局
func (s *MatchService) JoinMatch(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return s.engine.Join(m, playerID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(roomCode, websocket.MessageTypePlayerJoined, NewMatchView(match))
	return NewMatchView(match), nil
}

// LeaveMatch 离开对局
func (s *MatchService) LeaveMatch(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return s.engine.Leave(m, playerID)
	})
	if err != nil {
		return nil, err
	}

	if match.Status == models.MatchStatusFinished {
		s.notify(roomCode, websocket.MessageTypeMatchFinished, NewMatchView(match))
	} else {
		s.notify(roomCode, websocket.MessageTypePlayerLeft, NewMatchView(match))
	}
	return NewMatchView(match), nil
}

// StartMatch 开始对局（仅创建者，进入开场阶段）
func (s *MatchService) StartMatch(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return s.engine.Start(m, playerID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(roomCode, websocket.MessageTypeMatchStarted, NewMatchView(match))
	return NewMatchView(match), nil
}

// CompleteIntro 开场结束，生成牌堆并正式开打
// 文本池在进入原子更新前拉取，拉取失败不消耗重试次数
func (s *MatchService) CompleteIntro(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	pool, err := s.pool.GetPool(ctx)
	if err != nil {
		return nil, err
	}

	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return s.engine.CompleteIntro(m, playerID, pool)
	})
	if err != nil {
		return nil, err
	}

	s.notify(roomCode, websocket.MessageTypeMatchUpdate, NewMatchView(match))
	return NewMatchView(match), nil
}

// SelectCard 当前玩家选牌
func (s *MatchService) SelectCard(ctx context.Context, roomCode, playerID string, index int) (*MatchView, error) {
	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return s.engine.SelectCard(m, playerID, index)
	})
	if err != nil {
		return nil, err
	}

	s.notify(roomCode, websocket.MessageTypeCardSelected, NewMatchView(match))
	return NewMatchView(match), nil
}

// Claim 选牌者接受当前卡牌
func (s *MatchService) Claim(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	return s.resolveTransition(ctx, roomCode, playerID, s.engine.Claim)
}

// Reject 选牌者拒绝，卡牌转给对手且倍率提升
func (s *MatchService) Reject(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return s.engine.Reject(m, playerID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(roomCode, websocket.MessageTypeCardRejected, NewMatchView(match))
	return NewMatchView(match), nil
}

// OpponentClaim 对手接下被拒绝的卡牌
func (s *MatchService) OpponentClaim(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	return s.resolveTransition(ctx, roomCode, playerID, s.engine.OpponentClaim)
}

// OpponentRejectBack 对手拒收，卡牌按倍率结算回选牌者
func (s *MatchService) OpponentRejectBack(ctx context.Context, roomCode, playerID string) (*MatchView, error) {
	return s.resolveTransition(ctx, roomCode, playerID, s.engine.OpponentRejectBack)
}

// resolveTransition 执行一次会结算卡牌的迁移并推送结果
func (s *MatchService) resolveTransition(
	ctx context.Context,
	roomCode, playerID string,
	transition func(*models.Match, string) error,
) (*MatchView, error) {
	match, err := s.repo.AtomicUpdate(ctx, roomCode, playerID, func(m *models.Match) error {
		return transition(m, playerID)
	})
	if err != nil {
		return nil, err
	}

	if match.Status == models.MatchStatusFinished {
		s.notify(roomCode, websocket.MessageTypeMatchFinished, NewMatchView(match))
	} else {
		s.notify(roomCode, websocket.MessageTypeCardResolved, NewMatchView(match))
	}
	return NewMatchView(match), nil
}

// GetSummary 获取已结束对局的战报
func (s *MatchService) GetSummary(ctx context.Context, roomCode string) (*MatchSummary, error) {
	match, err := s.repo.FindByRoomCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusFinished {
		return nil, errors.New(errors.ErrMatchNotPlaying, "对局尚未结束")
	}
	return NewMatchSummary(match), nil
}

// CleanupStale 清理过期房间，由后台定时任务调用
func (s *MatchService) CleanupStale(ctx context.Context) {
	if s.cfg.StaleTimeout <= 0 {
		return
	}

	count, err := s.repo.CleanupStale(ctx, s.cfg.StaleTimeout)
	if err != nil {
		s.log.Error("清理过期对局失败", zap.Error(err))
		return
	}
	if count > 0 {
		s.log.Info("清理过期对局", zap.Int64("count", count))
	}
}

// RunCleanup 周期性清理过期房间，阻塞运行直到ctx取消
func (s *MatchService) RunCleanup(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupStale(ctx)
		}
	}
}

// notify 向房间订阅者推送消息，没有订阅者不算错误
func (s *MatchService) notify(roomCode, msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("序列化推送消息失败", zap.Error(err))
		return
	}

	msg := &websocket.Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := s.hub.SendToRoom(roomCode, msg); err != nil && err != websocket.ErrRoomNotFound {
		s.log.Warn("推送房间消息失败",
			zap.String("room_code", roomCode),
			zap.Error(err))
	}
}
