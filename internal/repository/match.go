package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/wfunc/memory-duel/internal/config"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/models"
	"github.com/wfunc/memory-duel/internal/rules"
	"gorm.io/gorm"
)

// MatchRepository 对局仓储接口
// AtomicUpdate是所有状态迁移的唯一写入口：业务层的变更函数
// 在乐观锁保护下执行，写入前还要通过rules层的形状校验。
type MatchRepository interface {
	BaseRepository
	Create(ctx context.Context, match *models.Match) error
	FindByRoomCode(ctx context.Context, roomCode string) (*models.Match, error)
	FindByID(ctx context.Context, id uint) (*models.Match, error)
	FindActiveByPlayer(ctx context.Context, playerID string) ([]*models.Match, error)
	List(ctx context.Context, status string, pagination *Pagination) ([]*models.Match, error)
	AtomicUpdate(ctx context.Context, roomCode, actorID string, mutate func(*models.Match) error) (*models.Match, error)
	CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error)
	Delete(ctx context.Context, id uint) error
}

// matchRepo 对局仓储实现
type matchRepo struct {
	*BaseRepo
	validator *rules.Validator
	retries   int
}

// NewMatchRepository 创建对局仓储
func NewMatchRepository(db *gorm.DB, cfg *config.MatchConfig) MatchRepository {
	return &matchRepo{
		BaseRepo:  &BaseRepo{db: db},
		validator: rules.NewValidator(cfg),
		retries:   cfg.UpdateRetries,
	}
}

// Create 创建对局
func (r *matchRepo) Create(ctx context.Context, match *models.Match) error {
	if match.Version == 0 {
		match.Version = 1
	}
	return r.db.WithContext(ctx).Create(match).Error
}

// FindByRoomCode 根据房间码查找对局
func (r *matchRepo) FindByRoomCode(ctx context.Context, roomCode string) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).Where("room_code = ?", roomCode).First(&match).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrMatchNotFound)
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &match, nil
}

// FindByID 根据ID查找对局
func (r *matchRepo) FindByID(ctx context.Context, id uint) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).First(&match, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrMatchNotFound)
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &match, nil
}

// FindActiveByPlayer 查找玩家参与且未结束的对局
// 玩家集合存在JSON列里，用LIKE做粗筛后在内存中精确过滤
func (r *matchRepo) FindActiveByPlayer(ctx context.Context, playerID string) ([]*models.Match, error) {
	var candidates []*models.Match
	err := r.db.WithContext(ctx).
		Where("status <> ?", models.MatchStatusFinished).
		Where("order_players LIKE ?", "%"+playerID+"%").
		Find(&candidates).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	matches := make([]*models.Match, 0, len(candidates))
	for _, m := range candidates {
		if m.HasPlayer(playerID) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// List 分页查询对局
func (r *matchRepo) List(ctx context.Context, status string, pagination *Pagination) ([]*models.Match, error) {
	var matches []*models.Match
	query := r.db.WithContext(ctx).Model(&models.Match{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)
	pagination.Total = total

	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return matches, nil
}

// AtomicUpdate 带乐观锁的原子更新
// 每次尝试都重新加载文档，在副本上执行变更函数，经过形状校验后
// 以 WHERE version = ? 条件写回。版本冲突重试，业务校验失败立即返回。
func (r *matchRepo) AtomicUpdate(ctx context.Context, roomCode, actorID string, mutate func(*models.Match) error) (*models.Match, error) {
	var lastErr error

	for attempt := 0; attempt <= r.retries; attempt++ {
		current, err := r.FindByRoomCode(ctx, roomCode)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}

		if err := r.validator.Validate(current, next, actorID); err != nil {
			return nil, err
		}

		next.Version = current.Version + 1
		result := r.db.WithContext(ctx).
			Model(&models.Match{}).
			Where("id = ? AND version = ?", current.ID, current.Version).
			Select("*").
			Omit("id", "created_at", "deleted_at").
			Updates(next)

		if result.Error != nil {
			return nil, errors.Wrap(result.Error, errors.ErrDatabaseUpdate)
		}
		if result.RowsAffected == 1 {
			return next, nil
		}

		// 有并发写入抢先提交，重新加载后再试
		lastErr = errors.New(errors.ErrVersionConflict)
	}

	return nil, lastErr
}

// CleanupStale 清理过期对局
// 等待中无人问津的房间与早已结束的对局软删除回收
func (r *matchRepo) CleanupStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.MatchStatusWaiting, models.MatchStatusFinished}).
		Where("updated_at < ?", cutoff).
		Delete(&models.Match{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrDatabaseUpdate)
	}
	return result.RowsAffected, nil
}

// Delete 删除对局
func (r *matchRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Match{}, id).Error
}

// WithTx 使用事务
func (r *matchRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchRepo{
		BaseRepo:  &BaseRepo{db: tx},
		validator: r.validator,
		retries:   r.retries,
	}
}
