package api

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/middleware"
	"github.com/wfunc/memory-duel/internal/service"
)

// MatchHandler 对局处理器
// 操作者身份一律取自认证中间件写入的playerID，不信任请求体
type MatchHandler struct {
	matchService *service.MatchService
}

// NewMatchHandler 创建对局处理器
func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// Create 创建对局房间
// POST /api/v1/matches
func (h *MatchHandler) Create(c *gin.Context) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		respondError(c, errors.New(errors.ErrAuthentication))
		return
	}

	view, err := h.matchService.CreateMatch(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, view)
}

// Get 查询对局状态
// GET /api/v1/matches/:code
func (h *MatchHandler) Get(c *gin.Context) {
	view, err := h.matchService.GetMatch(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

// List 分页查询对局
// GET /api/v1/matches?status=waiting&page=1&page_size=10
func (h *MatchHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	status := c.Query("status")

	views, pagination, err := h.matchService.ListMatches(c.Request.Context(), status, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"matches":    views,
		"pagination": pagination,
	})
}

// Join 加入对局
// POST /api/v1/matches/:code/join
func (h *MatchHandler) Join(c *gin.Context) {
	h.transition(c, h.matchService.JoinMatch)
}

// Leave 离开对局
// POST /api/v1/matches/:code/leave
func (h *MatchHandler) Leave(c *gin.Context) {
	h.transition(c, h.matchService.LeaveMatch)
}

// Start 开始对局
// POST /api/v1/matches/:code/start
func (h *MatchHandler) Start(c *gin.Context) {
	h.transition(c, h.matchService.StartMatch)
}

// CompleteIntro 开场结束，开始第一回合
// POST /api/v1/matches/:code/intro/complete
func (h *MatchHandler) CompleteIntro(c *gin.Context) {
	h.transition(c, h.matchService.CompleteIntro)
}

// SelectCardRequest 选牌请求
type SelectCardRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SelectCard 当前玩家选牌
// POST /api/v1/matches/:code/select
func (h *MatchHandler) SelectCard(c *gin.Context) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		respondError(c, errors.New(errors.ErrAuthentication))
		return
	}

	var req SelectCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	view, err := h.matchService.SelectCard(c.Request.Context(), c.Param("code"), playerID, *req.Index)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

// Claim 选牌者接受卡牌
// POST /api/v1/matches/:code/claim
func (h *MatchHandler) Claim(c *gin.Context) {
	h.transition(c, h.matchService.Claim)
}

// Reject 选牌者拒绝卡牌
// POST /api/v1/matches/:code/reject
func (h *MatchHandler) Reject(c *gin.Context) {
	h.transition(c, h.matchService.Reject)
}

// OpponentClaim 对手接下被拒绝的卡牌
// POST /api/v1/matches/:code/opponent/claim
func (h *MatchHandler) OpponentClaim(c *gin.Context) {
	h.transition(c, h.matchService.OpponentClaim)
}

// OpponentRejectBack 对手拒收，卡牌结算回选牌者
// POST /api/v1/matches/:code/opponent/reject
func (h *MatchHandler) OpponentRejectBack(c *gin.Context) {
	h.transition(c, h.matchService.OpponentRejectBack)
}

// Summary 获取战报
// GET /api/v1/matches/:code/summary
func (h *MatchHandler) Summary(c *gin.Context) {
	summary, err := h.matchService.GetSummary(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

// transition 无请求体的状态迁移的公共处理
func (h *MatchHandler) transition(
	c *gin.Context,
	fn func(ctx context.Context, roomCode, playerID string) (*service.MatchView, error),
) {
	playerID, ok := middleware.GetPlayerID(c)
	if !ok {
		respondError(c, errors.New(errors.ErrAuthentication))
		return
	}

	view, err := fn(c.Request.Context(), c.Param("code"), playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}
