package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/utils"
	"go.uber.org/zap"
)

// AuthService 认证服务
// 玩家全部是游客身份：签发一个带随机PlayerID的令牌即可入局
type AuthService struct {
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(jwtManager *utils.JWTManager, log *zap.Logger) *AuthService {
	return &AuthService{
		jwtManager: jwtManager,
		log:        log,
	}
}

// GuestLoginResponse 游客登录响应
type GuestLoginResponse struct {
	PlayerID  string `json:"player_id"`
	Nickname  string `json:"nickname"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // 秒
}

// GuestLogin 游客登录
func (s *AuthService) GuestLogin(nickname string) (*GuestLoginResponse, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = "无名旅人"
	}
	if len([]rune(nickname)) > 16 {
		return nil, errors.New(errors.ErrInvalidParam, "昵称最长16个字符")
	}

	playerID := uuid.New().String()
	token, err := s.jwtManager.GenerateGuestToken(playerID, nickname)
	if err != nil {
		s.log.Error("签发游客令牌失败", zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrAuthentication)
	}

	s.log.Info("游客登录",
		zap.String("player_id", playerID),
		zap.String("nickname", nickname))

	return &GuestLoginResponse{
		PlayerID:  playerID,
		Nickname:  nickname,
		Token:     token,
		ExpiresIn: int64(s.jwtManager.GetTokenExpiry().Seconds()),
	}, nil
}

// ValidateToken 验证令牌
func (s *AuthService) ValidateToken(token string) (*utils.JWTClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}
	return claims, nil
}
