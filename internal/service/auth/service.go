package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashwinyue/next-chat/internal/errs"
)

const userIDClaim = "user_id"

// Service 认证服务，只校验外部签发的会话令牌
type Service struct {
	secret []byte
}

// NewService 创建认证服务
// secret 为空时生成随机密钥，此时只能校验本进程签发的令牌
func NewService(secret string) (*Service, error) {
	if s := strings.TrimSpace(secret); s != "" {
		return &Service{secret: []byte(s)}, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return &Service{secret: b}, nil
}

// IssueToken 签发令牌，用于开发与测试
func (s *Service) IssueToken(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		userIDClaim: userID,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken 验证令牌，返回用户 ID
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", errs.Auth("missing session token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errs.Auth("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errs.Auth("invalid token claims")
	}

	userID, ok := claims[userIDClaim].(string)
	if !ok || userID == "" {
		return "", errs.Auth("invalid user ID in token")
	}
	return userID, nil
}
