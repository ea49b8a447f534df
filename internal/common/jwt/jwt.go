// Package jwt 签发与校验访问令牌、刷新令牌
package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 角色常量，与 models.UserRole 取值一致
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenNotActive = errors.New("token not active yet")
	ErrTokenType      = errors.New("unexpected token type")
)

// Claims 令牌载荷
type Claims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// IsAdmin 是否为管理员令牌
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Config 签名密钥与有效期
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// TokenPair 登录或刷新后返回给客户端的令牌
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Manager 只使用 HS256
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// NewManager 创建管理器，Issuer 非空时解析阶段同时校验签发方
func NewManager(cfg *Config) *Manager {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Manager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		parser:     jwt.NewParser(opts...),
	}
}

// GenerateTokenPair 同一时刻签发一对令牌，ExpiresAt 取访问令牌的过期时间
func (m *Manager) GenerateTokenPair(userID int64, role string) (*TokenPair, error) {
	now := time.Now()

	access, err := m.sign(userID, role, TokenTypeAccess, now, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(userID, role, TokenTypeRefresh, now, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.accessTTL).Unix(),
	}, nil
}

func (m *Manager) sign(userID int64, role, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken 校验签名与时间，不限令牌类型
func (m *Manager) ParseToken(raw string) (*Claims, error) {
	return m.parse(raw, "")
}

// ParseAccessToken 拒绝刷新令牌
func (m *Manager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeAccess)
}

// ParseRefreshToken 拒绝访问令牌
func (m *Manager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeRefresh)
}

func (m *Manager) parse(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if wantType != "" && claims.TokenType != wantType {
		return nil, ErrTokenType
	}
	return claims, nil
}

// translate 把库错误收敛为本包的哨兵错误
func translate(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotActive
	default:
		return ErrTokenInvalid
	}
}
