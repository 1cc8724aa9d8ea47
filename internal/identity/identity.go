// Package identity 从配置的访问令牌中解析当前用户。
// 令牌的签名校验由后端完成，客户端只需要读取自己的身份信息
// 来匹配频道里的移动中标记。
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
)

// User 当前登录用户
type User struct {
	ID          int64
	Username    string
	DisplayName string
}

// Claims JWT 声明
type Claims struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// FromToken 解析访问令牌中的用户身份
func FromToken(token string) (*User, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrTokenInvalid
	}

	if claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}

	return &User{
		ID:          claims.UserID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
	}, nil
}
