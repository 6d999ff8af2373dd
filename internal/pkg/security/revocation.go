package security

import "context"

// Revocation 用户服务登出时登记的失效 Token
type Revocation interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Authenticate 解析 Token 并检查是否已失效，rev 为 nil 时跳过失效检查
func Authenticate(ctx context.Context, rev Revocation, token string) (*UserClaims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	if rev != nil {
		revoked, err := rev.IsRevoked(ctx, token)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenInvalid
		}
	}
	return ValidateToken(token)
}
