package ports

import "context"

type AuthService interface {
	Login(ctx context.Context, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (bool, error)
}

// SupportService gathers diagnostics for support requests.
type SupportService interface {
	Stats(ctx context.Context) (map[string]any, error)
	OptIn(ctx context.Context, generate bool) (string, error)
	SysInfo(ctx context.Context, key string) (map[string]any, error)
}
