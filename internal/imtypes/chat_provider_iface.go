// internal/imtypes/chat_provider_iface.go
package imtypes

import "context"

// ChatUser 是同步到外部聊天服务的用户资料。
type ChatUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// ChatProvider 定义了外部聊天服务的接口。
// 将接口定义放在 imtypes 中以打破 chat 和 services 之间的循环依赖。
type ChatProvider interface {
	// UpsertUser creates or replaces the user in the provider's registry.
	// Calling it again with the same data is harmless.
	UpsertUser(ctx context.Context, user ChatUser) error

	// CreateToken mints a client token scoped to userID.
	CreateToken(ctx context.Context, userID string) (string, error)
}
