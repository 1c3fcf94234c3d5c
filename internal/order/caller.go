package order

// RoleAdmin 管理员角色
const RoleAdmin = "ADMIN"

// Caller 是已认证的请求方，由鉴权中间件解析后显式传入各入口；nil 表示游客。
type Caller struct {
	UserID   int64
	Username string
	Role     string
}

func (c *Caller) IsAdmin() bool { return c != nil && c.Role == RoleAdmin }

// DisplayName 用于通知文案。
func (c *Caller) DisplayName() string {
	if c == nil || c.Username == "" {
		return "Guest"
	}
	return c.Username
}
