package payment

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultPrefix 是已签发给网关的外部单号前缀，改动会导致历史回调无法关联。
const DefaultPrefix = "MDZ"

// References 负责生成与解析外部单号：{PREFIX}-{orderID}-{unixMillis}。
// 关联只依赖中间的数字段，时间戳后缀仅用于区分同一订单的多次发起。
type References struct {
	prefix  string
	pattern *regexp.Regexp
}

// NewReferences 按前缀构造编解码器，前缀为空时使用 DefaultPrefix。
func NewReferences(prefix string) References {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return References{
		prefix:  prefix,
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)-\d+$`),
	}
}

// Prefix 返回当前前缀。
func (r References) Prefix() string { return r.prefix }

// Build 生成外部单号。
func (r References) Build(orderID uint, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", r.prefix, orderID, at.UnixMilli())
}

// Parse 从外部单号中取回内部订单 ID。
func (r References) Parse(ref string) (uint, error) {
	m := r.pattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, fmt.Errorf("reference %q does not match %s", ref, r.pattern.String())
	}
	id, err := strconv.ParseUint(m[1], 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("reference %q carries invalid order id %q", ref, m[1])
	}
	return uint(id), nil
}
