package order

import "errors"

// 路由层通过 errors.Is 把这些错误映射成 HTTP 状态码。
var (
	ErrValidation           = errors.New("validation error")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("order belongs to a different account")
	ErrNotFound             = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrAlreadyPaid          = errors.New("order already paid")
	ErrInitiationInProgress = errors.New("payment initiation already in progress")
	ErrMalformedReference   = errors.New("invalid order format")
	ErrSignature            = errors.New("invalid signature")
	ErrGateway              = errors.New("payment gateway error")
	ErrStorage              = errors.New("storage error")
)
