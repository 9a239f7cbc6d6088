package service

import "errors"

// 身份与鉴权
var (
	ErrInvalidName        = errors.New("name must be at least 2 characters")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrEmailExists        = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrInvalidPassword    = errors.New("current password is incorrect")
	ErrNotFound           = errors.New("not found")
)

// 商品
var (
	ErrProductInvalid  = errors.New("invalid product")
	ErrProductNotFound = errors.New("product not found")
)

// 购物车
var (
	ErrInvalidCartQuantity = errors.New("quantity must be at least 1")
	ErrCartVersionConflict = errors.New("cart was modified concurrently")
)

// 下单与支付
var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrOutOfStock             = errors.New("insufficient stock")
	ErrCheckoutInProgress     = errors.New("checkout already in progress")
	ErrPaymentMethodRequired  = errors.New("payment method is required")
	ErrIdempotencyKeyInvalid  = errors.New("invalid idempotency key")
	ErrIdempotencyKeyRefunded = errors.New("idempotency key belongs to a refunded payment, retry with a new key")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrOrderCreateFailed      = errors.New("order create failed")
)

// ErrPaymentDeclined 网关拒绝扣款，等价于 ErrPaymentFailed
var ErrPaymentDeclined = &paymentError{reason: "payment declined"}

// ErrPaymentRequiresAction 需要额外验证的支付，按失败处理
var ErrPaymentRequiresAction = &paymentError{reason: "payment requires additional authentication"}

type paymentError struct {
	reason string
}

func (e *paymentError) Error() string {
	return e.reason
}

func (e *paymentError) Unwrap() error {
	return ErrPaymentFailed
}

// PaymentDeclinedError 携带网关返回的拒绝原因
type PaymentDeclinedError struct {
	Message string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Message == "" {
		return ErrPaymentDeclined.Error()
	}
	return ErrPaymentDeclined.Error() + ": " + e.Message
}

func (e *PaymentDeclinedError) Unwrap() error {
	return ErrPaymentDeclined
}
