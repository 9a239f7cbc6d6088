package constants

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
)

// 支付状态常量
const (
	PaymentStatusSuccess       = "success"
	PaymentStatusFailed        = "failed"
	PaymentStatusPending       = "pending"
	PaymentStatusRefunded      = "refunded"
	PaymentStatusRefundPending = "refund_pending" // 落单失败后待退款的扣款
)

// 支付提供方常量
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderFree   = "free"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 用户角色常量
const (
	UserRoleStandard = "user"
	UserRoleAdmin    = "admin"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskCartPurgeProduct = "cart:purge_product"
	TaskPaymentRefund    = "payment:refund"
	TaskOrderPlaced      = "order:placed"
)

// 默认商品分类（种子数据）
var SeedProductCategories = []string{"electronics", "clothing", "home", "sports", "books"}
