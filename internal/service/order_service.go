package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	orderNoPrefix           = "SF"
	maxIdempotencyKeyLength = 128
	defaultCheckoutLockTTL  = time.Minute
	defaultPaymentTimeout   = 15 * time.Second
	maxDerivedKeyAttempts   = 3
)

// CheckoutLocker 用户级下单互斥
type CheckoutLocker interface {
	Acquire(ctx context.Context, userID uint, ttl time.Duration) (func(), bool, error)
}

// OrderService 订单服务
type OrderService struct {
	cfg         *config.Config
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
	userRepo    repository.UserRepository
	paymentRepo repository.PaymentRepository
	authorizer  PaymentAuthorizer
	locker      CheckoutLocker
	queueClient *queue.Client

	// 已退款扣款的网关幂等键，数据库写入失败时兜底
	refundedKeys sync.Map
}

// NewOrderService 创建订单服务
func NewOrderService(cfg *config.Config, orderRepo repository.OrderRepository, productRepo repository.ProductRepository, cartRepo repository.CartRepository, userRepo repository.UserRepository, paymentRepo repository.PaymentRepository, authorizer PaymentAuthorizer, locker CheckoutLocker, queueClient *queue.Client) *OrderService {
	return &OrderService{
		cfg:         cfg,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		authorizer:  authorizer,
		locker:      locker,
		queueClient: queueClient,
	}
}

// PlaceOrderInput 下单输入，金额一律由服务端计算
type PlaceOrderInput struct {
	UserID          uint
	PaymentMethodID string
	IdempotencyKey  string
}

// orderLine 下单瞬间的购物车快照行
type orderLine struct {
	ProductID uint
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// PlaceOrder 快照购物车、扣款、原子落单并清空已结算的购物车项
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.UserID == 0 {
		return nil, ErrNotFound
	}
	paymentMethodID := strings.TrimSpace(input.PaymentMethodID)
	if paymentMethodID == "" {
		return nil, ErrPaymentMethodRequired
	}
	clientKey := strings.TrimSpace(input.IdempotencyKey)
	if len(clientKey) > maxIdempotencyKeyLength {
		return nil, ErrIdempotencyKeyInvalid
	}

	release, acquired, err := s.acquireCheckoutLock(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrCheckoutInProgress
	}
	defer release()

	if clientKey != "" {
		existing, err := s.orderRepo.GetByUserAndIdempotencyKey(input.UserID, clientKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Infow("order_idempotent_replay", "user_id", input.UserID, "order_no", existing.OrderNo)
			return existing, nil
		}
	}

	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	cartItems, err := s.cartRepo.ListByUser(input.UserID)
	if err != nil {
		return nil, err
	}
	lines, err := snapshotCart(cartItems)
	if err != nil {
		return nil, err
	}
	total := sumOrderLines(lines)
	currency := s.currency()
	orderNo := generateOrderNo()

	idempotencyKey, err := s.resolveGatewayKey(input.UserID, clientKey, user.CartVersion, lines, total, paymentMethodID)
	if err != nil {
		return nil, err
	}

	auth, err := s.authorize(ctx, input.UserID, orderNo, total, currency, paymentMethodID, idempotencyKey)
	if err != nil {
		return nil, err
	}

	order, err := s.commitOrder(input.UserID, orderNo, lines, total, currency, idempotencyKey, auth)
	if err != nil {
		if models.IsDuplicateKeyError(err) {
			if existing := s.resolveCommittedOrder(input.UserID, auth.ProviderRef, idempotencyKey); existing != nil {
				logger.Infow("order_commit_resolved_existing", "user_id", input.UserID, "order_no", existing.OrderNo)
				return existing, nil
			}
		}
		if auth.Provider != constants.PaymentProviderFree {
			s.compensate(input.UserID, auth, idempotencyKey, total, currency, err)
		}
		if errors.Is(err, ErrOutOfStock) {
			return nil, ErrOutOfStock
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	logger.Infow("order_placed",
		"user_id", order.UserID,
		"order_no", order.OrderNo,
		"total", order.TotalAmount.String(),
		"lines", len(order.Items),
	)
	if err := s.queueClient.EnqueueOrderPlaced(queue.OrderPlacedPayload{
		OrderID: order.ID,
		OrderNo: order.OrderNo,
		UserID:  order.UserID,
		Total:   order.TotalAmount.String(),
	}); err != nil {
		logger.Warnw("order_placed_enqueue_failed", "order_no", order.OrderNo, "error", err)
	}
	return order, nil
}

// ListOrders 当前用户订单（新到旧）
func (s *OrderService) ListOrders(ctx context.Context, userID uint, page, pageSize int) ([]models.Order, int64, error) {
	if userID == 0 {
		return nil, 0, ErrNotFound
	}
	return s.orderRepo.ListByUser(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
	})
}

// RefundPayment 重试补偿退款并标记支付记录
func (s *OrderService) RefundPayment(ctx context.Context, providerRef, idempotencyKey string) error {
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return ErrNotFound
	}
	if idempotencyKey == "" {
		idempotencyKey = refundIdempotencyKey(providerRef)
	}
	payment, err := s.paymentRepo.GetByProviderRef(providerRef)
	if err != nil {
		return err
	}
	if payment != nil && payment.Status == constants.PaymentStatusRefunded {
		logger.Infow("payment_refund_already_done", "provider_ref", providerRef, "order_id", payment.OrderID)
		return nil
	}
	if err := s.authorizer.Refund(ctx, providerRef, idempotencyKey); err != nil {
		return err
	}
	affected, err := s.paymentRepo.MarkRefunded(providerRef, time.Now())
	if err != nil {
		return err
	}
	logger.Infow("payment_refunded", "provider_ref", providerRef, "payment_rows", affected)
	return nil
}

func (s *OrderService) acquireCheckoutLock(ctx context.Context, userID uint) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	ttl := defaultCheckoutLockTTL
	if s.cfg != nil && s.cfg.Order.CheckoutLockSeconds > 0 {
		ttl = time.Duration(s.cfg.Order.CheckoutLockSeconds) * time.Second
	}
	return s.locker.Acquire(ctx, userID, ttl)
}

func (s *OrderService) authorize(ctx context.Context, userID uint, orderNo string, total decimal.Decimal, currency, paymentMethodID, idempotencyKey string) (*AuthorizeResult, error) {
	if total.IsZero() {
		now := time.Now()
		return &AuthorizeResult{
			Provider:    constants.PaymentProviderFree,
			ProviderRef: "free_" + orderNo,
			PaidAt:      &now,
		}, nil
	}
	if s.authorizer == nil {
		return nil, fmt.Errorf("%w: gateway not configured", ErrPaymentFailed)
	}

	payCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout())
	defer cancel()
	result, err := s.authorizer.Authorize(payCtx, AuthorizeInput{
		Amount:          total,
		Currency:        currency,
		PaymentMethodID: paymentMethodID,
		IdempotencyKey:  idempotencyKey,
		Description:     "Order " + orderNo,
		Metadata: map[string]string{
			"order_no": orderNo,
			"user_id":  strconv.FormatUint(uint64(userID), 10),
		},
	})
	if err != nil {
		logger.Warnw("order_payment_failed",
			"user_id", userID,
			"order_no", orderNo,
			"amount", total.StringFixed(2),
			"error", err,
		)
		return nil, normalizePaymentError(err)
	}
	if result == nil || strings.TrimSpace(result.ProviderRef) == "" {
		return nil, fmt.Errorf("%w: empty provider reference", ErrPaymentFailed)
	}
	if result.Provider == "" {
		result.Provider = constants.PaymentProviderStripe
	}
	return result, nil
}

func (s *OrderService) commitOrder(userID uint, orderNo string, lines []orderLine, total decimal.Decimal, currency, idempotencyKey string, auth *AuthorizeResult) (*models.Order, error) {
	order := &models.Order{
		OrderNo:        orderNo,
		UserID:         userID,
		Status:         constants.OrderStatusPending,
		Currency:       currency,
		TotalAmount:    models.NewMoneyFromDecimal(total),
		PaymentRef:     auth.ProviderRef,
		IdempotencyKey: idempotencyKey,
	}
	items := make([]models.OrderItem, 0, len(lines))
	productIDs := make([]uint, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			UnitPrice:   models.NewMoneyFromDecimal(line.UnitPrice),
			Quantity:    line.Quantity,
			TotalPrice:  models.NewMoneyFromDecimal(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)),
		})
		productIDs = append(productIDs, line.ProductID)
	}

	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.WithTx(tx).Create(order, items); err != nil {
			return err
		}
		payment := &models.Payment{
			OrderID:        order.ID,
			Provider:       auth.Provider,
			ProviderRef:    auth.ProviderRef,
			Amount:         models.NewMoneyFromDecimal(total),
			Currency:       currency,
			Status:         constants.PaymentStatusSuccess,
			IdempotencyKey: idempotencyKey,
			PaidAt:         auth.PaidAt,
		}
		if err := s.paymentRepo.WithTx(tx).Create(payment); err != nil {
			return err
		}
		productRepo := s.productRepo.WithTx(tx)
		for _, line := range lines {
			affected, err := productRepo.DecrementStock(line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return ErrOutOfStock
			}
		}
		if _, err := s.cartRepo.WithTx(tx).DeleteByUserAndProducts(userID, productIDs); err != nil {
			return err
		}
		if _, err := s.userRepo.WithTx(tx).BumpCartVersion(userID, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// resolveCommittedOrder 重复的支付流水号或幂等键说明订单已落库
func (s *OrderService) resolveCommittedOrder(userID uint, providerRef, idempotencyKey string) *models.Order {
	if existing, err := s.orderRepo.GetByPaymentRef(providerRef); err == nil && existing != nil && existing.UserID == userID {
		return existing
	}
	if existing, err := s.orderRepo.GetByUserAndIdempotencyKey(userID, idempotencyKey); err == nil && existing != nil && existing.PaymentRef == providerRef {
		return existing
	}
	return nil
}

// resolveGatewayKey 确定本次扣款的网关幂等键；已退款的键不再用于扣款
func (s *OrderService) resolveGatewayKey(userID uint, clientKey string, cartVersion uint64, lines []orderLine, total decimal.Decimal, paymentMethodID string) (string, error) {
	if clientKey != "" {
		refunded, err := s.isRefundedKey(clientKey)
		if err != nil {
			return "", err
		}
		if refunded {
			logger.Warnw("order_idempotency_key_refunded", "user_id", userID)
			return "", ErrIdempotencyKeyRefunded
		}
		return clientKey, nil
	}

	version := cartVersion
	for attempt := 0; attempt < maxDerivedKeyAttempts; attempt++ {
		key := deriveIdempotencyKey(userID, version, lines, total, paymentMethodID)
		refunded, err := s.isRefundedKey(key)
		if err != nil {
			return "", err
		}
		if !refunded {
			return key, nil
		}
		if _, err := s.userRepo.BumpCartVersion(userID, nil); err != nil {
			return "", err
		}
		version++
	}
	return "", fmt.Errorf("%w: no usable idempotency key", ErrPaymentFailed)
}

func (s *OrderService) isRefundedKey(key string) (bool, error) {
	if _, ok := s.refundedKeys.Load(key); ok {
		return true, nil
	}
	payment, err := s.paymentRepo.GetByIdempotencyKey(key)
	if err != nil {
		return false, err
	}
	if payment == nil {
		return false, nil
	}
	return payment.Status == constants.PaymentStatusRefunded || payment.Status == constants.PaymentStatusRefundPending, nil
}

// compensate 落单失败后退款并登记该扣款，失败则交给队列重试
func (s *OrderService) compensate(userID uint, auth *AuthorizeResult, idempotencyKey string, total decimal.Decimal, currency string, cause error) {
	providerRef := auth.ProviderRef
	refundKey := refundIdempotencyKey(providerRef)
	// 请求可能已取消，退款使用独立的超时上下文
	refundCtx, cancel := context.WithTimeout(context.Background(), s.paymentTimeout())
	defer cancel()

	refundErr := s.authorizer.Refund(refundCtx, providerRef, refundKey)
	s.recordRefundedCharge(userID, auth, idempotencyKey, total, currency, refundErr == nil)
	if refundErr == nil {
		logger.Warnw("order_commit_failed_refunded",
			"user_id", userID,
			"provider_ref", providerRef,
			"amount", total.StringFixed(2),
			"cause", cause,
		)
		return
	}
	logger.Errorw("order_commit_failed_refund_failed",
		"user_id", userID,
		"provider_ref", providerRef,
		"amount", total.StringFixed(2),
		"cause", cause,
		"error", refundErr,
	)
	if !s.queueClient.Enabled() {
		logger.Errorw("payment_refund_requires_manual_action", "user_id", userID, "provider_ref", providerRef)
		return
	}
	if enqueueErr := s.queueClient.EnqueuePaymentRefund(queue.PaymentRefundPayload{
		UserID:         userID,
		ProviderRef:    providerRef,
		Amount:         total.StringFixed(2),
		Currency:       currency,
		IdempotencyKey: refundKey,
		Reason:         cause.Error(),
	}); enqueueErr != nil {
		logger.Errorw("payment_refund_enqueue_failed",
			"user_id", userID,
			"provider_ref", providerRef,
			"error", enqueueErr,
		)
	}
}

// recordRefundedCharge 在回滚的事务之外登记被退款的扣款，并推进购物车版本，
// 使同一幂等键不会再换回网关缓存的成功结果
func (s *OrderService) recordRefundedCharge(userID uint, auth *AuthorizeResult, idempotencyKey string, total decimal.Decimal, currency string, refunded bool) {
	s.refundedKeys.Store(idempotencyKey, struct{}{})

	status := constants.PaymentStatusRefundPending
	if refunded {
		status = constants.PaymentStatusRefunded
	}
	if err := s.paymentRepo.Create(&models.Payment{
		Provider:       auth.Provider,
		ProviderRef:    auth.ProviderRef,
		Amount:         models.NewMoneyFromDecimal(total),
		Currency:       currency,
		Status:         status,
		IdempotencyKey: idempotencyKey,
		PaidAt:         auth.PaidAt,
	}); err != nil {
		logger.Errorw("payment_refund_record_failed",
			"user_id", userID,
			"provider_ref", auth.ProviderRef,
			"status", status,
			"error", err,
		)
	}
	if _, err := s.userRepo.BumpCartVersion(userID, nil); err != nil {
		logger.Warnw("order_compensate_cart_version_bump_failed", "user_id", userID, "error", err)
	}
}

func (s *OrderService) currency() string {
	if s.cfg == nil || strings.TrimSpace(s.cfg.Payment.Currency) == "" {
		return "usd"
	}
	return s.cfg.Payment.Currency
}

func (s *OrderService) paymentTimeout() time.Duration {
	if s.cfg == nil || s.cfg.Payment.TimeoutSeconds <= 0 {
		return defaultPaymentTimeout
	}
	return time.Duration(s.cfg.Payment.TimeoutSeconds) * time.Second
}

// snapshotCart 固化单价、名称与数量；悬空行丢弃
func snapshotCart(items []models.CartItem) ([]orderLine, error) {
	lines := make([]orderLine, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		if item.Quantity > item.Product.Stock {
			return nil, ErrOutOfStock
		}
		lines = append(lines, orderLine{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.Price.Decimal.Round(2),
			Quantity:  item.Quantity,
		})
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}

func sumOrderLines(lines []orderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total.Round(2)
}

// deriveIdempotencyKey 客户端未提供幂等键时按购物车状态派生
func deriveIdempotencyKey(userID uint, cartVersion uint64, lines []orderLine, total decimal.Decimal, paymentMethodID string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(userID), 10))
	b.WriteString("|")
	b.WriteString(strconv.FormatUint(cartVersion, 10))
	for _, line := range lines {
		fmt.Fprintf(&b, "|%d:%d:%s", line.ProductID, line.Quantity, line.UnitPrice.StringFixed(2))
	}
	b.WriteString("|")
	b.WriteString(total.StringFixed(2))
	b.WriteString("|")
	b.WriteString(paymentMethodID)
	sum := sha256.Sum256([]byte(b.String()))
	return "auto_" + hex.EncodeToString(sum[:])
}

func refundIdempotencyKey(providerRef string) string {
	return "refund_" + providerRef
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%s", orderNoPrefix, now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}
