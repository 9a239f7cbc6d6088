package provider

import (
	"time"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/payment/stripe"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"
	"github.com/storefront-next/internal/service"

	"gorm.io/gorm"
)

// Options 可替换的外部依赖（测试中注入假支付网关）
type Options struct {
	PaymentAuthorizer service.PaymentAuthorizer
	QueueClient       *queue.Client
}

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client

	// Repositories
	UserRepo    repository.UserRepository
	ProductRepo repository.ProductRepository
	CartRepo    repository.CartRepository
	OrderRepo   repository.OrderRepository
	PaymentRepo repository.PaymentRepository

	// Services
	AuthzService      *authz.Service
	UserAuthService   *service.UserAuthService
	ProductService    *service.ProductService
	CartService       *service.CartService
	OrderService      *service.OrderService
	PaymentAuthorizer service.PaymentAuthorizer
	CheckoutLocker    *cache.CheckoutLocker
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	return NewContainerWithDB(cfg, models.DB, Options{QueueClient: queueClient})
}

// NewContainerWithDB 基于指定数据库连接组装容器
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, opts Options) *Container {
	queueClient := opts.QueueClient
	if queueClient == nil {
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices(opts)

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
}

func (c *Container) initServices(opts Options) {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.PaymentAuthorizer = opts.PaymentAuthorizer
	if c.PaymentAuthorizer == nil {
		if err := stripe.ValidateConfig(&stripe.Config{
			SecretKey:  c.Config.Payment.Stripe.SecretKey,
			APIBaseURL: c.Config.Payment.Stripe.APIBaseURL,
		}); err != nil {
			logger.Warnw("provider_stripe_config_invalid", "error", err)
		}
		c.PaymentAuthorizer = service.NewStripeAuthorizer(stripe.NewClient(stripe.Config{
			SecretKey:  c.Config.Payment.Stripe.SecretKey,
			APIBaseURL: c.Config.Payment.Stripe.APIBaseURL,
			Timeout:    time.Duration(c.Config.Payment.TimeoutSeconds) * time.Second,
		}))
	}
	c.CheckoutLocker = cache.NewCheckoutLocker()

	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.CartService = service.NewCartService(c.UserRepo, c.ProductRepo, c.CartRepo)
	c.ProductService = service.NewProductService(c.ProductRepo, c.CartService, c.QueueClient)
	c.OrderService = service.NewOrderService(
		c.Config,
		c.OrderRepo,
		c.ProductRepo,
		c.CartRepo,
		c.UserRepo,
		c.PaymentRepo,
		c.PaymentAuthorizer,
		c.CheckoutLocker,
		c.QueueClient,
	)
}
