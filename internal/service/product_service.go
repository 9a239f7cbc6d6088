package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"github.com/shopspring/decimal"
)

// ProductService 商品业务服务
type ProductService struct {
	repo        repository.ProductRepository
	cartService *CartService
	queueClient *queue.Client
}

// NewProductService 创建商品服务
func NewProductService(repo repository.ProductRepository, cartService *CartService, queueClient *queue.Client) *ProductService {
	return &ProductService{
		repo:        repo,
		cartService: cartService,
		queueClient: queueClient,
	}
}

// ProductInput 创建/更新商品输入（更新为整体替换）
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	Image       string
}

// List 商品列表
func (s *ProductService) List(category, search string, page, pageSize int) ([]models.Product, int64, error) {
	filter := repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Category: strings.TrimSpace(category),
		Search:   strings.TrimSpace(search),
	}
	return s.repo.List(filter)
}

// GetByID 商品详情
func (s *ProductService) GetByID(id uint) (*models.Product, error) {
	if id == 0 {
		return nil, ErrProductNotFound
	}
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Create 创建商品
func (s *ProductService) Create(input ProductInput) (*models.Product, error) {
	normalized, err := normalizeProductInput(input)
	if err != nil {
		return nil, err
	}
	product := &models.Product{}
	applyProductInput(product, normalized)
	if err := s.repo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update 更新商品
func (s *ProductService) Update(id uint, input ProductInput) (*models.Product, error) {
	normalized, err := normalizeProductInput(input)
	if err != nil {
		return nil, err
	}
	product, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	applyProductInput(product, normalized)
	affected, err := s.repo.Update(product)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Delete 删除商品，并异步清理购物车引用（队列不可用时同步清理）
func (s *ProductService) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrProductNotFound
	}
	affected, err := s.repo.Delete(id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueCartPurgeProduct(queue.CartPurgeProductPayload{ProductID: id})
		if err == nil {
			return nil
		}
		logger.Warnw("cart_purge_enqueue_failed", "product_id", id, "error", err)
	}
	if s.cartService == nil {
		return nil
	}
	if _, err := s.cartService.PurgeProduct(ctx, id); err != nil {
		// 读取购物车时会跳过悬空行，这里只记录日志
		logger.Warnw("cart_purge_inline_failed", "product_id", id, "error", err)
	}
	return nil
}

func normalizeProductInput(input ProductInput) (ProductInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.Image = strings.TrimSpace(input.Image)
	input.Price = input.Price.Round(2)

	if utf8.RuneCountInString(input.Name) < minNameLength {
		return input, ErrProductInvalid
	}
	if input.Description == "" || input.Category == "" {
		return input, ErrProductInvalid
	}
	if input.Price.LessThan(decimal.Zero) || input.Stock < 0 {
		return input, ErrProductInvalid
	}
	return input, nil
}

func applyProductInput(product *models.Product, input ProductInput) {
	product.Name = input.Name
	product.Description = input.Description
	product.Price = models.NewMoneyFromDecimal(input.Price)
	product.Category = input.Category
	product.Stock = input.Stock
	product.Image = input.Image
}
