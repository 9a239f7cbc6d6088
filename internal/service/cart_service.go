package service

import (
	"context"

	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartService 购物车服务
type CartService struct {
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
}

// NewCartService 创建购物车服务
func NewCartService(userRepo repository.UserRepository, productRepo repository.ProductRepository, cartRepo repository.CartRepository) *CartService {
	return &CartService{
		userRepo:    userRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
	}
}

// CartItemView 购物车项（价格为商品当前价格）
type CartItemView struct {
	Product   *models.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal models.Money    `json:"line_total"`
}

// CartView 购物车视图，total 仅供展示，下单时重新计算
type CartView struct {
	Items   []CartItemView `json:"items"`
	Total   models.Money   `json:"total"`
	Version uint64         `json:"version"`
}

// UpsertCartItemInput 添加/更新购物车项输入
type UpsertCartItemInput struct {
	UserID          uint
	ProductID       uint
	Quantity        int
	ExpectedVersion *uint64
}

// GetCart 获取购物车，已删除商品的行不返回
func (s *CartService) GetCart(ctx context.Context, userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	items, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return buildCartView(userID, user.CartVersion, items), nil
}

// UpsertItem 设置购物车项数量（后写覆盖），行写入与版本号自增在同一事务内
func (s *CartService) UpsertItem(ctx context.Context, input UpsertCartItemInput) (*CartView, error) {
	if input.UserID == 0 {
		return nil, ErrNotFound
	}
	if input.Quantity < 1 {
		return nil, ErrInvalidCartQuantity
	}
	if input.ProductID == 0 {
		return nil, ErrProductNotFound
	}
	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	err = s.productRepo.Transaction(func(tx *gorm.DB) error {
		affected, err := s.userRepo.WithTx(tx).BumpCartVersion(input.UserID, input.ExpectedVersion)
		if err != nil {
			return err
		}
		if affected == 0 {
			if input.ExpectedVersion != nil {
				return ErrCartVersionConflict
			}
			return ErrNotFound
		}
		return s.cartRepo.WithTx(tx).Upsert(&models.CartItem{
			UserID:    input.UserID,
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, input.UserID)
}

// RemoveItem 删除购物车项，不存在时为空操作；仅实际删除时自增版本号
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint, expectedVersion *uint64) (*CartView, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	err := s.productRepo.Transaction(func(tx *gorm.DB) error {
		deleted, err := s.cartRepo.WithTx(tx).DeleteByUserAndProduct(userID, productID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}
		affected, err := s.userRepo.WithTx(tx).BumpCartVersion(userID, expectedVersion)
		if err != nil {
			return err
		}
		if affected == 0 {
			if expectedVersion != nil {
				return ErrCartVersionConflict
			}
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// PurgeProduct 清理引用已删除商品的购物车项
func (s *CartService) PurgeProduct(ctx context.Context, productID uint) (int64, error) {
	if productID == 0 {
		return 0, nil
	}
	affected, err := s.cartRepo.DeleteByProduct(productID)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logger.Infow("cart_product_purged", "product_id", productID, "lines", affected)
	}
	return affected, nil
}

func buildCartView(userID uint, version uint64, items []models.CartItem) *CartView {
	view := &CartView{
		Items:   make([]CartItemView, 0, len(items)),
		Version: version,
	}
	total := decimal.Zero
	dangling := 0
	for i := range items {
		item := items[i]
		if item.Product == nil {
			dangling++
			continue
		}
		lineTotal := item.Product.Price.Times(item.Quantity)
		total = total.Add(lineTotal.Decimal)
		view.Items = append(view.Items, CartItemView{
			Product:   item.Product,
			Quantity:  item.Quantity,
			LineTotal: lineTotal,
		})
	}
	if dangling > 0 {
		logger.Debugw("cart_dangling_lines_skipped", "user_id", userID, "count", dangling)
	}
	view.Total = models.NewMoneyFromDecimal(total.Round(2))
	return view
}
