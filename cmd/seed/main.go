package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	Name        string
	Description string
	Price       string
	Category    string
	Stock       int
	Image       string
}

var catalog = []seedProduct{
	{Name: "Mechanical Keyboard", Description: "Tenkeyless keyboard with hot-swappable switches", Price: "89.00", Category: "electronics", Stock: 40},
	{Name: "Cotton Hoodie", Description: "Heavyweight hoodie in organic cotton", Price: "49.50", Category: "clothing", Stock: 120},
	{Name: "Ceramic Mug", Description: "Hand glazed 350ml mug", Price: "12.50", Category: "home", Stock: 200},
	{Name: "Yoga Mat", Description: "6mm non-slip mat with carry strap", Price: "29.99", Category: "sports", Stock: 60},
	{Name: "The Go Programming Language", Description: "Paperback, second printing", Price: "39.00", Category: "books", Stock: 35},
	{Name: "Wireless Mouse", Description: "Ergonomic mouse with 70 day battery life", Price: "29.50", Category: "electronics", Stock: 80},
}

func main() {
	var (
		withAdmin bool
		products  int
	)
	flag.BoolVar(&withAdmin, "admin", true, "创建默认管理员（已存在管理员时跳过）")
	flag.IntVar(&products, "products", len(catalog), "写入的示例商品数量")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	if withAdmin {
		if err := models.InitDefaultAdmin(os.Getenv("STOREFRONT_DEFAULT_ADMIN_EMAIL"), os.Getenv("STOREFRONT_DEFAULT_ADMIN_PASSWORD")); err != nil {
			stdLog.Printf("Failed to create admin: %v", err)
		}
	}

	created := 0
	for i, item := range buildSeedProducts(products) {
		var existing models.Product
		if err := models.DB.Where("name = ?", item.Name).First(&existing).Error; err == nil {
			stdLog.Printf("Product already exists: %s", item.Name)
			continue
		}
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			stdLog.Printf("Invalid price for %s: %v", item.Name, err)
			continue
		}
		product := models.Product{
			Name:        item.Name,
			Description: item.Description,
			Price:       models.NewMoneyFromDecimal(price),
			Category:    item.Category,
			Stock:       item.Stock,
			Image:       item.Image,
		}
		if err := models.DB.Create(&product).Error; err != nil {
			stdLog.Printf("Failed to create product #%d %s: %v", i+1, item.Name, err)
			continue
		}
		created++
	}
	stdLog.Printf("Seed finished, %d products created", created)
}

// buildSeedProducts 超出内置目录的部分按序号补齐
func buildSeedProducts(n int) []seedProduct {
	if n <= 0 {
		return nil
	}
	items := make([]seedProduct, 0, n)
	for i := 0; i < n; i++ {
		if i < len(catalog) {
			items = append(items, catalog[i])
			continue
		}
		base := catalog[i%len(catalog)]
		items = append(items, seedProduct{
			Name:        fmt.Sprintf("%s #%d", base.Name, i+1),
			Description: base.Description,
			Price:       base.Price,
			Category:    base.Category,
			Stock:       base.Stock,
		})
	}
	return items
}
