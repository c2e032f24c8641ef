package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"repairshop-backend/internal/config"
	infraCache "repairshop-backend/internal/infrastructure/cache"
	"repairshop-backend/internal/infrastructure/database"
	"repairshop-backend/pkg/cache"
	"repairshop-backend/pkg/jwt"

	promoHandler "repairshop-backend/internal/domains/promotion/handler"
	promoRepo "repairshop-backend/internal/domains/promotion/repository"
	promoService "repairshop-backend/internal/domains/promotion/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container chứa TẤT CẢ dependencies của application
// Struct này là "root" của dependency graph
type Container struct {
	// Infrastructure - shared, singleton trong app lifetime
	Config     *config.Config
	DB         *database.PostgresDB
	Redis      *infraCache.RedisClient
	Cache      cache.Cache
	JWTManager *jwt.Manager

	// Repository layer
	PromotionRepo promoRepo.PromotionRepository
	UsageLedger   promoRepo.UsageLedger

	// Service layer
	PromotionService promoService.ServiceInterface
	DiscountEngine   promoService.EngineInterface

	// Handler layer
	AdminHandler        *promoHandler.AdminHandler
	CartDiscountHandler *promoHandler.CartDiscountHandler
}

// NewContainer tạo và initialize toàn bộ dependency graph.
//
// Thứ tự initialization:
// 1. Config (không phụ thuộc gì)
// 2. Infrastructure (DB, Redis) - phụ thuộc Config
// 3. Repositories - phụ thuộc Infrastructure
// 4. Services - phụ thuộc Repositories
// 5. Handlers - phụ thuộc Services
func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	log.Println("📋 Loading configuration...")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	log.Println("🗄️  Connecting to PostgreSQL...")

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	c.DB = db
	log.Println("✅ Database connected")

	// ========================================
	// STEP 3: INITIALIZE REDIS
	// ========================================
	log.Println("🔴 Connecting to Redis...")

	redisClient := infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.Redis = redisClient
	c.Cache = infraCache.NewRedisCache(redisClient)
	log.Println("✅ Redis connected")

	// ========================================
	// STEP 4: JWT MANAGER
	// ========================================
	c.JWTManager = jwt.NewManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
	)

	// ========================================
	// STEP 5: PROMOTION DOMAIN
	// ========================================
	log.Println("🏷️  Wiring promotion domain...")

	repo := promoRepo.NewPostgresRepository(db.Pool)
	c.PromotionRepo = repo
	c.UsageLedger = repo

	c.PromotionService = promoService.NewPromotionService(c.PromotionRepo, c.UsageLedger, c.Cache)
	c.DiscountEngine = promoService.NewDiscountEngine(c.PromotionRepo, c.UsageLedger, c.Cache)

	c.AdminHandler = promoHandler.NewAdminHandler(c.PromotionService)
	c.CartDiscountHandler = promoHandler.NewCartDiscountHandler(c.DiscountEngine)

	log.Println("✅ DI Container initialized")
	return c, nil
}

// Close giải phóng các connection khi shutdown
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("⚠️  Error closing Redis: %v", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
