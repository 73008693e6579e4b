package app

import (
	"hr-admin/internal/leave"
	"hr-admin/internal/messaging/kafka"
	"hr-admin/internal/middleware"
	"hr-admin/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	gormDB *gorm.DB,
	rdb *redis.Client,
) error {
	db, err := gormDB.DB()
	if err != nil {
		return err
	}

	// --- Repositories ---
	userRepo := user.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Services ---
	leaveService := leave.NewServiceWithOutbox(db, leaveRepo, userRepo, outboxRepo, rdb)

	// --- Handlers ---
	leaveHandler := leave.NewHandlerWithRedis(leaveService, rdb)

	// --- Global middleware ---
	limiter := middleware.NewIPRateLimiter(rate.Limit(10), 20)
	router.Use(
		middleware.RequestID(),
		middleware.RateLimit(limiter),
		middleware.ContextLogger(zap.L()),
	)

	// --- Routes ---
	api := router.Group("/api/v1")
	{
		leave.RegisterRoutes(api, leaveHandler, rdb)
	}

	return nil
}
