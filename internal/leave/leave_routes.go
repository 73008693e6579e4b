package leave

import (
	"hr-admin/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rdb *redis.Client,
) {
	leaves := r.Group("/leaves")
	leaves.Use(middleware.AuthMiddleware(), middleware.ExtractUserID())
	{
		leaves.POST("", handler.Create)
		leaves.GET("", handler.GetMine)
		leaves.GET("/balance", handler.GetBalance)

		admin := leaves.Group("")
		admin.Use(middleware.RoleMiddleware(middleware.RoleAdmin))
		{
			admin.GET("/all", handler.GetAll)
			admin.POST("/:id/decision", middleware.Idempotency(rdb), handler.Decide)
		}
	}
}
