package handler

import (
	"smartbank/internal/config"
	"smartbank/internal/storage"
	"smartbank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// SetupRouter wires middlewares and routes. rdb may be nil, which disables
// the login rate limiter (used in tests).
func SetupRouter(store storage.Store, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(store, cfg)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", LoginRateLimitMiddleware(rdb, cfg.Business.LoginRateLimit), h.Login)
		}

		accounts := api.Group("/accounts")
		accounts.Use(AuthMiddleware(h.userService))
		{
			accounts.POST("", h.CreateAccount)
			accounts.GET("", h.ListAccounts)
			accounts.POST("/deposit", h.Deposit)
			accounts.POST("/withdraw", h.Withdraw)
			accounts.POST("/transfer", h.Transfer)
			accounts.GET("/:id/transactions", h.ListTransactions)
		}

		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(h.userService), AdminMiddleware())
		{
			admin.GET("/users", h.ListUsers)
			admin.GET("/users/:id", h.GetUser)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	return r
}
