package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/runconquer/territory-backend-go/internal/config"
	"github.com/runconquer/territory-backend-go/internal/handler"
	"github.com/runconquer/territory-backend-go/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, sessionUser string, territories *handler.TerritoryHandler, activities *handler.ActivityHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.RateLimit(120, time.Minute))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Territory Conquest API is running",
		})
	})

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret, sessionUser))
	{
		// 领地查询接口
		t := api.Group("/territories")
		{
			t.GET("", territories.GetRegion)
			t.GET("/activity/:id", territories.GetByActivity)
			t.GET("/at", territories.GetOwnerAt)
			t.GET("/lost", territories.GetLost)
			t.GET("/rivals", territories.GetRivals)
		}

		// 活动处理接口
		a := api.Group("/activities")
		{
			a.POST("", activities.ProcessActivities)
			a.GET("/pending", activities.GetPending)
			a.GET("/:id/score", activities.GetScore)
		}

		// 会话接口
		api.POST("/session/logout", activities.Logout)
	}

	return r
}
