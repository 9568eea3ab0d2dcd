package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/parloir/parloir/internal/handlers"
	"github.com/parloir/parloir/internal/middleware"
	"github.com/parloir/parloir/pkg/auth"
)

func APIEndpoints(r *gin.Engine, authH *handlers.AuthHandler, roomH *handlers.RoomHandler,
	gatewayH *handlers.GatewayHandler, jwtMgr *auth.JWTManager, rdb *redis.Client) {

	api := r.Group("/api")

	// Pre-session surface
	user := api.Group("/user")
	{
		user.GET("/usernamecheck/:username", authH.UsernameCheck)
		user.GET("/emailcheck", authH.EmailCheck)
		user.POST("/register", authH.Register)
		user.POST("/authenticate", authH.Authenticate)
		user.POST("/logout", authH.Logout)
	}

	// Room mirror for non-realtime clients
	room := api.Group("/room")
	room.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		room.POST("", roomH.CreateRoom)
		room.GET("/:id", roomH.GetRoom)
		room.POST("/:id/guests", roomH.AddGuest)
		room.DELETE("/:id/guests/:username", roomH.RemoveGuest)
		room.POST("/:id/whitelist", roomH.WhitelistGuest)
	}

	// Realtime transport; credential travels in the first frame
	r.GET("/ws", gatewayH.HandleWebSocket)
}
