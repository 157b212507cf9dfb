package main

import (
	"github.com/gin-gonic/gin"

	"chatapi/config"
	"chatapi/database"
	"chatapi/handlers"
	"chatapi/logger"
	"chatapi/middleware"
	"chatapi/store"
	"chatapi/websocket"
)

func main() {
	config.Load()
	logger.Init(config.Cfg.Environment)

	if err := database.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.CreateTables(); err != nil {
		logger.Fatal().Err(err).Msg("failed to create tables")
	}

	hub := websocket.NewHub()
	gateway := websocket.NewGateway(hub, store.New(database.DB))

	if config.Cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := r.Group("/api/auth")
	auth.Use(middleware.RateLimitMiddleware(middleware.AuthLimiter))
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
	}

	users := r.Group("/api/users")
	users.Use(middleware.AuthMiddleware())
	{
		users.GET("/me", handlers.GetCurrentUser)
		users.PUT("/me", handlers.UpdateCurrentUser)
		users.GET("/search", handlers.SearchUsers)
	}

	friends := r.Group("/api/friends")
	friends.Use(middleware.AuthMiddleware())
	{
		friends.GET("", handlers.GetFriends)
		friends.GET("/requests", handlers.GetPendingFriendRequests)
		friends.POST("/request", handlers.SendFriendRequest)
		friends.POST("/accept/:id", handlers.AcceptFriendRequest)
		friends.POST("/decline/:id", handlers.DeclineFriendRequest)
		friends.DELETE("/:user_id", handlers.RemoveFriend)
	}

	groups := r.Group("/api/groups")
	groups.Use(middleware.AuthMiddleware())
	{
		groups.GET("", handlers.GetGroups)
		groups.POST("", handlers.CreateGroup)
		groups.GET("/search", handlers.SearchGroups)
		groups.GET("/:id", handlers.GetGroup)
		groups.PUT("/:id", handlers.UpdateGroup)
		groups.DELETE("/:id", handlers.DeleteGroup)

		groups.GET("/:id/members", handlers.GetGroupMembers)
		groups.POST("/:id/members", handlers.AddGroupMember)
		groups.DELETE("/:id/members/:user_id", handlers.RemoveGroupMember)
		groups.POST("/:id/join", handlers.JoinGroup)
		groups.POST("/:id/leave", handlers.LeaveGroup)

		groups.GET("/:id/messages", handlers.GetGroupMessages)
		groups.POST("/:id/messages", handlers.SendGroupMessage)
	}

	messages := r.Group("/api/messages")
	messages.Use(middleware.AuthMiddleware())
	{
		messages.POST("", handlers.SendMessage)
		messages.GET("/inbox", handlers.GetInbox)
		messages.GET("/chat/:user_id", handlers.GetChatHistory)
	}

	r.GET("/ws/chat/:friend_id", gateway.HandleChat)
	r.GET("/ws/group/:group_id", gateway.HandleGroup)

	logger.Info().Str("addr", config.Cfg.ServerAddr).Msg("server starting")
	if err := r.Run(config.Cfg.ServerAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
