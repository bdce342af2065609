package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/pathshala-ai/tutor-backend/internal/handlers"
  "github.com/pathshala-ai/tutor-backend/internal/middleware"
)

type RouterConfig struct {
  ExplainHandler     *handlers.ExplainHandler
  IdentityMiddleware *middleware.IdentityMiddleware
  AllowOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  origins := cfg.AllowOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:3000", "http://localhost:5174"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-ID"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.IdentityMiddleware.RequireIdentity())
  {
    api.POST("/:subject/:topic/:subtopic/explains", cfg.ExplainHandler.Explain)
  }

  return router
}
