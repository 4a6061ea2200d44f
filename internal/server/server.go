package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"AOTF-backend/internal/config"
	"AOTF-backend/internal/database"
	"AOTF-backend/internal/matching"
)

// MyServer holds what the route handlers need
type MyServer struct {
	Config *config.Config
	DB     *database.DBinstanceStruct
	Engine *matching.Engine
	Logger *zap.Logger

	// RateLimit is installed in front of every route; nil disables rate limiting
	RateLimit gin.HandlerFunc
}

// NewServer construct new http.Server serving the API on the configured port
func NewServer(s *MyServer) *http.Server {
	writeTimeout := 30 * time.Second
	if s.Config.RequestTimeout+5*time.Second > writeTimeout {
		writeTimeout = s.Config.RequestTimeout + 5*time.Second
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Config.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
	}

	return server
}
