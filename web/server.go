package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/molly-mint-choco/email-dedup/web/handlers"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(queries handlers.ThreadQueries, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})

	server := &Server{
		router: router,
		logger: logger,
	}

	server.setupRoutes(queries)
	return server
}

func (s *Server) setupRoutes(queries handlers.ThreadQueries) {
	queryHandler := handlers.NewQueryHandler(queries, s.logger)

	emails := s.router.Group("/emails")
	emails.GET("/document/:file_name/canonical-id", queryHandler.GetCanonicalID)
	emails.GET("/canonical-thread/:cano_id/documents", queryHandler.GetDocuments)
	emails.GET("/canonical-thread/:cano_id/children", queryHandler.GetChildren)
	emails.GET("/canonical-thread/:cano_id/parent", queryHandler.GetParent)
	emails.GET("/canonical-thread/:cano_id/upstream", queryHandler.GetUpstreamChain)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	return srv.Shutdown(context.Background())
}
