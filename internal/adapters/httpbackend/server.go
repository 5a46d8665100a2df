package httpbackend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

type Server struct {
	secret string
	inv    *Invalidator
	log    *zap.Logger
	engine *gin.Engine
	srv    *http.Server
}

func New(secret string, inv *Invalidator, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{secret: secret, inv: inv, log: log.Named("webhook"), engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	s.engine.POST("/backend/webhook", s.handleWebhook)
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
		)
	}
}

func (s *Server) handleWebhook(c *gin.Context) {
	if !Authorized(c.GetHeader(SecretHeader), s.secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}
	ev, err := ParseEvent(body)
	if err == nil {
		err = s.inv.Apply(c.Request.Context(), ev)
	}
	switch {
	case errors.Is(err, ErrUnknownEvent):
		// eventos nuevos del backend no deberían reintentarse
		c.JSON(http.StatusAccepted, gin.H{"ok": true, "ignored": true})
	case errors.Is(err, ErrBadEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Warn("invalidate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache unavailable"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// Start bloquea hasta que el server se cierra.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	s.log.Info("🌐 HTTP listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
