// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"postmedia/pkg/config"
	errs "postmedia/pkg/errors"
	"postmedia/pkg/logger"
	"postmedia/pkg/normalize"
	"postmedia/pkg/ratelimit"
	"postmedia/pkg/resolver"
)

const requestIDHeader = "X-Request-ID"

// MediaResolver is the part of resolver.Resolver the server needs.
type MediaResolver interface {
	Resolve(ctx context.Context, rawURL string) resolver.Result
}

type Server struct {
	resolver       MediaResolver
	clients        *ratelimit.Keyed
	addr           string
	trustedProxies []string
	logger         logger.Logger
}

func NewServer(res MediaResolver, cfg config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	rpm := cfg.RequestsPerMinute
	return &Server{
		resolver: res,
		clients: ratelimit.NewKeyed(func() ratelimit.Limiter {
			if rpm <= 0 {
				return ratelimit.Unlimited{}
			}
			return ratelimit.NewTokenBucket(rpm, time.Minute)
		}, ratelimit.WithMaxKeys(cfg.MaxClients)),
		addr:           cfg.Addr,
		trustedProxies: cfg.TrustedProxies,
		logger:         log,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	// ClientIP keys the throttle, so forwarded headers count only from
	// configured proxies.
	if err := r.SetTrustedProxies(s.trustedProxies); err != nil {
		s.logger.WithError(err).Warn("ignoring invalid trusted proxies")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), s.requestID, s.accessLog)

	r.GET("/healthz", s.Health)
	r.POST("/resolve", s.throttle, s.Resolve)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("server listening", map[string]interface{}{"addr": s.addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

type ResolveRequest struct {
	URL string `json:"url" binding:"required"`
}

type MediaItem struct {
	URL     string `json:"url"`
	DataURI bool   `json:"dataUri"`
}

type ResolveResponse struct {
	Result    string      `json:"result"`
	RequestID string      `json:"requestId"`
	URL       string      `json:"url"`
	Strategy  string      `json:"strategy,omitempty"`
	Media     []MediaItem `json:"media,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Resolve(c *gin.Context) {
	requestID := c.GetString("requestId")

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ResolveResponse{
			Result:    "failed",
			RequestID: requestID,
			Reason:    "invalid_request",
			Error:     "request body must be JSON with a url field",
		})
		return
	}

	result := s.resolver.Resolve(c.Request.Context(), req.URL)
	if result.Empty() {
		c.JSON(http.StatusUnprocessableEntity, ResolveResponse{
			Result:    "failed",
			RequestID: requestID,
			URL:       req.URL,
			Reason:    "no_media",
			Error:     errs.ErrNoMedia.Error(),
		})
		return
	}

	media := make([]MediaItem, 0, len(result.URLs))
	for _, u := range result.URLs {
		media = append(media, MediaItem{URL: u, DataURI: normalize.IsDataURI(u)})
	}
	c.JSON(http.StatusOK, ResolveResponse{
		Result:    "resolved",
		RequestID: requestID,
		URL:       req.URL,
		Strategy:  result.Strategy,
		Media:     media,
	})
}

func (s *Server) throttle(c *gin.Context) {
	if s.clients.Allow(c.ClientIP()) {
		c.Next()
		return
	}
	s.logger.WarnWithFields("client throttled", map[string]interface{}{
		"client":     c.ClientIP(),
		"request_id": c.GetString("requestId"),
	})
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ResolveResponse{
		Result:    "failed",
		RequestID: c.GetString("requestId"),
		Reason:    "rate_limited",
	})
}

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.Set("requestId", id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.InfoWithFields("request handled", map[string]interface{}{
		"method":     c.Request.Method,
		"path":       c.FullPath(),
		"status":     c.Writer.Status(),
		"duration":   time.Since(start),
		"request_id": c.GetString("requestId"),
	})
}
