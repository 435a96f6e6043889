// Package server exposes session controllers over a small JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ragchat/internal/domain"
	"ragchat/internal/session"
)

const (
	// SessionHeader carries the session id in requests and responses.
	SessionHeader = "X-Session-ID"
	sessionCookie = "ragchat_session"
	controllerKey = "controller"
	sessionKey    = "session_id"
)

// Options configures the HTTP API.
type Options struct {
	MaxUploadBytes int64
	CORSOrigins    []string
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// Server routes API requests to one controller per session.
type Server struct {
	sessions *session.Manager
	opts     Options
	log      *slog.Logger
	router   *gin.Engine
}

func New(sessions *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	s := &Server{sessions: sessions, opts: opts, log: opts.Logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if len(s.opts.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		if len(s.opts.CORSOrigins) == 1 && s.opts.CORSOrigins[0] == "*" {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = s.opts.CORSOrigins
			cfg.AllowCredentials = true
		}
		cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", SessionHeader}
		cfg.ExposeHeaders = []string{SessionHeader}
		r.Use(cors.New(cfg))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "sessions": s.sessions.Len(), "timestamp": time.Now()})
	})

	api := r.Group("/api")
	api.Use(s.withSession())
	api.POST("/sources", s.loadSource)
	api.POST("/ask", s.ask)
	api.GET("/session", s.sessionInfo)
	api.DELETE("/session", s.resetSession)
	return r
}

// Run serves on addr until ctx is cancelled, evicting idle sessions meanwhile.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.sessions.Run(ctx, s.opts.SessionTTL/2)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id, _ = c.Cookie(sessionCookie)
		}
		id, ctrl := s.sessions.Get(id)
		c.Set(sessionKey, id)
		c.Set(controllerKey, ctrl)
		c.Header(SessionHeader, id)
		c.SetCookie(sessionCookie, id, int(s.opts.SessionTTL.Seconds()), "/", "", false, true)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"session", c.GetString(sessionKey),
			"duration", time.Since(start))
	}
}

func controllerFrom(c *gin.Context) *session.Controller {
	return c.MustGet(controllerKey).(*session.Controller)
}

type loadRequest struct {
	Type  string `json:"type" form:"type"`
	Param string `json:"param" form:"param"`
}

type reportResponse struct {
	Source    string    `json:"source"`
	Param     string    `json:"param"`
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Summary   string    `json:"summary"`
	Preview   string    `json:"preview"`
	Embedder  string    `json:"embedder"`
	LoadedAt  time.Time `json:"loaded_at"`
	TookMS    int64     `json:"took_ms"`
}

func toReportResponse(r session.Report) reportResponse {
	return reportResponse{
		Source:    r.Source.String(),
		Param:     r.Param,
		Documents: r.Documents,
		Chunks:    r.Chunks,
		Summary:   r.Summary,
		Preview:   r.Preview,
		Embedder:  r.Embedder,
		LoadedAt:  r.LoadedAt,
		TookMS:    r.Duration.Milliseconds(),
	}
}

func (s *Server) loadSource(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	var body loadRequest
	if err := c.ShouldBind(&body); err != nil {
		s.respondError(c, domain.Errorf(domain.KindInvalidInput, "request", "malformed body: %w", err))
		return
	}
	st, err := domain.ParseSourceType(body.Type)
	if err != nil {
		s.respondError(c, domain.NewError(domain.KindInvalidInput, "source type", err))
		return
	}
	req := domain.LoadRequest{Type: st, Param: body.Param}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		switch {
		case err == nil:
			f, err := fh.Open()
			if err != nil {
				s.respondError(c, domain.NewError(domain.KindInvalidInput, "upload", err))
				return
			}
			defer f.Close()
			req.Data = f
			req.Name = fh.Filename
		case !errors.Is(err, http.ErrMissingFile):
			s.respondError(c, domain.NewError(domain.KindInvalidInput, "upload", err))
			return
		}
	}
	switch {
	case req.Data != nil && st != domain.SourcePDF:
		s.respondError(c, domain.Errorf(domain.KindInvalidInput, "upload", "file uploads are only accepted for PDF sources"))
		return
	case req.Data == nil && st == domain.SourcePDF:
		s.respondError(c, domain.Errorf(domain.KindInvalidInput, "upload", "PDF sources must be uploaded as a multipart file"))
		return
	}

	report, err := controllerFrom(c).LoadSource(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReportResponse(report))
}

type askRequest struct {
	Question string `json:"question"`
}

type sourceChunk struct {
	Index    int               `json:"index"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) ask(c *gin.Context) {
	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.respondError(c, domain.Errorf(domain.KindInvalidInput, "request", "malformed body: %w", err))
		return
	}
	ans, err := controllerFrom(c).Ask(c.Request.Context(), body.Question)
	if err != nil {
		s.respondError(c, err)
		return
	}
	sources := make([]sourceChunk, len(ans.Sources))
	for i, ch := range ans.Sources {
		sources[i] = sourceChunk{Index: ch.Index, Content: ch.Content, Metadata: ch.Metadata}
	}
	c.JSON(http.StatusOK, gin.H{"answer": ans.Text, "sources": sources})
}

func (s *Server) sessionInfo(c *gin.Context) {
	state, r := controllerFrom(c).Snapshot()
	out := gin.H{"session_id": c.GetString(sessionKey), "state": state.String()}
	if r != nil {
		out["source"] = toReportResponse(*r)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) resetSession(c *gin.Context) {
	ctrl := controllerFrom(c)
	ctrl.Reset()
	c.JSON(http.StatusOK, gin.H{"session_id": c.GetString(sessionKey), "state": ctrl.State().String()})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotReady:
		return http.StatusConflict
	case domain.KindEmptySource:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindSourceUnavailable:
		return http.StatusBadGateway
	case domain.KindIndexBuildFailure, domain.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	code := kind.String()
	message := domain.UserMessage(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status, code = http.StatusRequestEntityTooLarge, "request_too_large"
		message = fmt.Sprintf("The request body is larger than the %s limit.", formatBytes(tooLarge.Limit))
	}
	if status >= 500 {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{
		"error_code": code,
		"message":    message,
	})
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
