package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/jb/internal/logging"
	"github.com/hpungsan/jb/internal/metrics"
	"github.com/hpungsan/jb/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the read-only journal viewer.
// Shutting it down ends open event streams.
func NewServer(sess *session.Session, version, bind string, port int) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(sess, version),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

// NewHandler builds the viewer's routes over sess.
func NewHandler(sess *session.Session, version string) http.Handler {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		logging.Named("web").Fatal("template sub-FS", zap.Error(err))
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		logging.Named("web").Fatal("static sub-FS", zap.Error(err))
	}

	h := &Handlers{
		sess:     sess,
		renderer: NewRenderer(templateSub, version),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/tree", http.StatusFound)
	})
	mux.HandleFunc("GET /tree", h.HandleTree)
	mux.HandleFunc("GET /entries/{id}", h.HandleEntry)
	mux.HandleFunc("GET /search", h.HandleSearch)
	mux.HandleFunc("GET /events", h.HandleEvents)
	mux.HandleFunc("GET /api/document", h.HandleDocument)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return logging.Middleware(securityHeaders(mux))
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves srv until ctx is done or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	log := logging.Named("web")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("journal viewer running", zap.String("url", "http://"+srv.Addr))
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
