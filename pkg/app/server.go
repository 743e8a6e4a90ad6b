package app

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/slacklet/slacklet/pkg/logger"
	"github.com/slacklet/slacklet/pkg/payload"
	"github.com/slacklet/slacklet/pkg/store"
)

// Server is the HTTP front of the platform.
type Server struct {
	coord  *Coordinator
	server *http.Server
}

// NewServer creates the HTTP server around a coordinator.
func NewServer(coord *Coordinator) *Server {
	return &Server{coord: coord}
}

// Start listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /slack/install", s.coord.HandleInstall)
	mux.HandleFunc("POST /slack/receive", s.handleReceive)

	s.server = &http.Server{
		Addr:              s.coord.cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF(component, "http server listening", map[string]interface{}{
			"addr": s.coord.cfg.ListenAddr,
		})
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReceive parses the delivery and runs the synchronous phase,
// translating coordinator outcomes to HTTP.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	logger.DebugCF(component, "delivery state", map[string]interface{}{
		"state": StateReceived,
	})

	p, err := parseDelivery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := s.coord.Receive(r.Context(), p)
	switch {
	case errors.Is(err, ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case result.State == StateChallengeAnswered:
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, result.Challenge)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"scripts": result.Published,
		})
	}
}

// parseDelivery decodes the request body into a payload. Slash commands,
// outgoing webhooks and interactive messages arrive form-encoded; Events
// API deliveries arrive as JSON.
func parseDelivery(r *http.Request) (*payload.Payload, error) {
	contentType := r.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	switch {
	case contentType == "application/x-www-form-urlencoded" ||
		strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return payload.ParseForm(r.PostForm)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return payload.ParseJSON(body)
	}
}

// tokenValid does a constant-time comparison to prevent timing attacks.
func tokenValid(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorCF(component, "write response", map[string]interface{}{"error": err})
	}
}
