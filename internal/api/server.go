package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"golang.org/x/net/netutil"

	"mod-gobot/internal/bot"
	"mod-gobot/internal/config"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/sanitize"
	"mod-gobot/internal/storage"
)

const (
	maxConnections = 32
	maxBodyBytes   = 64 << 10
)

// Backend is the part of the bot the API exposes
type Backend interface {
	Status() bot.Status
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Store is the read side of group storage
type Store interface {
	ListGroups() ([]storage.Group, error)
	AuditLog(groupID int64) ([]storage.AuditEntry, error)
}

// APIServer handles HTTP API requests
type APIServer struct {
	config  config.APIConfig
	backend Backend
	store   Store
	server  *http.Server
	uptime  time.Time
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg config.APIConfig, backend Backend, store Store) *APIServer {
	return &APIServer{
		config:  cfg,
		backend: backend,
		store:   store,
		uptime:  time.Now(),
	}
}

// Handler returns the routed handler with middleware applied
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/groups", s.handleGroups)
	mux.HandleFunc("/api/audit", s.handleAudit)
	mux.HandleFunc("/api/send", s.handleSend)

	handler := loggingMiddleware(mux)
	handler = corsMiddleware(handler)
	handler = authMiddleware(s.config.APIKey)(handler)
	return handler
}

// Start listens on the configured port until ctx is done
func (s *APIServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done
func (s *APIServer) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on %s", ln.Addr())
		if err := s.server.Serve(netutil.LimitListener(ln, maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}

// Stop gracefully shuts down the HTTP server
func (s *APIServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	logger.Infof("Stopping API server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// handleHealth returns service health status
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.uptime).Round(time.Second).String(),
	})
}

// handleStatus returns bot status information
func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.backend == nil {
		writeJSONError(w, "Bot not available", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, s.backend.Status())
}

// GroupView is a tracked group as returned by /api/groups
type GroupView struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	ControlChannelID int64   `json:"control_channel_id,omitzero"`
	WelcomeEnabled   bool    `json:"welcome_enabled"`
	HasRules         bool    `json:"has_rules"`
	RelatedChats     []int64 `json:"related_chats,omitempty"`
}

func (s *APIServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSONError(w, "Storage not available", http.StatusServiceUnavailable)
		return
	}

	groups, err := s.store.ListGroups()
	if err != nil {
		logger.Errorf("API: list groups: %v", err)
		writeJSONError(w, "Failed to list groups", http.StatusInternalServerError)
		return
	}

	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, GroupView{
			ID:               g.ID,
			Title:            g.Title,
			ControlChannelID: g.ControlChannelID,
			WelcomeEnabled:   g.WelcomeEnabled,
			HasRules:         g.Rules != "",
			RelatedChats:     g.RelatedChats,
		})
	}
	writeJSON(w, map[string]any{"groups": views})
}

func (s *APIServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groupID, err := strconv.ParseInt(r.URL.Query().Get("group_id"), 10, 64)
	if err != nil || groupID == 0 {
		writeJSONError(w, "group_id is required", http.StatusBadRequest)
		return
	}
	if s.store == nil {
		writeJSONError(w, "Storage not available", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.store.AuditLog(groupID)
	if errors.Is(err, storage.ErrGroupNotFound) {
		writeJSONError(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("API: audit log of %d: %v", groupID, err)
		writeJSONError(w, "Failed to read audit log", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	writeJSON(w, map[string]any{"group_id": groupID, "entries": entries})
}

// SendRequest represents a message send request
type SendRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// handleSend sends a message to a specific chat
func (s *APIServer) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SendRequest
	if err := json.UnmarshalRead(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ChatID == 0 {
		writeJSONError(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	text := sanitize.UserText(req.Text)
	if text == "" {
		writeJSONError(w, "text is required", http.StatusBadRequest)
		return
	}

	if s.backend == nil {
		writeJSONError(w, "Bot not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.backend.SendMessage(r.Context(), req.ChatID, text); err != nil {
		logger.Warnf("API: send to %d: %v", req.ChatID, err)
		writeJSONError(w, fmt.Sprintf("Failed to send message: %v", err), http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"message": "Message sent successfully",
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.MarshalWrite(w, data); err != nil {
		logger.Warnf("API: encode response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.MarshalWrite(w, map[string]any{"error": message})
}
