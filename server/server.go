// Package server exposes the question answering engine over HTTP and
// WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cinevec/cinevec/internal/models"
	"github.com/cinevec/cinevec/pkg/llm"
	"github.com/cinevec/cinevec/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Config struct {
	Host       string
	Port       int
	TopK       int
	Model      string
	Provider   string
	Dimensions int
	Table      string
}

// Engine answers questions from the catalog.
type Engine interface {
	Ask(ctx context.Context, question string, topK int) (*models.QueryResult, error)
}

// Counter reports how many chunks are indexed.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type Server struct {
	config  Config
	engine  Engine
	counter Counter
	logger  *zap.Logger
	http    *http.Server
}

func New(config Config, engine Engine, counter Counter, logger *zap.Logger) *Server {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:  config,
		engine:  engine,
		counter: counter,
		logger:  logger,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))

		r.Post("/api/v1/query", s.handleQuery)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/health", s.handleHealth)
	})

	// Long-lived connections stay outside the timeout group.
	r.Get("/ws", s.handleWebSocket)

	return r
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

type chunkPayload struct {
	SourceID string  `json:"source_id"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

type queryResponse struct {
	Answer string         `json:"answer"`
	Chunks []chunkPayload `json:"chunks"`
}

type statusResponse struct {
	Status     string `json:"status"`
	Chunks     int64  `json:"chunks"`
	Model      string `json:"model"`
	Provider   string `json:"provider"`
	Dimensions int    `json:"dimensions"`
	Table      string `json:"table"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = s.config.TopK
	}

	result, err := s.engine.Ask(r.Context(), req.Question, topK)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, queryResponse{
		Answer: result.Answer,
		Chunks: toChunkPayloads(result.Chunks),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.counter.Count(r.Context())
	if err != nil {
		s.logger.Error("status check failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, statusResponse{
		Status:     "ok",
		Chunks:     count,
		Model:      s.config.Model,
		Provider:   s.config.Provider,
		Dimensions: s.config.Dimensions,
		Table:      s.config.Table,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	TopK    int    `json:"top_k,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Info("websocket client connected", zap.String("remote", r.RemoteAddr))

	// Messages are handled one at a time; gorilla connections allow only a
	// single concurrent writer.
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		s.handleWSMessage(r.Context(), conn, msg)
	}
}

func (s *Server) handleWSMessage(ctx context.Context, conn *websocket.Conn, msg wsMessage) {
	switch msg.Type {
	case "query":
		if strings.TrimSpace(msg.Content) == "" {
			s.sendWS(conn, wsMessage{Type: "error", Content: "question is required"})
			return
		}
		topK := msg.TopK
		if topK == 0 {
			topK = s.config.TopK
		}

		s.sendWS(conn, wsMessage{Type: "status", Content: "searching the catalog"})

		result, err := s.engine.Ask(ctx, msg.Content, topK)
		if err != nil {
			s.logger.Error("websocket query failed", zap.Error(err))
			s.sendWS(conn, wsMessage{Type: "error", Content: err.Error()})
			return
		}
		s.sendWS(conn, wsMessage{
			Type:    "answer",
			Content: result.Answer,
			Data:    toChunkPayloads(result.Chunks),
		})

	case "ping":
		s.sendWS(conn, wsMessage{Type: "pong"})

	default:
		s.sendWS(conn, wsMessage{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// statusForError maps the error taxonomy onto HTTP statuses: model timeouts
// read as gateway timeouts, model failures as a bad gateway, storage
// failures as service unavailable.
func statusForError(err error) int {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrService):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toChunkPayloads(chunks []models.ScoredChunk) []chunkPayload {
	payloads := make([]chunkPayload, 0, len(chunks))
	for _, c := range chunks {
		payloads = append(payloads, chunkPayload{
			SourceID: c.SourceID,
			Title:    c.Title,
			Text:     c.Text,
			Score:    c.Score,
		})
	}
	return payloads
}
