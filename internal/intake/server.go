// Package intake is the local HTTP surface the screen scraper delivers
// captures to. The scraper runs its own platform parsers; each POST carries
// the raw window text plus the parsed message list.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bowerhall/recall/internal/capture"
	"github.com/bowerhall/recall/internal/logger"
	"github.com/bowerhall/recall/internal/pipeline"
	"github.com/bowerhall/recall/internal/retrieval"
	"github.com/bowerhall/recall/internal/status"
	"github.com/bowerhall/recall/internal/store"
)

const maxBodySize = 4 << 20 // raw window text, parsed messages

type Server struct {
	pipe   *pipeline.Pipeline
	engine *retrieval.Engine
	store  *store.Store
	http   *http.Server
}

type captureRequest struct {
	ID       string        `json:"id"`
	AppName  string        `json:"app_name"`
	Title    string        `json:"title"`
	RawText  string        `json:"raw_text"`
	Messages []messageBody `json:"messages"`
}

type messageBody struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type noteRequest struct {
	Text    string `json:"text"`
	AppName string `json:"app_name"`
}

func NewServer(addr string, pipe *pipeline.Pipeline, engine *retrieval.Engine, st *store.Store) *Server {
	s := &Server{pipe: pipe, engine: engine, store: st}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /capture", s.handleCapture)
	mux.HandleFunc("POST /note", s.handleNote)
	mux.HandleFunc("POST /reprocess", s.handleReprocess)
	mux.HandleFunc("DELETE /memory/{id}", s.handleForgetMemory)
	mux.HandleFunc("DELETE /conversation/{id}", s.handleForgetConversation)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start serves until the listener is closed via Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}

	logger.Info("intake listening", "addr", s.http.Addr)

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AppName == "" {
		httpError(w, http.StatusBadRequest, "app_name is required")
		return
	}

	parsed := make([]store.NewMessage, len(req.Messages))
	for i, m := range req.Messages {
		parsed[i] = store.NewMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}

	inserted, err := s.pipe.HandleCapture(r.Context(), capture.Capture{
		ID:      req.ID,
		AppName: req.AppName,
		Title:   req.Title,
		RawText: req.RawText,
	}, parsed)
	if err != nil {
		logger.Error("capture failed", "app", req.AppName, "error", err)
		httpError(w, http.StatusInternalServerError, "capture failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"inserted": inserted})
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := s.pipe.RememberNote(r.Context(), req.Text, req.AppName)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": m.ID})
}

// handleReprocess kicks off a bulk re-derivation in the background; progress
// flows through the notifier.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	clean := r.URL.Query().Get("clean") == "true"

	go func() {
		if err := s.pipe.Reprocess(context.Background(), clean); err != nil {
			logger.Error("reprocess failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true, "clean": clean})
}

func (s *Server) handleForgetMemory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	if err := s.pipe.Forget(id); err != nil {
		logger.Error("forget memory failed", "id", id, "error", err)
		httpError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleForgetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		httpError(w, http.StatusBadRequest, "session id is required")
		return
	}

	if err := s.pipe.ForgetConversation(sessionID); err != nil {
		logger.Error("forget conversation failed", "session", sessionID, "error", err)
		httpError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": sessionID})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		httpError(w, http.StatusBadRequest, "q is required")
		return
	}
	appName := r.URL.Query().Get("app")

	answer := r.URL.Query().Get("answer") == "true"
	if !answer {
		writeJSON(w, http.StatusOK, s.engine.Search(r.Context(), query, appName))
		return
	}

	result, err := s.engine.Answer(r.Context(), query, appName, nil)
	if err != nil {
		logger.Error("answer failed", "error", err)
		httpError(w, http.StatusBadGateway, "answer failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.Collect(s.store))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
