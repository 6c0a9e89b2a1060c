// Package webchat serves a browser chat UI backed by one runner per session.
package webchat

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/runner"
)

//go:embed index.html
var indexHTML []byte

// CookieName holds the session id.
const CookieName = "chatloop_session"

// Apology is shown in place of an answer when the model call fails.
const Apology = "죄송합니다. 응답을 생성하는 중 오류가 발생했습니다. API 키를 확인해주세요."

const maxBodyBytes = 1 << 20

const (
	DefaultMaxSessions = 1000
	DefaultSessionTTL  = 30 * time.Minute
)

type session struct {
	runner *runner.Runner
	busy   atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithMaxSessions caps live sessions; the least recently used one is
// dropped when a new session would exceed n.
func WithMaxSessions(n int) Option { return func(s *Server) { s.maxSessions = n } }

// WithSessionTTL drops sessions that saw no request for d.
func WithSessionTTL(d time.Duration) Option { return func(s *Server) { s.ttl = d } }

// Server keeps sessions in memory; they are lost on restart or eviction.
type Server struct {
	newRunner   func() *runner.Runner
	maxSessions int
	ttl         time.Duration

	mu       sync.Mutex
	sessions *expirable.LRU[string, *session]
}

// NewServer returns a server that calls newRunner once per browser session.
func NewServer(newRunner func() *runner.Runner, opts ...Option) *Server {
	s := &Server{newRunner: newRunner, maxSessions: DefaultMaxSessions, ttl: DefaultSessionTTL}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = expirable.NewLRU[string, *session](s.maxSessions, nil, s.ttl)
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/system", s.handleSystem)
	return mux
}

// Sessions reports how many sessions exist.
func (s *Server) Sessions() int {
	return s.sessions.Len()
}

// session returns the caller's session, creating it and setting the cookie
// when the request carries none or an id that is unknown or evicted. Every
// hit re-adds the session so its idle timer restarts.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, err := r.Cookie(CookieName); err == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			s.sessions.Add(c.Value, sess)
			return sess
		}
	}
	id := uuid.NewString()
	sess := &session{runner: s.newRunner()}
	s.sessions.Add(id, sess)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Model        string              `json:"model"`
	SystemPrompt string              `json:"system_prompt"`
	MessageCount int                 `json:"message_count"`
	Turns        []conversation.Turn `json:"turns"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	turns := sess.runner.History()
	writeJSON(w, http.StatusOK, HistoryResponse{
		Model:        sess.runner.ModelName(),
		SystemPrompt: sess.runner.SystemPrompt(),
		MessageCount: len(turns),
		Turns:        turns,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is empty")
		return
	}
	if !sess.busy.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a reply is already in progress")
		return
	}
	defer sess.busy.Store(false)

	stream := newEventStream(w)
	w.WriteHeader(http.StatusOK)
	answer, err := sess.runner.AskStream(r.Context(), req.Message, func(text string) {
		_ = stream.send("delta", map[string]string{"text": text})
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "webchat: turn failed: %v\n", err)
		msg := Apology
		if errors.Is(err, runner.ErrToolRoundLimit) || errors.Is(err, runner.ErrContextBudget) {
			msg = err.Error()
		}
		_ = stream.send("error", map[string]string{"message": msg})
		return
	}
	_ = stream.send("done", map[string]string{"answer": answer})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess.busy.Load() {
		writeError(w, http.StatusConflict, "a reply is in progress")
		return
	}
	sess.runner.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type systemRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	var req systemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sess.busy.Load() {
		writeError(w, http.StatusConflict, "a reply is in progress")
		return
	}
	sess.runner.SetSystemPrompt(strings.TrimSpace(req.Prompt))
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
