package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flitsinc/go-bridge/internal/exchangelog"
	"github.com/flitsinc/go-bridge/internal/idgen"
	"github.com/flitsinc/go-bridge/internal/ledger"
	"github.com/flitsinc/go-bridge/internal/ready"
	"github.com/flitsinc/go-bridge/internal/schema"
	"github.com/flitsinc/go-bridge/internal/submission"
	"github.com/flitsinc/go-bridge/internal/surface"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultReadyTimeout = 10 * time.Second
)

// Server is the bridge endpoint: it accepts agent questions over loopback
// HTTP, parks each one in the ledger, and writes the terminal answer exactly
// once when a resolution path fires.
type Server struct {
	Ledger    *ledger.Ledger
	Hub       *surface.Hub
	Ready     *ready.Latch
	Assembler *submission.Assembler
	Log       *exchangelog.Store // optional exchange diagnostics

	Port                  int
	DefaultTimeoutMinutes float64
	ReadyTimeout          time.Duration
	MaxBodyBytes          int64
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/request", s.handleRequest)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/surface/ws", s.handleSurfaceWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type requestPayload struct {
	Prompt    string `json:"prompt"`
	RequestID string `json:"requestId"`
	// A nil pointer means "use the configured default"; an explicit zero
	// disables the timeout entirely.
	TimeoutMinutes *float64 `json:"timeoutMinutes"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Errorf("read request body: %w", err))
		return
	}

	var payload requestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("prompt is required"))
		return
	}

	id := strings.TrimSpace(payload.RequestID)
	if id == "" {
		id = idgen.RequestID()
	}

	timeoutMinutes := s.DefaultTimeoutMinutes
	if payload.TimeoutMinutes != nil {
		timeoutMinutes = *payload.TimeoutMinutes
	}
	var timeout time.Duration
	if timeoutMinutes > 0 {
		timeout = time.Duration(timeoutMinutes * float64(time.Minute))
	}

	// Register before notifying the surface so an answer that arrives during
	// the readiness wait still finds its entry. Registration supersedes any
	// prior holder of the id.
	sink := ledger.NewSink()
	createdAt := time.Now()
	s.Ledger.Register(id, sink, timeout)

	if !s.Ready.WaitUntilReady(r.Context(), s.readyTimeout()) {
		// Optimistic continuation: a slow-but-working surface should not
		// strand the agent, so the prompt goes out anyway.
		log.Printf("api: surface not ready after %s, showing prompt for %s anyway", s.readyTimeout(), id)
	}
	s.Hub.Broadcast(schema.SurfaceMessage{
		Type:           schema.MsgShowPrompt,
		Prompt:         payload.Prompt,
		RequestID:      id,
		TimeoutMinutes: timeoutMinutes,
	})

	select {
	case ans := <-sink.Wait():
		s.record(id, payload.Prompt, ans, createdAt)
		writeAnswer(w, ans)
	case <-r.Context().Done():
		s.Ledger.Abandon(id)
	}
}

// DispatchSurfaceMessage routes an inbound surface message to the readiness
// latch or a resolution path. Wire it as the hub's OnMessage callback.
func (s *Server) DispatchSurfaceMessage(msg schema.SurfaceMessage) {
	switch msg.Type {
	case schema.MsgReady:
		s.Ready.Signal()
	case schema.MsgContinue:
		s.resolve(msg.RequestID, schema.Continue())
	case schema.MsgEnd:
		s.resolve(msg.RequestID, schema.End())
	case schema.MsgSubmit:
		s.resolve(msg.RequestID, s.Assembler.Assemble(msg.Text, msg.Images))
	default:
		log.Printf("api: unknown surface message type %q", msg.Type)
	}
}

func (s *Server) resolve(id string, ans schema.Answer) {
	if err := s.Ledger.Resolve(id, ans); err != nil {
		log.Printf("api: resolve %q: %v", id, err)
	}
}

func (s *Server) record(requestID, prompt string, ans schema.Answer, createdAt time.Time) {
	if s.Log == nil {
		return
	}
	// Recording happens after the exchange resolved; the request context may
	// already be gone.
	if err := s.Log.Record(context.Background(), requestID, prompt, ans, createdAt, time.Now()); err != nil {
		log.Printf("api: record exchange %s: %v", requestID, err)
	}
}

func (s *Server) maxBodyBytes() int64 {
	if s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (s *Server) readyTimeout() time.Duration {
	if s.ReadyTimeout > 0 {
		return s.ReadyTimeout
	}
	return defaultReadyTimeout
}

// writeAnswer writes the terminal JSON with an explicit byte length so the
// agent can rely on a fully framed response.
func writeAnswer(w http.ResponseWriter, ans schema.Answer) {
	data, err := json.Marshal(ans)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("encode answer: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}
