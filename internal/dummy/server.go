// Package dummy runs a local imitation of the vendor's token, UI-router and
// transaction endpoints so a sweep can be exercised without a real server.
package dummy

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Mode selects how the transaction endpoint behaves.
type Mode string

// Modes.
const (
	// ModeHealthy accepts every transaction.
	ModeHealthy Mode = "healthy"
	// ModeContaminated fails every second transaction with an unexpected
	// response window, like a pooled session with a dialog left open.
	ModeContaminated Mode = "contaminated"
	// ModeFlaky fails at random: 20% HTTP 500, 10% validation rejections.
	ModeFlaky Mode = "flaky"
	// ModeReject answers 200 but rejects every record.
	ModeReject Mode = "reject"
)

// Paths served.
const (
	TokenPath       = "/api/security/token"
	TokenV2Path     = "/api/security/token/v2"
	RouterPath      = "/api/ui/router/v1"
	UIServerPrefix  = "/uiserver0"
	TransactionPath = UIServerPrefix + "/api/v2/transaction"
)

// UnexpectedWindowBody mimics the vendor error raised on a dirty session.
const UnexpectedWindowBody = `{"ErrorMessage":"Unexpected response window: Price Page Maintenance - confirm save","ErrorType":"P21.UI.Service.Model.ResponseWindowException"}`

// ServerConfig configures the fake server.
type ServerConfig struct {
	Port int
	Mode Mode
	// Username and Password are required on the token endpoint when set.
	Username string
	Password string
	// Latency is added to every transaction.
	Latency time.Duration
	// Seed makes ModeFlaky reproducible. Zero uses the clock.
	Seed int64
}

// Server is the fake vendor. Handler may be mounted on an httptest.Server.
type Server struct {
	cfg          ServerConfig
	transactions atomic.Uint64
	tokens       sync.Map

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewServer builds a Server. An empty mode means healthy.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Mode == "" {
		cfg.Mode = ModeHealthy
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Server{cfg: cfg, rnd: rand.New(rand.NewSource(seed))} //nolint:gosec // test traffic only
}

// Transactions returns how many transaction submissions were received.
func (s *Server) Transactions() uint64 {
	return s.transactions.Load()
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, s.handleToken)
	mux.HandleFunc(TokenV2Path, s.handleTokenV2)
	mux.HandleFunc(RouterPath, s.handleRouter)
	mux.HandleFunc(TransactionPath, s.handleTransaction)
	return mux
}

// Start listens on cfg.Port in the background and returns the server for shutdown.
func Start(cfg ServerConfig) *http.Server {
	s := NewServer(cfg)
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Fake vendor running on http://localhost%s (mode: %s)\n", addr, s.cfg.Mode)
	fmt.Printf("   Endpoints: %s, %s, %s, %s\n", TokenPath, TokenV2Path, RouterPath, TransactionPath)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed: %v\n", err)
		}
	}()
	return server
}

// Shutdown stops a server returned by Start.
func Shutdown(ctx context.Context, server *http.Server) error {
	return server.Shutdown(ctx)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := r.Header.Get("username")
	secret := r.Header.Get("password")
	if key := r.Header.Get("appkey"); key != "" {
		secret = key
	}
	s.issueToken(w, user, secret)
}

func (s *Server) handleTokenV2(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		ClientSecret string `json:"ClientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	secret := body.Password
	if body.ClientSecret != "" {
		secret = body.ClientSecret
	}
	s.issueToken(w, body.Username, secret)
}

func (s *Server) issueToken(w http.ResponseWriter, user, secret string) {
	if s.cfg.Username != "" && (user != s.cfg.Username || secret != s.cfg.Password) {
		http.Error(w, `{"ErrorMessage":"Invalid credentials"}`, http.StatusUnauthorized)
		return
	}
	token := "dummy-" + uuid.NewString()
	s.tokens.Store(token, struct{}{})
	writeJSON(w, http.StatusOK, map[string]any{
		"AccessToken":      token,
		"RefreshToken":     uuid.NewString(),
		"ExpiresInSeconds": 3600,
		"TokenType":        "Bearer",
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	_, ok := s.tokens.Load(token)
	return ok
}

func (s *Server) handleRouter(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"Url": "http://" + r.Host + UIServerPrefix + "/",
	})
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	n := s.transactions.Add(1)

	var set struct {
		Name         string            `json:"Name"`
		Transactions []json.RawMessage `json:"Transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil || set.Name == "" {
		http.Error(w, `{"ErrorMessage":"Malformed transaction set"}`, http.StatusBadRequest)
		return
	}

	if s.cfg.Latency > 0 {
		select {
		case <-time.After(s.cfg.Latency):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("X-P21-Instance", fmt.Sprintf("uiserver0-worker-%d", n%4))
	w.Header().Set("X-Session-Id", fmt.Sprintf("pool-%d", n%4))

	switch s.outcome(n) {
	case outcomeWindow:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(UnexpectedWindowBody))
	case outcomeServerError:
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	case outcomeReject:
		writeJSON(w, http.StatusOK, map[string]any{
			"Summary":  map[string]int{"Succeeded": 0, "Failed": len(set.Transactions)},
			"Messages": []string{"Supplier ID 10 is not valid for company ACME"},
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"Summary":  map[string]int{"Succeeded": len(set.Transactions), "Failed": 0},
			"Messages": []string{},
			"Results":  map[string]any{"Name": set.Name, "Transactions": set.Transactions},
		})
	}
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeWindow
	outcomeServerError
	outcomeReject
)

func (s *Server) outcome(n uint64) outcome {
	switch s.cfg.Mode {
	case ModeContaminated:
		if n%2 == 0 {
			return outcomeWindow
		}
	case ModeReject:
		return outcomeReject
	case ModeFlaky:
		s.mu.Lock()
		f := s.rnd.Float64()
		s.mu.Unlock()
		switch {
		case f < 0.2:
			return outcomeServerError
		case f < 0.3:
			return outcomeReject
		}
	}
	return outcomeOK
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
