// Package health exposes the health, readiness and metrics endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solverhq/solana-settler/pkg/balance"
	"github.com/solverhq/solana-settler/pkg/circuitbreaker"
	"github.com/solverhq/solana-settler/pkg/ledger"
	"github.com/solverhq/solana-settler/pkg/logger"
)

// Server represents a health check HTTP server
type Server struct {
	port            string
	ledger          ledger.Client
	oracle          *balance.Oracle
	solver          solana.PublicKey
	referenceMint   solana.PublicKey
	circuitBreakers map[string]*circuitbreaker.CircuitBreaker
	metricsAPIKey   string
	logger          logger.Logger
}

// NewServer creates a new health check server
func NewServer(
	port string,
	ledgerClient ledger.Client,
	oracle *balance.Oracle,
	solver, referenceMint solana.PublicKey,
	circuitBreakers map[string]*circuitbreaker.CircuitBreaker,
	log logger.Logger,
) *Server {
	return &Server{
		port:            port,
		ledger:          ledgerClient,
		oracle:          oracle,
		solver:          solver,
		referenceMint:   referenceMint,
		circuitBreakers: circuitBreakers,
		metricsAPIKey:   os.Getenv("METRICS_API_KEY"),
		logger:          log,
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the health check server
func (s *Server) Start() {
	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check: the RPC node must answer its health probe
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.ledger.GetHealth(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("RPC node unhealthy: " + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	// Solver status endpoint
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"solver": s.solver.String(),
		}

		rpcHealthy := true
		if _, err := s.ledger.GetHealth(r.Context()); err != nil {
			rpcHealthy = false
		}
		status["rpc_healthy"] = rpcHealthy

		circuits := make(map[string]string)
		for chain, cb := range s.circuitBreakers {
			state := "closed"
			if cb.IsOpen() {
				state = "open"
			}
			circuits[chain] = state
		}
		status["circuits"] = circuits

		if bal, err := s.oracle.GetBalance(r.Context(), s.solver, s.referenceMint); err == nil {
			status["reference_balance"] = bal.String()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.Error("Error encoding status JSON: %v", err)
		}
	})

	// Circuit breaker admin control endpoint
	http.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		chain := r.URL.Query().Get("chain")
		if chain == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Missing chain parameter"))
			return
		}

		cb, ok := s.circuitBreakers[chain]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("No circuit breaker for chain " + chain))
			return
		}

		cb.Reset()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Circuit breaker for chain " + chain + " reset"))
	})

	// Expose Prometheus metrics with API key authentication
	http.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	s.logger.Info("Starting health and metrics server on port %s", s.port)
	if err := http.ListenAndServe(":"+s.port, nil); err != nil {
		s.logger.Error("Health server error: %v", err)
	}
}
