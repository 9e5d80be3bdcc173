// Package api provides the HTTP and WebSocket surface of the keyboard bridge.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"sendkeys/internal/config"
	"sendkeys/internal/input"
	"sendkeys/internal/protocol"
)

// Server exposes an input.Controller to scripting clients
type Server struct {
	ctrl  input.Controller
	token string
	debug bool
	wsMgr *WSManager

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewServer creates a new API server
func NewServer(ctrl input.Controller, cfg config.APIConfig, debug bool) *Server {
	s := &Server{
		ctrl:  ctrl,
		token: cfg.Token,
		debug: debug,
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Handler returns the HTTP handler with auth and panic recovery applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/call", s.handleCall)
	for _, op := range protocol.Ops {
		mux.HandleFunc("/api/"+string(op), s.handleOp(op))
	}
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start listens on addr:port and serves until Shutdown is called
func (s *Server) Start(addr string, port int) error {
	listenAddr := net.JoinHostPort(addr, fmt.Sprintf("%d", port))
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", listenAddr, err)
		return err
	}

	srv := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	log.Printf("API: Listening on %s", ln.Addr())
	if s.token == "" && !isLoopback(addr) {
		log.Printf("Warning: API is reachable from the network without a token")
	}

	// This is blocking
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes WebSocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.debug {
			log.Printf("[DEBUG] API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		}

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleCall handles POST /api/call with a full protocol.Call body
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var call protocol.Call
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeResult(w, http.StatusBadRequest, protocol.Result{
			Error: fmt.Sprintf("malformed call: %v", err),
			Kind:  protocol.KindArgument,
		})
		return
	}

	res, status := s.dispatch(call)
	writeResult(w, status, res)
}

// handleOp handles POST /api/<op> with a {"args": [...]} body
func (s *Server) handleOp(op protocol.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			ID   uint64            `json:"id"`
			Args []json.RawMessage `json:"args"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeResult(w, http.StatusBadRequest, protocol.Result{
				Op:    op,
				Error: fmt.Sprintf("malformed call: %v", err),
				Kind:  protocol.KindArgument,
			})
			return
		}

		res, status := s.dispatch(protocol.Call{ID: body.ID, Op: op, Args: body.Args})
		writeResult(w, status, res)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeResult(w http.ResponseWriter, status int, res protocol.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

func isLoopback(addr string) bool {
	if addr == "localhost" {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}
