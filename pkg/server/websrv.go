package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ashen-labs/luamod/pkg/command"
	"github.com/ashen-labs/luamod/pkg/events"
	"github.com/ashen-labs/luamod/pkg/player"
)

// WebServer provides the HTTP and WebSocket transport in front of the
// dispatch server: a REST API for one-shot command execution and registry
// inspection, plus a WebSocket console for interactive sessions.
type WebServer struct {
	srv       *Server
	auth      *AuthService
	httpSrv   *http.Server
	mux       *http.ServeMux
	rl        *rateLimiter
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewWebServer creates a web server bound to the dispatch server.
func NewWebServer(srv *Server) *WebServer {
	cfg := srv.Config()
	ws := &WebServer{
		srv:       srv,
		auth:      NewAuthService(srv.Accounts(), cfg.JWTSecret, cfg.JWTExpiry),
		mux:       http.NewServeMux(),
		rl:        newRateLimiter(cfg.LoginRateLimit),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	ws.registerRoutes(cfg)
	return ws
}

// Auth returns the auth service for external use.
func (ws *WebServer) Auth() *AuthService {
	return ws.auth
}

// registerRoutes sets up all HTTP routes.
func (ws *WebServer) registerRoutes(cfg *Config) {
	handler := corsMiddleware(cfg.CORSOrigins, ws.mux)
	ws.httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	// WebSocket console
	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)

	// Auth endpoints; login is rate limited to slow down guessing.
	ws.mux.Handle("POST /api/v1/login",
		rateLimitMiddleware(ws.rl, http.HandlerFunc(ws.handleLogin)))
	ws.mux.HandleFunc("POST /api/v1/refresh", ws.handleRefresh)

	// Registry listing needs no auth; execution and audit do.
	ws.mux.HandleFunc("GET /api/v1/commands", ws.handleCommands)
	ws.mux.Handle("POST /api/v1/run",
		authMiddleware(ws.auth, http.HandlerFunc(ws.handleRun)))
	ws.mux.Handle("GET /api/v1/audit",
		authMiddleware(ws.auth, http.HandlerFunc(ws.handleAudit)))

	ws.mux.HandleFunc("GET /health", ws.handleHealth)

	if m := ws.srv.Metrics(); m != nil {
		ws.mux.Handle("GET /metrics", m.Handler())
	}
}

// Start begins listening. Blocks until Stop is called.
func (ws *WebServer) Start() error {
	log.Printf("WEB: listening on %s", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the web server.
func (ws *WebServer) Stop(ctx context.Context) error {
	return ws.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// --- Auth Handlers ---

func (ws *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	token, claims, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"token":     token,
		"player_id": claims.PlayerID,
		"name":      claims.PlayerName,
		"authority": claims.Authority,
	})
}

func (ws *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
		return
	}
	newToken, err := ws.auth.RefreshToken(authHeader[7:])
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": newToken})
}

// --- Registry Listing ---

func (ws *WebServer) handleCommands(w http.ResponseWriter, r *http.Request) {
	type cmdEntry struct {
		Name      string `json:"name"`
		Usage     string `json:"usage"`
		Help      string `json:"help"`
		MinArgs   int    `json:"min_args"`
		MaxArgs   int    `json:"max_args"`
		Authority int    `json:"authority"`
		Protected bool   `json:"protected"`
		Suspended bool   `json:"suspended"`
	}

	var entries []cmdEntry
	ws.srv.Manager().Each(func(c *command.Command) {
		entries = append(entries, cmdEntry{
			Name:      c.Name(),
			Usage:     c.Info(),
			Help:      c.Help(),
			MinArgs:   c.MinArgs(),
			MaxArgs:   c.MaxArgs(),
			Authority: c.Authority(),
			Protected: c.Protected(),
			Suspended: c.Suspended(),
		})
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	writeJSON(w, map[string]any{
		"commands": entries,
		"count":    len(entries),
	})
}

// --- Command Execution ---

func (ws *WebServer) handleRun(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Command == "" {
		http.Error(w, `{"error":"command is required"}`, http.StatusBadRequest)
		return
	}

	result, output, err := ws.srv.RunAs(claims, req.Command)
	if err != nil {
		http.Error(w, `{"error":"dispatch unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]any{
		"result": result,
		"output": output,
	})
}

// --- Audit Trail ---

func (ws *WebServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	audit := ws.srv.Audit()
	if audit == nil {
		http.Error(w, `{"error":"audit log disabled"}`, http.StatusServiceUnavailable)
		return
	}

	n := ws.srv.Config().AuditLimit
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 {
			http.Error(w, `{"error":"invalid n parameter"}`, http.StatusBadRequest)
			return
		}
		n = v
	}

	entries, err := audit.Recent(n)
	if err != nil {
		log.Printf("WEB: audit query failed: %v", err)
		http.Error(w, `{"error":"audit query failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// --- Health ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"commands":       ws.srv.Manager().Count(),
		"players":        ws.srv.Pool().Count(),
	})
}

// --- WebSocket Console ---

// WSMessage is the JSON frame format for the WebSocket console.
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Command string         `json:"command,omitempty"`
	Code    int            `json:"code,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// handleWebSocket upgrades the connection, opens a pool session for the
// authenticated account and streams its events back as JSON frames.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = h[7:]
		}
	}
	claims, err := ws.auth.ValidateToken(token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WEB: websocket upgrade error: %v", err)
		return
	}

	pl, err := ws.srv.Session(claims)
	if err != nil {
		wc := &wsConn{conn: conn}
		wc.sendJSON(WSMessage{Type: "error", Text: err.Error()})
		conn.Close()
		return
	}

	wc := &wsConn{conn: conn}
	ws.srv.Bus().Subscribe(pl.ID(), wc)

	wc.sendJSON(WSMessage{Type: "login", Data: map[string]any{
		"player_id": pl.ID(),
		"name":      pl.Name(),
		"authority": pl.Authority(),
	}})

	go ws.wsReadLoop(pl, wc)
}

// wsConn holds the WebSocket connection and its write mutex. It doubles as
// the bus subscriber for the session, so once the read loop exits the bus
// cleanup sweep drops it.
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.closed {
		return
	}
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}

// Receive implements events.Subscriber.
func (wc *wsConn) Receive(ev events.Event) {
	wc.sendJSON(WSMessage{
		Type:    ev.Type.String(),
		Text:    ev.Text,
		Command: ev.Command,
		Code:    ev.Code,
		Data:    ev.Data,
	})
}

// Closed implements events.Subscriber.
func (wc *wsConn) Closed() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.closed
}

func (wc *wsConn) markClosed() {
	wc.mu.Lock()
	wc.closed = true
	wc.mu.Unlock()
}

func (ws *WebServer) wsReadLoop(pl *player.Player, wc *wsConn) {
	defer func() {
		wc.markClosed()
		ws.srv.Bus().Unsubscribe(pl.ID(), wc)
		ws.srv.Pool().Disconnect(pl.ID())
		wc.conn.Close()
		log.Printf("WEB: [%d] websocket closed", pl.ID())
	}()

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WEB: [%d] read error: %v", pl.ID(), err)
			}
			return
		}

		// JSON frames carry a typed command; bare text frames are
		// dispatched as-is for plain-terminal clients.
		line := string(raw)
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Type != "" {
			switch msg.Type {
			case "command":
				line = msg.Command
			case "ping":
				wc.sendJSON(WSMessage{Type: "pong"})
				continue
			default:
				wc.sendJSON(WSMessage{Type: "error", Text: "unknown message type: " + msg.Type})
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ws.srv.Dispatch(pl, line)
	}
}
