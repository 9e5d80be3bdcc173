package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"sendkeys/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	wsReadLimit    = 4096
	wsPongWait     = 60 * time.Second
	wsPingInterval = 50 * time.Second
	wsWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Scripts connect from anywhere the token allows
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager tracks connected WebSocket clients
type WSManager struct {
	server    *Server
	clients   map[*WebSocketClient]bool
	clientsMu sync.Mutex
	stopped   bool
}

// WebSocketClient represents a connected scripting client
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:  s,
		clients: make(map[*WebSocketClient]bool),
	}
}

func (m *WSManager) add(client *WebSocketClient) bool {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if m.stopped {
		return false
	}
	m.clients[client] = true
	log.Printf("WS: New client from %s. Total clients: %d", client.ip, len(m.clients))
	return true
}

func (m *WSManager) remove(client *WebSocketClient) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		log.Printf("WS: Client from %s disconnected. Total clients: %d", client.ip, len(m.clients))
	}
}

// count returns the number of connected clients
func (m *WSManager) count() int {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	return len(m.clients)
}

// stop refuses new clients and closes the existing ones
func (m *WSManager) stop() {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	m.stopped = true
	for client := range m.clients {
		client.conn.Close()
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}
	if !m.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads calls and answers them in arrival order, so a key_down
// followed by a key_up on one connection reaches the OS in that order.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.remove(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(wsPongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			return
		}

		data, err := json.Marshal(c.handleMessage(message))
		if err != nil {
			log.Printf("WS: Failed to marshal result: %v", err)
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("WS: Send buffer full for %s, dropping connection", c.ip)
			return
		}
	}
}

// writePump writes results and keep-alive pings to the connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) (res protocol.Result) {
	var call protocol.Call
	defer func() {
		if err := recover(); err != nil {
			log.Printf("WS: Recovered from panic in %s from %s: %v", call.Op, c.ip, err)
			res = protocol.Result{
				ID:    call.ID,
				Op:    call.Op,
				Error: fmt.Sprintf("internal error: %v", err),
				Kind:  protocol.KindInternal,
			}
		}
	}()

	if err := json.Unmarshal(data, &call); err != nil {
		log.Printf("WS: Invalid message format from %s: %v", c.ip, err)
		return protocol.Result{
			Error: fmt.Sprintf("malformed call: %v", err),
			Kind:  protocol.KindArgument,
		}
	}

	res, _ = c.manager.server.dispatch(call)
	return res
}
