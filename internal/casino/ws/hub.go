package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	ev "github.com/radieske/oracle-casino/pkg/contracts/events"
)

// AllBettors assina todas as apostas resolvidas.
const AllBettors = "*"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	Bettor string `json:"bettor"` // apostador ou "*"
}

// client serializa as escritas numa conexão; gorilla não aceita escritores concorrentes.
type client struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *client) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub gerencia conexões WebSocket e assinaturas por apostador
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// bettor -> set of clients
	subs map[string]map[*client]struct{}
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão.
// Um cliente pode assinar vários apostadores; "?bettor=" já assina na conexão.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}
	h.log.Debug("ws connected", zap.String("client", c.id))

	defer func() {
		h.drop(c)
		_ = conn.Close()
		h.log.Debug("ws disconnected", zap.String("client", c.id))
	}()

	if b := r.URL.Query().Get("bettor"); b != "" {
		h.subscribe(c, b)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pinger(c, done)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.Bettor != "" {
				h.subscribe(c, msg.Bettor)
			}
		case "unsubscribe":
			h.unsubscribe(c, msg.Bettor)
		case "ping":
			_ = c.write(map[string]string{"type": "pong"})
		}
	}
}

func (h *Hub) pinger(c *client, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			c.wmu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) subscribe(c *client, bettor string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[bettor]; !ok {
		h.subs[bettor] = make(map[*client]struct{})
	}
	h.subs[bettor][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, bettor string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[bettor]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, bettor)
		}
	}
}

// drop remove o cliente de todas as assinaturas
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for bettor, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, bettor)
		}
	}
}

// Subscribers conta os clientes inscritos para um apostador (ou "*").
func (h *Hub) Subscribers(bettor string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[bettor])
}

// Broadcast envia a resolução para quem assina o apostador e para quem assina "*".
// Um cliente inscrito nos dois recebe uma única vez.
func (h *Hub) Broadcast(e ev.BetResolved) {
	h.mu.RLock()
	targets := make(map[*client]struct{}, len(h.subs[e.Bettor])+len(h.subs[AllBettors]))
	for c := range h.subs[e.Bettor] {
		targets[c] = struct{}{}
	}
	for c := range h.subs[AllBettors] {
		targets[c] = struct{}{}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	msg := struct {
		Type string         `json:"type"`
		Bet  ev.BetResolved `json:"bet"`
	}{Type: "bet_resolved", Bet: e}
	for c := range targets {
		if err := c.write(msg); err != nil {
			h.log.Debug("ws write failed", zap.String("client", c.id), zap.Error(err))
		}
	}
}

// broadcastRaw decodifica um payload do Pub/Sub e repassa ao hub.
func (h *Hub) broadcastRaw(payload string) error {
	var e ev.BetResolved
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return err
	}
	h.Broadcast(e)
	return nil
}
