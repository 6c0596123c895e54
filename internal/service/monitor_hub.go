package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64

	monitorChannelPrefix = "exam:monitor:"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MonitorChannel is the redis channel carrying events of one exam.
func MonitorChannel(examID uint) string {
	return monitorChannelPrefix + strconv.FormatUint(uint64(examID), 10)
}

type monitorClient struct {
	hub    *MonitorHub
	conn   *websocket.Conn
	send   chan []byte
	examID uint
	userID uint
}

func (c *monitorClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		// 监考端只接收事件，上行消息直接丢弃
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("monitor socket closed unexpectedly", zap.Error(err), zap.Uint("userId", c.userID))
			}
			return
		}
	}
}

func (c *monitorClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// MonitorHub fans attempt events out to proctors watching an exam. With redis
// every instance subscribes to the exam channels so events reach proctors
// connected to any instance; without it delivery stays in process.
type MonitorHub struct {
	Redis *redis.Client

	mu    sync.RWMutex
	rooms map[uint]map[*monitorClient]struct{}
}

func NewMonitorHub(rdb *redis.Client) *MonitorHub {
	return &MonitorHub{
		Redis: rdb,
		rooms: make(map[uint]map[*monitorClient]struct{}),
	}
}

// Run relays redis messages to local sockets until ctx is cancelled or the
// subscription ends, then closes every socket.
func (h *MonitorHub) Run(ctx context.Context) {
	if h.Redis == nil {
		<-ctx.Done()
		h.Stop()
		return
	}

	pubsub := h.Redis.PSubscribe(ctx, monitorChannelPrefix+"*")
	defer pubsub.Close()

	h.relay(ctx, pubsub.Channel())
}

func (h *MonitorHub) relay(ctx context.Context, ch <-chan *redis.Message) {
	defer h.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				logger.Log.Warn("monitor: subscription closed")
				return
			}
			examID, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, monitorChannelPrefix), 10, 64)
			if err != nil {
				logger.Log.Warn("monitor: unexpected channel", zap.String("channel", msg.Channel))
				continue
			}
			h.deliver(uint(examID), []byte(msg.Payload))
		}
	}
}

// Publish never fails the caller; delivery problems are logged.
func (h *MonitorHub) Publish(ctx context.Context, ev AttemptEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Log.Error("monitor: marshal event", zap.Error(err))
		return
	}
	if h.Redis == nil {
		h.deliver(ev.ExamID, payload)
		return
	}
	if err := h.Redis.Publish(ctx, MonitorChannel(ev.ExamID), payload).Err(); err != nil {
		logger.Log.Warn("monitor: publish failed",
			zap.String("attemptId", ev.AttemptID),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// Serve upgrades the request and streams events of examID to it.
func (h *MonitorHub) Serve(w http.ResponseWriter, r *http.Request, examID, userID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &monitorClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		examID: examID,
		userID: userID,
	}
	h.add(c)

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *MonitorHub) ClientCount(examID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[examID])
}

// Stop closes every monitor socket.
func (h *MonitorHub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for examID, room := range h.rooms {
		for c := range room {
			close(c.send)
			n++
		}
		delete(h.rooms, examID)
	}
	monitoring.MonitorSubscribers.Set(0)
	if n > 0 {
		logger.Log.Info("monitor hub stopped", zap.Int("closedConnections", n))
	}
}

func (h *MonitorHub) add(c *monitorClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.examID]
	if !ok {
		room = make(map[*monitorClient]struct{})
		h.rooms[c.examID] = room
	}
	room[c] = struct{}{}
	monitoring.MonitorSubscribers.Inc()
}

func (h *MonitorHub) remove(c *monitorClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.examID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.examID)
	}
	monitoring.MonitorSubscribers.Dec()
}

func (h *MonitorHub) deliver(examID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[examID] {
		select {
		case c.send <- payload:
		default:
			// 慢连接直接丢弃本条事件
		}
	}
}
