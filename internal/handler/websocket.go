package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koopa0/pong-match/internal/game"
	"github.com/koopa0/pong-match/internal/manager"
	apperrors "github.com/koopa0/pong-match/pkg/errors"
)

// 心跳設定
const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// DefaultStateInterval 狀態推送間隔（30 Hz）
const DefaultStateInterval = time.Second / 30

// Hub WebSocket 連接中心
//
// 推送循環以固定頻率讀取每場有連線的對戰快照並廣播，
// 客戶端指令直接轉交 manager，由對戰鎖與 tick 串行化。
type Hub struct {
	manager     *manager.Manager
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	interval    time.Duration
	connections map[string]map[int64]*Connection // matchID -> playerID -> Connection
	mu          sync.RWMutex
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// Connection WebSocket 連接
type Connection struct {
	PlayerID  int64
	MatchID   string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool // 由 Hub.mu 保護
	limiter   *TokenBucket
}

// Event 推送給客戶端的消息
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// clientMessage 客戶端指令
type clientMessage struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
	Ready     *bool  `json:"ready,omitempty"`
}

// NewHub 創建 WebSocket Hub
func NewHub(mgr *manager.Manager, interval time.Duration, logger *slog.Logger) *Hub {
	if interval <= 0 {
		interval = DefaultStateInterval
	}
	hub := &Hub{
		manager:  mgr,
		logger:   logger,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]map[int64]*Connection),
		stopCh:      make(chan struct{}),
	}

	hub.wg.Add(1)
	go hub.pushLoop()

	return hub
}

// ServeWS 處理 WebSocket 連接
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("match_id")
	if matchID == "" {
		http.Error(w, "缺少對戰 ID", http.StatusBadRequest)
		return
	}

	playerID, err := strconv.ParseInt(r.URL.Query().Get("player_id"), 10, 64)
	if err != nil || playerID <= 0 {
		http.Error(w, "缺少玩家 ID", http.StatusBadRequest)
		return
	}

	// 驗證玩家是否在對戰中
	match, err := hub.manager.GetMatch(matchID)
	if err != nil {
		http.Error(w, "對戰不存在", http.StatusNotFound)
		return
	}
	if !match.HasPlayer(playerID) {
		http.Error(w, "玩家不在對戰中", http.StatusForbidden)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		PlayerID: playerID,
		MatchID:  matchID,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Hub:      hub,
		LastPing: time.Now(),
		limiter:  NewTokenBucket(commandBurst, commandRate),
	}
	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連接建立",
		"match_id", matchID,
		"player_id", playerID)
}

// register 註冊連接，同一玩家的舊連接會被關閉
func (hub *Hub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.connections[conn.MatchID] == nil {
		hub.connections[conn.MatchID] = make(map[int64]*Connection)
	}

	if oldConn, exists := hub.connections[conn.MatchID][conn.PlayerID]; exists {
		oldConn.close()
		oldConn.Conn.Close()
	}

	hub.connections[conn.MatchID][conn.PlayerID] = conn
}

// unregister 取消註冊連接
func (hub *Hub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	matchConns, exists := hub.connections[conn.MatchID]
	if !exists {
		return
	}
	if actual, exists := matchConns[conn.PlayerID]; exists && actual == conn {
		delete(matchConns, conn.PlayerID)
		conn.close()
		if len(matchConns) == 0 {
			delete(hub.connections, conn.MatchID)
		}
	}
}

// broadcast 廣播消息到對戰
func (hub *Hub) broadcast(matchID string, message []byte) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, conn := range hub.connections[matchID] {
		select {
		case conn.Send <- message:
		default:
			// 慢客戶端丟棄這一幀，下一幀快照會補上
			hub.logger.Warn("連接緩衝區滿",
				"match_id", matchID,
				"player_id", conn.PlayerID)
		}
	}
}

// closeMatch 關閉對戰的所有連接
func (hub *Hub) closeMatch(matchID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for _, conn := range hub.connections[matchID] {
		conn.close()
	}
	delete(hub.connections, matchID)
}

// pushLoop 定期推送對戰快照
func (hub *Hub) pushLoop() {
	defer hub.wg.Done()

	ticker := time.NewTicker(hub.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hub.pushStates()
		case <-hub.stopCh:
			return
		}
	}
}

// pushStates 廣播每場有連線的對戰快照
func (hub *Hub) pushStates() {
	hub.mu.RLock()
	matchIDs := make([]string, 0, len(hub.connections))
	for matchID := range hub.connections {
		matchIDs = append(matchIDs, matchID)
	}
	hub.mu.RUnlock()

	for _, matchID := range matchIDs {
		state, err := hub.manager.GetMatchState(matchID)
		if err != nil {
			// 對戰已結束並移出註冊表
			if message, err := json.Marshal(Event{Event: "match_closed"}); err == nil {
				hub.broadcast(matchID, message)
			}
			hub.closeMatch(matchID)
			continue
		}

		message, err := json.Marshal(Event{Event: "state", Data: state})
		if err != nil {
			hub.logger.Error("序列化快照失敗", "error", err, "match_id", matchID)
			continue
		}
		hub.broadcast(matchID, message)
	}
}

// ConnectionCount 每場對戰的連接數
func (hub *Hub) ConnectionCount() map[string]int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	result := make(map[string]int, len(hub.connections))
	for matchID, conns := range hub.connections {
		result[matchID] = len(conns)
	}
	return result
}

// Stop 停止推送並關閉所有連接
func (hub *Hub) Stop() {
	hub.stopOnce.Do(func() {
		close(hub.stopCh)
	})
	hub.wg.Wait()

	hub.mu.Lock()
	for _, matchConns := range hub.connections {
		for _, conn := range matchConns {
			conn.close()
			conn.Conn.Close()
		}
	}
	hub.connections = make(map[string]map[int64]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// close 關閉發送通道，writePump 隨後送出關閉幀，呼叫方必須持有 Hub.mu 寫鎖
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.closed = true
		close(c.Send)
	})
}

// readPump 讀取客戶端指令
//
// 60 秒內沒有收到任何消息（包括 Pong）就關閉連接，配合 writePump 的 54 秒 Ping。
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.Hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"match_id", c.MatchID,
					"player_id", c.PlayerID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入消息到客戶端
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，嘗試送出關閉幀
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 處理客戶端指令
func (c *Connection) handleMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.logger.Error("解析客戶端消息失敗",
			"error", err,
			"match_id", c.MatchID,
			"player_id", c.PlayerID)
		c.replyError(apperrors.New(apperrors.ErrCodeInvalidInput, "invalid message"))
		return
	}

	if msg.Type != "ping" && !c.limiter.Allow() {
		c.replyError(apperrors.New(apperrors.ErrCodeInvalidInput, "too many commands"))
		return
	}

	var err error
	switch msg.Type {
	case "move":
		var dir game.Direction
		dir, err = game.ParseDirection(msg.Direction)
		if err == nil {
			err = c.Hub.manager.MovePaddle(c.MatchID, c.PlayerID, dir)
		}
	case "ready":
		ready := true
		if msg.Ready != nil {
			ready = *msg.Ready
		}
		err = c.Hub.manager.SetPlayerReady(c.MatchID, c.PlayerID, ready)
	case "ping":
		c.reply(Event{Event: "pong"})
	default:
		c.Hub.logger.Debug("收到未知消息類型",
			"type", msg.Type,
			"match_id", c.MatchID,
			"player_id", c.PlayerID)
		err = apperrors.New(apperrors.ErrCodeInvalidInput, "unknown message type").WithDetails(msg.Type)
	}

	if err != nil {
		c.replyError(err)
	}
}

// replyError 回報指令失敗
func (c *Connection) replyError(err error) {
	c.reply(Event{Event: "error", Data: map[string]string{
		"code":    apperrors.Code(err),
		"message": err.Error(),
	}})
}

// reply 只發給這個連接
func (c *Connection) reply(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()

	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
