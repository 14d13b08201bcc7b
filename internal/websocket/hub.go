package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心
// 客户端按房间码订阅对局，状态变化推送给同房间的所有连接
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 玩家ID到客户端的映射
	playerClients map[string][]*Client
	playerMu      sync.RWMutex

	// 房间码到客户端的映射
	roomClients map[string]map[string]*Client
	roomMu      sync.RWMutex

	// 消息广播通道
	broadcast chan *Message

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 日志
	logger *zap.Logger
}

// Client WebSocket客户端
type Client struct {
	ID       string          // 客户端ID
	PlayerID string          // 玩家ID
	Hub      *Hub            // Hub引用
	Conn     *websocket.Conn // WebSocket连接
	Send     chan []byte     // 发送通道
	RoomCode string          // 订阅的房间码，由Hub.roomMu保护
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"` // 消息类型
	PlayerID  string          `json:"player_id,omitempty"`
	RoomCode  string          `json:"room_code,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"` // 消息数据
	Timestamp int64           `json:"timestamp"`      // 时间戳
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected    = "connected"
	MessageTypeDisconnected = "disconnected"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"

	// 对局消息
	MessageTypeMatchUpdate   = "match_update"
	MessageTypePlayerJoined  = "player_joined"
	MessageTypePlayerLeft    = "player_left"
	MessageTypeMatchStarted  = "match_started"
	MessageTypeCardSelected  = "card_selected"
	MessageTypeCardRejected  = "card_rejected"
	MessageTypeCardResolved  = "card_resolved"
	MessageTypeMatchFinished = "match_finished"
)

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		playerClients: make(map[string][]*Client),
		roomClients:   make(map[string]map[string]*Client),
		broadcast:     make(chan *Message, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		logger:        logger,
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	// 启动心跳检测
	go h.runHeartbeat()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	if client.PlayerID != "" {
		h.playerMu.Lock()
		h.playerClients[client.PlayerID] = append(h.playerClients[client.PlayerID], client)
		h.playerMu.Unlock()
	}

	if room := h.roomOf(client); room != "" {
		h.subscribeRoom(client, room)
	}

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))

	// 发送连接成功消息
	msg := &Message{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	}
	h.SendToClient(client.ID, msg)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	if client.PlayerID != "" {
		h.playerMu.Lock()
		clients := h.playerClients[client.PlayerID]
		for i, c := range clients {
			if c.ID == client.ID {
				h.playerClients[client.PlayerID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.playerClients[client.PlayerID]) == 0 {
			delete(h.playerClients, client.PlayerID)
		}
		h.playerMu.Unlock()
	}

	h.unsubscribeRoom(client)

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))
}

// subscribeRoom 订阅房间
func (h *Hub) subscribeRoom(client *Client, roomCode string) {
	h.roomMu.Lock()
	h.detachRoomLocked(client)
	if h.roomClients[roomCode] == nil {
		h.roomClients[roomCode] = make(map[string]*Client)
	}
	h.roomClients[roomCode][client.ID] = client
	client.RoomCode = roomCode
	h.roomMu.Unlock()
}

// unsubscribeRoom 取消房间订阅
func (h *Hub) unsubscribeRoom(client *Client) {
	h.roomMu.Lock()
	h.detachRoomLocked(client)
	h.roomMu.Unlock()
}

// detachRoomLocked 把客户端从当前房间移除，调用方必须持有roomMu写锁
func (h *Hub) detachRoomLocked(client *Client) {
	if client.RoomCode == "" {
		return
	}
	if clients, ok := h.roomClients[client.RoomCode]; ok {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.roomClients, client.RoomCode)
		}
	}
	client.RoomCode = ""
}

// roomOf 读取客户端当前订阅的房间码
func (h *Hub) roomOf(client *Client) string {
	h.roomMu.RLock()
	defer h.roomMu.RUnlock()
	return client.RoomCode
}

// broadcastMessage 广播消息
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// 发送缓冲区满，丢弃本条
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID))
		}
	}
	h.clientsMu.RUnlock()
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	client, ok := h.clients[clientID]
	h.clientsMu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToPlayer 发送消息给指定玩家的所有客户端
func (h *Hub) SendToPlayer(playerID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.playerMu.RLock()
	clients := h.playerClients[playerID]
	h.playerMu.RUnlock()

	if len(clients) == 0 {
		return ErrPlayerNotConnected
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("玩家客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("player_id", playerID))
		}
	}

	return nil
}

// SendToRoom 发送消息给订阅指定房间的所有客户端
func (h *Hub) SendToRoom(roomCode string, message *Message) error {
	message.RoomCode = roomCode
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// 锁内拷贝订阅者快照，避免遍历时被并发订阅改写
	h.roomMu.RLock()
	clients := make([]*Client, 0, len(h.roomClients[roomCode]))
	for _, client := range h.roomClients[roomCode] {
		clients = append(clients, client)
	}
	h.roomMu.RUnlock()

	if len(clients) == 0 {
		return ErrRoomNotFound
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("房间客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("room_code", roomCode))
		}
	}

	return nil
}

// GetOnlinePlayers 获取在线玩家列表
func (h *Hub) GetOnlinePlayers() []string {
	h.playerMu.RLock()
	defer h.playerMu.RUnlock()

	players := make([]string, 0, len(h.playerClients))
	for playerID := range h.playerClients {
		players = append(players, playerID)
	}
	return players
}

// GetOnlineCount 获取在线人数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// GetRoomSubscribers 获取房间订阅数
func (h *Hub) GetRoomSubscribers(roomCode string) int {
	h.roomMu.RLock()
	defer h.roomMu.RUnlock()
	return len(h.roomClients[roomCode])
}

// runHeartbeat 运行心跳检测
func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		<-ticker.C
		ping := &Message{
			Type:      MessageTypePing,
			Timestamp: time.Now().Unix(),
		}
		h.broadcast <- ping
	}
}

// Broadcast 广播消息（公开方法）
func (h *Hub) Broadcast(message *Message) {
	h.broadcast <- message
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
