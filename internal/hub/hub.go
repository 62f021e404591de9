package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// 每个连接的发送队列长度
	sendBufferSize = 256

	// 单个事件处理（含存储事务）的超时时间
	eventTimeout = 15 * time.Second
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type   string  // "register", "unregister"
	Client *Client // 对应的客户端
}

// Frame 是 WebSocket 上传输的消息格式（双向相同）
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope 描述一次发往某个逻辑房间的广播。
// 启用跨实例转发时，它被序列化后经 Redis Pub/Sub 发送给所有实例。
type Envelope struct {
	Room      string          `json:"room"`
	Frame     json.RawMessage `json:"frame"`
	ExcludeID string          `json:"excludeId,omitempty"` // 不接收此消息的连接 ID
	Close     bool            `json:"close,omitempty"`     // 投递后关闭房间内所有连接
}

// Publisher 把广播转发给所有实例（包括本实例）
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Hub 维护活跃连接以及逻辑房间（大厅房间和讨论房间）到连接集合的映射
type Hub struct {
	// 注册/注销事件通道，由 Run 串行处理
	messageChan chan HubMessage
	done        chan struct{}
	stopOnce    sync.Once

	// 所有已注册的连接
	clients map[*Client]bool
	// map[roomName]map[*Client]bool
	rooms map[string]map[*Client]bool
	// 保护 clients、rooms 以及每个 Client 的 rooms 集合
	roomsMu sync.RWMutex

	// 可选的跨实例转发，nil 表示只在本进程内投递
	relay Publisher
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub() *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
	}
}

// SetRelay 启用跨实例广播。必须在 Run 之前调用。
func (h *Hub) SetRelay(p Publisher) {
	h.relay = p
}

// Run 启动 Hub 的主事件处理循环，直到 Stop 被调用。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		case <-h.done:
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 停止 Run 循环并关闭所有连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// QueueMessage 将注册/注销请求放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示队列已满或 Hub 已停止。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"conn_id":      msg.Client.ID(),
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.roomsMu.Lock()
	h.clients[client] = true
	h.roomsMu.Unlock()
	logrus.WithField("conn_id", client.ID()).Debug("Client registered to Hub")
}

// unregisterClient 把连接从所有逻辑房间中移除并关闭其发送队列。
// 存储中的参加者信息不受影响：断线后用户需要重新加入或显式离开。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": client.ID(), "uid": client.UID()})

	h.roomsMu.Lock()
	left := make([]string, 0, len(client.rooms))
	for room := range client.rooms {
		h.removeLocked(room, client)
		left = append(left, room)
	}
	delete(h.clients, client)
	h.roomsMu.Unlock()

	client.closeSend()
	if len(left) > 0 {
		logCtx.WithField("rooms", left).Info("Client disconnected without leaving; stored membership is unchanged")
	} else {
		logCtx.Debug("Client unregistered from Hub")
	}
}

// Join 把连接加入逻辑房间（同步执行，保证同一连接的后续事件能看到结果）
func (h *Hub) Join(client *Client, room string) {
	h.roomsMu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
	client.rooms[room] = true
	h.roomsMu.Unlock()

	logrus.WithFields(logrus.Fields{"room": room, "conn_id": client.ID()}).Debug("Client joined room")
}

// Leave 把连接移出逻辑房间
func (h *Hub) Leave(client *Client, room string) {
	h.roomsMu.Lock()
	h.removeLocked(room, client)
	h.roomsMu.Unlock()
}

// removeLocked 调用者必须持有 roomsMu 写锁
func (h *Hub) removeLocked(room string, client *Client) {
	delete(client.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members 返回逻辑房间中当前连接数
func (h *Hub) Members(room string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[room])
}

// Emit 向逻辑房间内的所有连接发送事件
func (h *Hub) Emit(ctx context.Context, room, event string, payload interface{}) {
	h.emit(ctx, room, event, payload, "", false)
}

// EmitExcept 向逻辑房间内除 excluded 以外的所有连接发送事件
func (h *Hub) EmitExcept(ctx context.Context, room, event string, payload interface{}, excluded *Client) {
	excludeID := ""
	if excluded != nil {
		excludeID = excluded.ID()
	}
	h.emit(ctx, room, event, payload, excludeID, false)
}

// CloseRoom 向逻辑房间发送最后一个事件，然后断开房间内的所有连接
func (h *Hub) CloseRoom(ctx context.Context, room, event string, payload interface{}) {
	h.emit(ctx, room, event, payload, "", true)
}

func (h *Hub) emit(ctx context.Context, room, event string, payload interface{}, excludeID string, closeAfter bool) {
	logCtx := logrus.WithFields(logrus.Fields{"room": room, "event": event})

	frame, err := encodeFrame(event, payload)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal event payload")
		return
	}
	env := Envelope{Room: room, Frame: frame, ExcludeID: excludeID, Close: closeAfter}

	if h.relay != nil {
		err := h.relay.Publish(ctx, env)
		if err == nil {
			return
		}
		// 转发失败时至少保证本实例的连接能收到
		logCtx.WithError(err).Warn("Broadcast relay publish failed, delivering locally")
	}
	h.DeliverLocal(env)
}

// DeliverLocal 把广播投递给本实例内该房间的连接。
// 使用非阻塞发送，单个慢连接不会阻塞其他连接。
func (h *Hub) DeliverLocal(env Envelope) {
	h.roomsMu.Lock()
	members := h.rooms[env.Room]
	recipients := make([]*Client, 0, len(members))
	for client := range members {
		if client.ID() != env.ExcludeID {
			recipients = append(recipients, client)
		}
	}
	if env.Close {
		// 被关闭的房间立即清空，后续广播不会再投递给这些连接
		for client := range members {
			delete(client.rooms, env.Room)
		}
		delete(h.rooms, env.Room)
	}
	h.roomsMu.Unlock()

	if len(recipients) == 0 {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room": env.Room, "recipient_count": len(recipients)})
	logCtx.Debug("Broadcasting message to clients")

	for _, client := range recipients {
		if !client.trySend(env.Frame) {
			logCtx.WithField("conn_id", client.ID()).Warn("Client send channel full or closed, skipping this client")
		}
		if env.Close {
			client.closeSend()
		}
	}
}

// closeAll 在 Hub 停止时关闭所有连接
func (h *Hub) closeAll() {
	h.roomsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	h.roomsMu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
