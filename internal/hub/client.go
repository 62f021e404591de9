package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventHandler 处理客户端发来的实时事件。
// 同一连接的事件在其 ReadPump 中按接收顺序逐个调用。
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, event string, data json.RawMessage)
}

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub     *Hub            // 指向其所属的 Hub
	conn    *websocket.Conn // WebSocket 连接
	handler EventHandler
	id      string      // 连接 ID
	send    chan []byte // 用于向此客户端发送消息的缓冲通道

	// rooms 由 hub.roomsMu 保护
	rooms map[string]bool

	mu     sync.Mutex
	uid    string // 最近一次 join_room 声明的身份
	closed bool   // send 是否已关闭
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, handler EventHandler) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		handler: handler,
		id:      uuid.NewString(),
		send:    make(chan []byte, sendBufferSize),
		rooms:   make(map[string]bool),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ID 返回连接 ID
func (c *Client) ID() string { return c.id }

// UID 返回该连接最近声明的用户身份
func (c *Client) UID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid
}

// SetUID 记录该连接的用户身份（仅用于日志）
func (c *Client) SetUID(uid string) {
	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
}

// trySend 非阻塞地把消息放入发送队列；队列已满或已关闭时返回 false
func (c *Client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送队列，WritePump 发送完剩余消息后会关闭连接。可重复调用。
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 从 WebSocket 连接读取事件并交给 EventHandler 处理。
// 在自己的 goroutine 中运行；事件同步处理，保证同一连接内的顺序。
func (c *Client) ReadPump() {
	logCtx := logrus.WithField("conn_id", c.id)
	defer func() {
		// 请求 Hub 注销此客户端
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
		case <-c.hub.done:
		case <-time.After(1 * time.Second):
			logCtx.Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logCtx.Debug("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Received non-text message type: %d", messageType)
			continue
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			logCtx.WithField("size", len(message)).Warn("Dropping malformed frame")
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	c.handler.HandleEvent(ctx, c, frame.Event, frame.Data)
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被关闭（注销或房间关闭）
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("conn_id", c.id).WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}
