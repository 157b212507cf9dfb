package websocket

import (
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"chatapi/logger"
	"chatapi/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Store is the persistence and authorization collaborator consumed by the
// websocket core. The production implementation lives in the store package.
type Store interface {
	GetUserByID(id int64) (*models.User, error)
	GetGroupByID(id int64) (*models.Group, error)
	AreFriends(userA, userB int64) (bool, error)
	IsGroupMember(groupID, userID int64) (bool, error)
	CreateDirectMessage(senderID, receiverID int64, content, messageType string) (*models.Message, error)
	CreateGroupMessage(groupID, senderID int64, content, messageType string) (*models.GroupMessage, error)
}

// InboundFrame is what a connected client sends. Content is a pointer so
// a missing key can be told apart from an empty string.
type InboundFrame struct {
	Content     *string `json:"content"`
	MessageType string  `json:"message_type"`
}

// DirectFrame is the canonical broadcast payload for a direct message.
type DirectFrame struct {
	ID          int64  `json:"id"`
	Sender      string `json:"sender"`
	Receiver    int64  `json:"receiver"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	CreatedAt   string `json:"created_at"`
}

// GroupFrame is the canonical broadcast payload for a group message.
type GroupFrame struct {
	ID          int64  `json:"id"`
	Sender      string `json:"sender"`
	Group       int64  `json:"group"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	CreatedAt   string `json:"created_at"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// Client is one live connection's session. After admission it is joined to
// exactly one room (a direct pair or a group) for its whole lifetime.
type Client struct {
	ID   string
	User *models.User
	Room string

	// Exactly one of friend/group is set and decides the session kind.
	friend *models.User
	group  *models.Group

	hub   *Hub
	store Store
	conn  *websocket.Conn
	Send  chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// trySend enqueues payload without blocking. It reports false only when
// the buffer is full; a payload for an already-closed session is silently
// dropped. The mutex shared with close makes enqueue-after-eviction safe:
// the registry may evict this session from another goroutine while its
// own read loop is still handling a frame.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// ReadPump owns the inbound loop. It exits on any transport error, which
// deregisters the session from its room.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Leave(c.Room, c)
		c.conn.Close()
		logger.Info().Str("user", c.User.Email).Str("room", c.Room).Msg("websocket disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Str("user", c.User.Email).Msg("websocket read error")
			}
			break
		}

		c.HandleFrame(message)
	}
}

// WritePump drains the send buffer into the transport and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// HandleFrame processes one inbound frame while the session is joined.
// Validation and processing failures are reported to the sender only and
// never terminate the session.
func (c *Client) HandleFrame(raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("invalid message payload")
		return
	}

	if c.group != nil {
		c.handleGroupFrame(&frame)
	} else {
		c.handleDirectFrame(&frame)
	}
}

func (c *Client) handleDirectFrame(frame *InboundFrame) {
	if frame.Content == nil {
		c.sendError("Missing 'content' in message payload.")
		return
	}

	messageType := frame.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if !models.ValidMessageType(messageType) {
		c.sendError("invalid message_type")
		return
	}

	msg, err := c.store.CreateDirectMessage(c.User.ID, c.friend.ID, *frame.Content, messageType)
	if err != nil {
		logger.Error().Err(err).Str("user", c.User.Email).Msg("failed to persist direct message")
		c.sendError("failed to send message")
		return
	}

	payload, err := json.Marshal(DirectFrame{
		ID:          msg.ID,
		Sender:      c.User.Email,
		Receiver:    c.friend.ID,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		c.sendError("failed to send message")
		return
	}

	// The sender is in the room too and gets the persisted message back
	// with its server-assigned id and timestamp.
	c.hub.Broadcast(c.Room, payload)

	logger.Info().Str("from", c.User.Email).Int64("to", c.friend.ID).Msg("direct message sent")
}

func (c *Client) handleGroupFrame(frame *InboundFrame) {
	// Membership is re-checked on every send, so a removed member loses
	// the room on their next message instead of at reconnect.
	isMember, err := c.store.IsGroupMember(c.group.ID, c.User.ID)
	if err != nil {
		logger.Error().Err(err).Str("user", c.User.Email).Msg("membership check failed")
		c.sendError("failed to send message")
		return
	}
	if !isMember {
		c.sendError("You are not a member of this group.")
		return
	}

	if frame.Content == nil || *frame.Content == "" {
		c.sendError("Message content is required.")
		return
	}
	if utf8.RuneCountInString(*frame.Content) > models.MaxGroupMessageLen {
		c.sendError("Message too long (max 1000 characters).")
		return
	}

	messageType := frame.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if !models.ValidMessageType(messageType) {
		c.sendError("invalid message_type")
		return
	}

	msg, err := c.store.CreateGroupMessage(c.group.ID, c.User.ID, *frame.Content, messageType)
	if err != nil {
		logger.Error().Err(err).Str("user", c.User.Email).Msg("failed to persist group message")
		c.sendError("failed to send message")
		return
	}

	payload, err := json.Marshal(GroupFrame{
		ID:          msg.ID,
		Sender:      c.User.Email,
		Group:       c.group.ID,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		c.sendError("failed to send message")
		return
	}

	c.hub.Broadcast(c.Room, payload)

	logger.Info().Str("from", c.User.Email).Int64("group", c.group.ID).Msg("group message sent")
}

// sendError reports a per-message failure to this session only. The frame
// is dropped if the session's buffer is full.
func (c *Client) sendError(message string) {
	data, err := json.Marshal(errorFrame{Error: message})
	if err != nil {
		return
	}
	c.trySend(data)
}
