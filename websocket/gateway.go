package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatapi/logger"
	"chatapi/models"
	"chatapi/store"
	"chatapi/utils"
)

// Close codes for refused connections.
const (
	CloseTargetNotFound = 4001
	CloseForbidden      = 4002
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway accepts websocket connections, resolves the caller's identity
// from the token query parameter and admits them into a room.
type Gateway struct {
	hub   *Hub
	store Store
}

func NewGateway(hub *Hub, st Store) *Gateway {
	return &Gateway{hub: hub, store: st}
}

// HandleChat admits a connection into the direct room shared with the
// user named by the friend_id route parameter.
func (g *Gateway) HandleChat(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	friendID, err := strconv.ParseInt(c.Param("friend_id"), 10, 64)
	if err != nil {
		g.reject(conn, CloseTargetNotFound, "The user you're trying to chat with does not exist.")
		return
	}

	friend, err := g.store.GetUserByID(friendID)
	if errors.Is(err, store.ErrNotFound) {
		g.reject(conn, CloseTargetNotFound, "The user you're trying to chat with does not exist.")
		return
	}
	if err != nil {
		g.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}

	user, err := g.identity(c.Query("token"))
	if err != nil {
		g.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}
	if user == nil {
		// An invalid token is not distinguished from an unauthorized one.
		g.reject(conn, CloseForbidden, "You can only chat with users you're friends with.")
		return
	}

	isFriend, err := g.store.AreFriends(user.ID, friend.ID)
	if err != nil {
		g.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}
	if !isFriend {
		g.reject(conn, CloseForbidden, "You can only chat with users you're friends with.")
		return
	}

	room := DirectRoomKey(user.ID, friend.ID)
	client := &Client{
		ID:     uuid.New().String(),
		User:   user,
		Room:   room,
		friend: friend,
		hub:    g.hub,
		store:  g.store,
		conn:   conn,
		Send:   make(chan []byte, 256),
	}

	g.hub.Join(room, client)
	logger.Info().Str("user", user.Email).Str("room", room).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump()
}

// HandleGroup admits a connection into the room of the group named by the
// group_id route parameter.
func (g *Gateway) HandleGroup(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	groupID, err := strconv.ParseInt(c.Param("group_id"), 10, 64)
	if err != nil {
		g.reject(conn, CloseTargetNotFound, "")
		return
	}

	group, err := g.store.GetGroupByID(groupID)
	if errors.Is(err, store.ErrNotFound) {
		g.reject(conn, CloseTargetNotFound, "")
		return
	}
	if err != nil {
		g.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}

	user, err := g.identity(c.Query("token"))
	if err != nil {
		g.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}
	if user == nil {
		g.reject(conn, CloseForbidden, "You are not a member of this group.")
		return
	}

	isMember, err := g.store.IsGroupMember(group.ID, user.ID)
	if err != nil {
		g.reject(conn, websocket.CloseInternalServerErr, "")
		return
	}
	if !isMember {
		g.reject(conn, CloseForbidden, "You are not a member of this group.")
		return
	}

	room := GroupRoomKey(group.ID)
	client := &Client{
		ID:    uuid.New().String(),
		User:  user,
		Room:  room,
		group: group,
		hub:   g.hub,
		store: g.store,
		conn:  conn,
		Send:  make(chan []byte, 256),
	}

	g.hub.Join(room, client)
	logger.Info().Str("user", user.Email).Str("room", room).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump()
}

// identity resolves the presented token to a user. Missing, malformed or
// expired tokens all resolve to nil (anonymous), which then fails the
// authorization check rather than producing a separate bad-token code.
// A store failure is an error, not anonymity.
func (g *Gateway) identity(token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, nil
	}

	user, err := g.store.GetUserByID(claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// reject refuses a connection after the transport handshake: an optional
// error frame for the caller, then a close with the admission code.
func (g *Gateway) reject(conn *websocket.Conn, code int, message string) {
	if message != "" {
		if data, err := json.Marshal(errorFrame{Error: message}); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	conn.Close()
}
