package handlers

import (
	"database/sql"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"chatapi/database"
	"chatapi/middleware"
	"chatapi/models"
	"chatapi/utils"
)

type SendMessageRequest struct {
	Receiver    int64  `json:"receiver" binding:"required"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type"`
}

// SendMessage is the REST path for direct messages; the live path goes
// through the websocket gateway. Friends only.
func SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if req.MessageType == "" {
		req.MessageType = models.MessageTypeText
	}
	if !models.ValidMessageType(req.MessageType) {
		utils.BadRequest(c, "invalid message_type")
		return
	}

	var exists bool
	if err := database.DB.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", req.Receiver).Scan(&exists); err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if !exists {
		utils.NotFound(c, "user not found")
		return
	}

	friends, err := areFriends(userID, req.Receiver)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if !friends {
		utils.Forbidden(c, "you can only message accepted friends")
		return
	}

	now := time.Now()
	result, err := database.DB.Exec(
		"INSERT INTO messages (sender_id, receiver_id, content, message_type, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, req.Receiver, req.Content, req.MessageType, now,
	)
	if err != nil {
		utils.InternalError(c, "failed to send message")
		return
	}

	id, _ := result.LastInsertId()
	utils.Created(c, models.Message{
		ID:          id,
		SenderID:    userID,
		ReceiverID:  req.Receiver,
		Content:     req.Content,
		MessageType: req.MessageType,
		CreatedAt:   now,
	})
}

// GetChatHistory returns the direct message history with one friend, newest
// first, and marks unread incoming messages as read.
func GetChatHistory(c *gin.Context) {
	userID := middleware.GetUserID(c)

	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "invalid user id")
		return
	}

	friends, err := areFriends(userID, otherID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if !friends {
		utils.Success(c, []models.Message{})
		return
	}

	// The fetch is what flips is_read; it never reverts.
	if _, err := database.DB.Exec(
		"UPDATE messages SET is_read = TRUE WHERE sender_id = ? AND receiver_id = ? AND is_read = FALSE",
		otherID, userID,
	); err != nil {
		utils.InternalError(c, "database error")
		return
	}

	limit := parseLimit(c)
	rows, err := database.DB.Query(`
		SELECT id, sender_id, receiver_id, content, message_type, is_read, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, otherID, otherID, userID, limit)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	utils.Success(c, scanMessages(rows))
}

// GetInbox returns the latest message exchanged with each accepted friend,
// newest conversation first.
func GetInbox(c *gin.Context) {
	userID := middleware.GetUserID(c)

	rows, err := database.DB.Query(`
		SELECT m.id, m.sender_id, m.receiver_id, m.content, m.message_type, m.is_read, m.created_at
		FROM messages m
		JOIN (
			SELECT LEAST(sender_id, receiver_id) AS low,
				   GREATEST(sender_id, receiver_id) AS high,
				   MAX(id) AS latest_id
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
			GROUP BY low, high
		) latest ON m.id = latest.latest_id
		WHERE EXISTS(
			SELECT 1 FROM friend_requests f
			WHERE f.status = 'accepted'
			  AND ((f.from_user = ? AND f.to_user = m.sender_id + m.receiver_id - ?)
			    OR (f.to_user = ? AND f.from_user = m.sender_id + m.receiver_id - ?))
		)
		ORDER BY m.created_at DESC
	`, userID, userID, userID, userID, userID, userID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	utils.Success(c, scanMessages(rows))
}

type SendGroupMessageRequest struct {
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type"`
}

// SendGroupMessage is the REST path for group messages, mirroring
// SendMessage for the direct case. Members only.
func SendGroupMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}

	if !requireMembership(c, group.ID, userID) {
		return
	}

	var req SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if utf8.RuneCountInString(req.Content) > models.MaxGroupMessageLen {
		utils.BadRequest(c, "Message too long (max 1000 characters).")
		return
	}

	if req.MessageType == "" {
		req.MessageType = models.MessageTypeText
	}
	if !models.ValidMessageType(req.MessageType) {
		utils.BadRequest(c, "invalid message_type")
		return
	}

	now := time.Now()
	result, err := database.DB.Exec(
		"INSERT INTO group_messages (group_id, sender_id, content, message_type, created_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, userID, req.Content, req.MessageType, now,
	)
	if err != nil {
		utils.InternalError(c, "failed to send message")
		return
	}

	id, _ := result.LastInsertId()
	utils.Created(c, models.GroupMessage{
		ID:          id,
		GroupID:     group.ID,
		SenderID:    userID,
		Content:     req.Content,
		MessageType: req.MessageType,
		CreatedAt:   now,
	})
}

// GetGroupMessages returns a group's message history, newest first.
// Members only.
func GetGroupMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}

	if !requireMembership(c, group.ID, userID) {
		return
	}

	limit := parseLimit(c)
	rows, err := database.DB.Query(`
		SELECT id, group_id, sender_id, content, message_type, is_read, created_at
		FROM group_messages
		WHERE group_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, group.ID, limit)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var messages []models.GroupMessage
	for rows.Next() {
		var m models.GroupMessage
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.MessageType, &m.IsRead, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}

	if messages == nil {
		messages = []models.GroupMessage{}
	}

	utils.Success(c, messages)
}

func parseLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

func scanMessages(rows *sql.Rows) []models.Message {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.MessageType, &m.IsRead, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}

	if messages == nil {
		messages = []models.Message{}
	}

	return messages
}
