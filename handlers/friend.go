package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chatapi/database"
	"chatapi/middleware"
	"chatapi/models"
	"chatapi/utils"
)

type SendFriendRequestBody struct {
	ToUser int64 `json:"to_user" binding:"required"`
}

func SendFriendRequest(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req SendFriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if req.ToUser == userID {
		utils.BadRequest(c, "cannot send request to yourself")
		return
	}

	var exists bool
	err := database.DB.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", req.ToUser).Scan(&exists)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if !exists {
		utils.NotFound(c, "user not found")
		return
	}

	err = database.DB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM friend_requests WHERE from_user = ? AND to_user = ?)",
		userID, req.ToUser,
	).Scan(&exists)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if exists {
		utils.BadRequest(c, "request already sent")
		return
	}

	now := time.Now()
	result, err := database.DB.Exec(
		"INSERT INTO friend_requests (from_user, to_user, status, created_at, updated_at) VALUES (?, ?, 'pending', ?, ?)",
		userID, req.ToUser, now, now,
	)
	if err != nil {
		utils.InternalError(c, "failed to send friend request")
		return
	}

	id, _ := result.LastInsertId()
	utils.Created(c, models.FriendRequest{
		ID:        id,
		FromUser:  userID,
		ToUser:    req.ToUser,
		Status:    models.FriendStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// AcceptFriendRequest flips a pending request addressed to the caller to
// accepted. Only the recipient may do this.
func AcceptFriendRequest(c *gin.Context) {
	updateFriendRequestStatus(c, models.FriendStatusAccepted)
}

// DeclineFriendRequest flips a pending request addressed to the caller to
// declined.
func DeclineFriendRequest(c *gin.Context) {
	updateFriendRequestStatus(c, models.FriendStatusDeclined)
}

func updateFriendRequestStatus(c *gin.Context, status string) {
	userID := middleware.GetUserID(c)

	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "invalid request id")
		return
	}

	result, err := database.DB.Exec(
		"UPDATE friend_requests SET status = ?, updated_at = ? WHERE id = ? AND to_user = ? AND status = 'pending'",
		status, time.Now(), requestID, userID,
	)
	if err != nil {
		utils.InternalError(c, "failed to update friend request")
		return
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if rowsAffected == 0 {
		utils.NotFound(c, "request not found")
		return
	}

	utils.Success(c, gin.H{"message": "friend request " + status})
}

// RemoveFriend deletes the accepted edge between the caller and the given
// user, whichever direction it was created in.
func RemoveFriend(c *gin.Context) {
	userID := middleware.GetUserID(c)

	friendID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "invalid user id")
		return
	}

	result, err := database.DB.Exec(`
		DELETE FROM friend_requests
		WHERE status = 'accepted'
		  AND ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))
	`, userID, friendID, friendID, userID)
	if err != nil {
		utils.InternalError(c, "failed to remove friend")
		return
	}

	deleted, _ := result.RowsAffected()
	if deleted == 0 {
		utils.NotFound(c, "no such friend")
		return
	}

	utils.Success(c, nil)
}

func GetFriends(c *gin.Context) {
	userID := middleware.GetUserID(c)

	rows, err := database.DB.Query(`
		SELECT u.id, u.username, u.email, u.full_name, u.bio, u.avatar_url, u.created_at
		FROM users u
		JOIN friend_requests f
		  ON (f.from_user = ? AND f.to_user = u.id) OR (f.to_user = ? AND f.from_user = u.id)
		WHERE f.status = 'accepted'
		ORDER BY u.id
	`, userID, userID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var friends []models.UserResponse
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt); err != nil {
			continue
		}
		friends = append(friends, *user.ToResponse())
	}

	if friends == nil {
		friends = []models.UserResponse{}
	}

	utils.Success(c, friends)
}

func GetPendingFriendRequests(c *gin.Context) {
	userID := middleware.GetUserID(c)

	rows, err := database.DB.Query(`
		SELECT f.id, f.from_user, f.to_user, f.status, f.created_at, f.updated_at,
			   u.id, u.username, u.email, u.full_name, u.bio, u.avatar_url, u.created_at
		FROM friend_requests f
		JOIN users u ON u.id = f.from_user
		WHERE f.to_user = ? AND f.status = 'pending'
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var requests []models.FriendRequestWithUser
	for rows.Next() {
		var fr models.FriendRequestWithUser
		var user models.User
		if err := rows.Scan(
			&fr.ID, &fr.FromUser, &fr.ToUser, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt,
			&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt,
		); err != nil {
			continue
		}
		fr.From = *user.ToResponse()
		requests = append(requests, fr)
	}

	if requests == nil {
		requests = []models.FriendRequestWithUser{}
	}

	utils.Success(c, requests)
}

// areFriends mirrors the websocket authorization gate for the REST path.
func areFriends(userA, userB int64) (bool, error) {
	var exists bool
	err := database.DB.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'accepted'
			  AND ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))
		)`, userA, userB, userB, userA,
	).Scan(&exists)
	return exists, err
}
