package handlers

import (
	"database/sql"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chatapi/database"
	"chatapi/middleware"
	"chatapi/models"
	"chatapi/utils"
)

type UpdateProfileRequest struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

func GetCurrentUser(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var user models.User
	err := database.DB.QueryRow(
		"SELECT id, username, email, full_name, bio, avatar_url, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt)
	if err == sql.ErrNoRows {
		utils.NotFound(c, "user not found")
		return
	}
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}

	utils.Success(c, user.ToResponse())
}

// UpdateCurrentUser mutates the caller's own profile. Identity (id, email)
// is immutable.
func UpdateCurrentUser(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if req.Username != "" {
		var taken bool
		err := database.DB.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM users WHERE username = ? AND id != ?)",
			req.Username, userID,
		).Scan(&taken)
		if err != nil {
			utils.InternalError(c, "database error")
			return
		}
		if taken {
			utils.BadRequest(c, "username already taken")
			return
		}

		if _, err := database.DB.Exec("UPDATE users SET username = ?, updated_at = ? WHERE id = ?", req.Username, time.Now(), userID); err != nil {
			utils.InternalError(c, "failed to update profile")
			return
		}
	}

	_, err := database.DB.Exec(
		"UPDATE users SET full_name = ?, bio = ?, avatar_url = ?, updated_at = ? WHERE id = ?",
		req.FullName, req.Bio, req.AvatarURL, time.Now(), userID,
	)
	if err != nil {
		utils.InternalError(c, "failed to update profile")
		return
	}

	GetCurrentUser(c)
}

func SearchUsers(c *gin.Context) {
	userID := middleware.GetUserID(c)

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		utils.BadRequest(c, "query parameter `q` is required")
		return
	}

	pattern := "%" + escapeLikePattern(query) + "%"
	rows, err := database.DB.Query(`
		SELECT id, username, email, full_name, bio, avatar_url, created_at
		FROM users
		WHERE (username LIKE ? OR full_name LIKE ?) AND id != ?
		ORDER BY username
		LIMIT 50
	`, pattern, pattern, userID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var users []models.UserResponse
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt); err != nil {
			continue
		}
		users = append(users, *user.ToResponse())
	}

	if users == nil {
		users = []models.UserResponse{}
	}

	utils.Success(c, users)
}

func escapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "\\", "\\\\")
	pattern = strings.ReplaceAll(pattern, "%", "\\%")
	pattern = strings.ReplaceAll(pattern, "_", "\\_")
	return pattern
}
