package handlers

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chatapi/database"
	"chatapi/middleware"
	"chatapi/models"
	"chatapi/utils"
)

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type UpdateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CreateGroup creates a group and makes the creator its first member.
func CreateGroup(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	tx, err := database.DB.Begin()
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}

	now := time.Now()
	result, err := tx.Exec(
		"INSERT INTO `groups` (name, description, creator_id, image_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		req.Name, req.Description, userID, req.ImageURL, now, now,
	)
	if err != nil {
		tx.Rollback()
		utils.InternalError(c, "failed to create group")
		return
	}

	groupID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		utils.InternalError(c, "failed to create group")
		return
	}

	_, err = tx.Exec(
		"INSERT INTO group_memberships (group_id, user_id, joined_at) VALUES (?, ?, ?)",
		groupID, userID, now,
	)
	if err != nil {
		tx.Rollback()
		utils.InternalError(c, "failed to create group")
		return
	}

	if err := tx.Commit(); err != nil {
		utils.InternalError(c, "failed to commit transaction")
		return
	}

	utils.Created(c, models.Group{
		ID:          groupID,
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   userID,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func GetGroups(c *gin.Context) {
	userID := middleware.GetUserID(c)

	rows, err := database.DB.Query(`
		SELECT DISTINCT g.id, g.name, g.description, g.creator_id, g.image_url, g.created_at, g.updated_at
		FROM `+"`groups`"+` g
		LEFT JOIN group_memberships m ON g.id = m.group_id
		WHERE g.creator_id = ? OR m.user_id = ?
		ORDER BY g.updated_at DESC
	`, userID, userID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatorID, &group.ImageURL, &group.CreatedAt, &group.UpdatedAt); err != nil {
			continue
		}
		groups = append(groups, group)
	}

	if groups == nil {
		groups = []models.Group{}
	}

	utils.Success(c, groups)
}

// SearchGroups matches groups by name or description. Unlike GetGroups it
// is not scoped to the caller's memberships, so any group can be found and
// then joined.
func SearchGroups(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		utils.BadRequest(c, "query parameter `q` is required")
		return
	}

	pattern := "%" + escapeLikePattern(query) + "%"
	rows, err := database.DB.Query(`
		SELECT id, name, description, creator_id, image_url, created_at, updated_at
		FROM `+"`groups`"+`
		WHERE name LIKE ? OR description LIKE ?
		ORDER BY name
		LIMIT 50
	`, pattern, pattern)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatorID, &group.ImageURL, &group.CreatedAt, &group.UpdatedAt); err != nil {
			continue
		}
		groups = append(groups, group)
	}

	if groups == nil {
		groups = []models.Group{}
	}

	utils.Success(c, groups)
}

// JoinGroup adds the caller to a group they discovered themselves, without
// the creator's involvement. Joining a group twice is a no-op.
func JoinGroup(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}

	var exists bool
	if err := database.DB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM group_memberships WHERE group_id = ? AND user_id = ?)",
		group.ID, userID,
	).Scan(&exists); err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if exists {
		utils.Success(c, gin.H{"message": "already a member"})
		return
	}

	if _, err := database.DB.Exec(
		"INSERT INTO group_memberships (group_id, user_id, joined_at) VALUES (?, ?, ?)",
		group.ID, userID, time.Now(),
	); err != nil {
		utils.InternalError(c, "failed to join group")
		return
	}

	utils.Success(c, gin.H{"message": "joined group"})
}

func GetGroup(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}

	if !requireMembership(c, group.ID, userID) {
		return
	}

	utils.Success(c, group)
}

// UpdateGroup mutates group metadata. Creator only.
func UpdateGroup(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}
	if group.CreatorID != userID {
		utils.Forbidden(c, "only the creator can update the group")
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if req.Name == "" {
		req.Name = group.Name
	}

	_, err := database.DB.Exec(
		"UPDATE `groups` SET name = ?, description = ?, image_url = ?, updated_at = ? WHERE id = ?",
		req.Name, req.Description, req.ImageURL, time.Now(), group.ID,
	)
	if err != nil {
		utils.InternalError(c, "failed to update group")
		return
	}

	utils.Success(c, gin.H{"message": "group updated"})
}

// DeleteGroup removes the group with its memberships and messages.
// Creator only.
func DeleteGroup(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}
	if group.CreatorID != userID {
		utils.Forbidden(c, "only the creator can delete the group")
		return
	}

	tx, err := database.DB.Begin()
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}

	for _, stmt := range []string{
		"DELETE FROM group_messages WHERE group_id = ?",
		"DELETE FROM group_memberships WHERE group_id = ?",
		"DELETE FROM `groups` WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, group.ID); err != nil {
			tx.Rollback()
			utils.InternalError(c, "failed to delete group")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		utils.InternalError(c, "failed to commit transaction")
		return
	}

	utils.Success(c, nil)
}

// AddGroupMember adds a user to the group. Creator only.
func AddGroupMember(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}
	if group.CreatorID != userID {
		utils.Forbidden(c, "only the creator can add members")
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var exists bool
	if err := database.DB.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", req.UserID).Scan(&exists); err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if !exists {
		utils.NotFound(c, "user not found")
		return
	}

	if err := database.DB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM group_memberships WHERE group_id = ? AND user_id = ?)",
		group.ID, req.UserID,
	).Scan(&exists); err != nil {
		utils.InternalError(c, "database error")
		return
	}
	if exists {
		utils.BadRequest(c, "user is already a member")
		return
	}

	if _, err := database.DB.Exec(
		"INSERT INTO group_memberships (group_id, user_id, joined_at) VALUES (?, ?, ?)",
		group.ID, req.UserID, time.Now(),
	); err != nil {
		utils.InternalError(c, "failed to add member")
		return
	}

	utils.Created(c, gin.H{"message": "member added"})
}

// RemoveGroupMember removes a user from the group. Creator only.
func RemoveGroupMember(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}
	if group.CreatorID != userID {
		utils.Forbidden(c, "only the creator can remove members")
		return
	}

	memberID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "invalid user id")
		return
	}

	result, err := database.DB.Exec(
		"DELETE FROM group_memberships WHERE group_id = ? AND user_id = ?",
		group.ID, memberID,
	)
	if err != nil {
		utils.InternalError(c, "failed to remove member")
		return
	}

	deleted, _ := result.RowsAffected()
	if deleted == 0 {
		utils.NotFound(c, "member not found")
		return
	}

	utils.Success(c, nil)
}

// LeaveGroup removes the caller's own membership.
func LeaveGroup(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}

	result, err := database.DB.Exec(
		"DELETE FROM group_memberships WHERE group_id = ? AND user_id = ?",
		group.ID, userID,
	)
	if err != nil {
		utils.InternalError(c, "failed to leave group")
		return
	}

	deleted, _ := result.RowsAffected()
	if deleted == 0 {
		utils.NotFound(c, "not a member of this group")
		return
	}

	utils.Success(c, nil)
}

func GetGroupMembers(c *gin.Context) {
	userID := middleware.GetUserID(c)

	group, ok := loadGroup(c)
	if !ok {
		return
	}

	if !requireMembership(c, group.ID, userID) {
		return
	}

	rows, err := database.DB.Query(`
		SELECT m.id, m.group_id, m.user_id, m.joined_at,
			   u.id, u.username, u.email, u.full_name, u.bio, u.avatar_url, u.created_at
		FROM group_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ?
		ORDER BY m.joined_at
	`, group.ID)
	if err != nil {
		utils.InternalError(c, "database error")
		return
	}
	defer rows.Close()

	var members []models.GroupMemberWithUser
	for rows.Next() {
		var m models.GroupMemberWithUser
		var user models.User
		if err := rows.Scan(
			&m.ID, &m.GroupID, &m.UserID, &m.JoinedAt,
			&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt,
		); err != nil {
			continue
		}
		m.User = *user.ToResponse()
		members = append(members, m)
	}

	if members == nil {
		members = []models.GroupMemberWithUser{}
	}

	utils.Success(c, members)
}

func loadGroup(c *gin.Context) (*models.Group, bool) {
	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "invalid group id")
		return nil, false
	}

	var group models.Group
	err = database.DB.QueryRow(
		"SELECT id, name, description, creator_id, image_url, created_at, updated_at FROM `groups` WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Description, &group.CreatorID, &group.ImageURL, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		utils.NotFound(c, "group not found")
		return nil, false
	}
	if err != nil {
		utils.InternalError(c, "database error")
		return nil, false
	}

	return &group, true
}

func requireMembership(c *gin.Context, groupID, userID int64) bool {
	var isMember bool
	err := database.DB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM group_memberships WHERE group_id = ? AND user_id = ?)",
		groupID, userID,
	).Scan(&isMember)
	if err != nil {
		utils.InternalError(c, "database error")
		return false
	}
	if !isMember {
		utils.Forbidden(c, "not a member of this group")
		return false
	}
	return true
}
