package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapi/database"
	"chatapi/models"
)

func groupParams(id int64) gin.Params {
	return gin.Params{{Key: "id", Value: strconv.FormatInt(id, 10)}}
}

func groupName(t *testing.T, id int64) string {
	t.Helper()
	var name string
	require.NoError(t, database.DB.QueryRow("SELECT name FROM `groups` WHERE id = ?", id).Scan(&name))
	return name
}

func TestUpdateGroupByNonCreatorIsForbidden(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	member := seedUser(t, "member")
	groupID := seedGroup(t, "team", "", creator)
	seedMembership(t, groupID, member)

	w := invoke(t, member, "PUT", "/api/groups/1", `{"name":"hijacked"}`, groupParams(groupID), UpdateGroup)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "team", groupName(t, groupID))
}

func TestDeleteGroupByNonCreatorIsForbidden(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	member := seedUser(t, "member")
	groupID := seedGroup(t, "team", "", creator)
	seedMembership(t, groupID, member)

	w := invoke(t, member, "DELETE", "/api/groups/1", "", groupParams(groupID), DeleteGroup)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM `groups` WHERE id = ?", groupID))
}

func TestDeleteGroupByCreatorCascades(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	member := seedUser(t, "member")
	groupID := seedGroup(t, "team", "", creator)
	seedMembership(t, groupID, member)
	_, err := database.DB.Exec(
		"INSERT INTO group_messages (group_id, sender_id, content) VALUES (?, ?, 'hi')",
		groupID, member,
	)
	require.NoError(t, err)

	w := invoke(t, creator, "DELETE", "/api/groups/1", "", groupParams(groupID), DeleteGroup)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM `groups`"))
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM group_memberships WHERE group_id = ?", groupID))
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM group_messages WHERE group_id = ?", groupID))
}

func TestJoinGroupIsIdempotent(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	carol := seedUser(t, "carol")
	groupID := seedGroup(t, "open club", "", creator)

	w := invoke(t, carol, "POST", "/api/groups/1/join", "", groupParams(groupID), JoinGroup)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "joined group", resp["message"])

	// Joining again reports membership instead of failing, and never
	// duplicates the row.
	w = invoke(t, carol, "POST", "/api/groups/1/join", "", groupParams(groupID), JoinGroup)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "already a member", resp["message"])

	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM group_memberships WHERE group_id = ? AND user_id = ?", groupID, carol))
}

func TestJoinUnknownGroupNotFound(t *testing.T) {
	setupHandlerDB(t)
	carol := seedUser(t, "carol")

	w := invoke(t, carol, "POST", "/api/groups/999/join", "", groupParams(999), JoinGroup)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchGroupsMatchesNameAndDescription(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	carol := seedUser(t, "carol")
	seedGroup(t, "go devs", "weekly meetup", creator)
	seedGroup(t, "readers", "golang books", creator)
	seedGroup(t, "cooks", "recipes", creator)

	// Search is not scoped to the caller's memberships: carol belongs to
	// none of these.
	w := invoke(t, carol, "GET", "/api/groups/search?q=go", "", nil, SearchGroups)

	assert.Equal(t, http.StatusOK, w.Code)

	var groups []models.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "go devs", groups[0].Name)
	assert.Equal(t, "readers", groups[1].Name)
}

func TestSearchGroupsRequiresQuery(t *testing.T) {
	setupHandlerDB(t)
	carol := seedUser(t, "carol")

	w := invoke(t, carol, "GET", "/api/groups/search", "", nil, SearchGroups)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendGroupMessageByNonMemberIsForbidden(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	carol := seedUser(t, "carol")
	groupID := seedGroup(t, "team", "", creator)

	w := invoke(t, carol, "POST", "/api/groups/1/messages", `{"content":"hi"}`, groupParams(groupID), SendGroupMessage)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM group_messages"))
}

func TestSendGroupMessageByMemberIsPersisted(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	groupID := seedGroup(t, "team", "", creator)

	w := invoke(t, creator, "POST", "/api/groups/1/messages", `{"content":"hello team"}`, groupParams(groupID), SendGroupMessage)

	assert.Equal(t, http.StatusCreated, w.Code)

	var msg models.GroupMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, groupID, msg.GroupID)
	assert.Equal(t, creator, msg.SenderID)
	assert.Equal(t, "hello team", msg.Content)
	assert.Equal(t, models.MessageTypeText, msg.MessageType)

	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM group_messages WHERE group_id = ? AND sender_id = ?", groupID, creator))
}

func TestSendGroupMessageOversizeContentRejected(t *testing.T) {
	setupHandlerDB(t)
	creator := seedUser(t, "creator")
	groupID := seedGroup(t, "team", "", creator)

	long := strings.Repeat("a", models.MaxGroupMessageLen+1)
	w := invoke(t, creator, "POST", "/api/groups/1/messages", `{"content":"`+long+`"}`, groupParams(groupID), SendGroupMessage)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM group_messages"))
}
