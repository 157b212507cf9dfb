package handlers

import (
	"database/sql"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"chatapi/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupHandlerDB points the package-wide connection at an in-memory sqlite
// database with the production schema, so handlers run their real SQL
// without a server. One open connection keeps every statement on the same
// in-memory database.
func setupHandlerDB(t *testing.T) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			username    TEXT NOT NULL UNIQUE,
			email       TEXT NOT NULL UNIQUE,
			password    TEXT NOT NULL,
			full_name   TEXT NOT NULL DEFAULT '',
			bio         TEXT NOT NULL DEFAULT '',
			avatar_url  TEXT NOT NULL DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE friend_requests (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			from_user   INTEGER NOT NULL,
			to_user     INTEGER NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (from_user, to_user)
		)`,
		`CREATE TABLE messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id       INTEGER NOT NULL,
			receiver_id     INTEGER NOT NULL,
			content         TEXT NOT NULL,
			message_type    TEXT NOT NULL DEFAULT 'text',
			is_read         BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		"CREATE TABLE `groups` (" + `
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			creator_id  INTEGER NOT NULL,
			image_url   TEXT NOT NULL DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE group_memberships (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id    INTEGER NOT NULL,
			user_id     INTEGER NOT NULL,
			joined_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (group_id, user_id)
		)`,
		`CREATE TABLE group_messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id        INTEGER NOT NULL,
			sender_id       INTEGER NOT NULL,
			content         TEXT NOT NULL,
			message_type    TEXT NOT NULL DEFAULT 'text',
			is_read         BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		db.Close()
	})
}

func seedUser(t *testing.T, username string) int64 {
	t.Helper()
	result, err := database.DB.Exec(
		"INSERT INTO users (username, email, password) VALUES (?, ?, 'hash')",
		username, username+"@example.com",
	)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return id
}

// seedGroup creates a group with the creator as its first member.
func seedGroup(t *testing.T, name, description string, creatorID int64) int64 {
	t.Helper()
	result, err := database.DB.Exec(
		"INSERT INTO `groups` (name, description, creator_id) VALUES (?, ?, ?)",
		name, description, creatorID,
	)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	seedMembership(t, id, creatorID)
	return id
}

func seedMembership(t *testing.T, groupID, userID int64) {
	t.Helper()
	_, err := database.DB.Exec(
		"INSERT INTO group_memberships (group_id, user_id) VALUES (?, ?)",
		groupID, userID,
	)
	require.NoError(t, err)
}

func seedFriendRequest(t *testing.T, from, to int64, status string) int64 {
	t.Helper()
	result, err := database.DB.Exec(
		"INSERT INTO friend_requests (from_user, to_user, status) VALUES (?, ?, ?)",
		from, to, status,
	)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, database.DB.QueryRow(query, args...).Scan(&n))
	return n
}

// invoke runs a handler directly against an authenticated test context, the
// way the router would after AuthMiddleware.
func invoke(t *testing.T, userID int64, method, target, body string, params gin.Params, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	c.Request = req
	c.Params = params
	c.Set("user_id", userID)

	handler(c)
	return w
}
