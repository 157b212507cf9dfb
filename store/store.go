package store

import (
	"database/sql"
	"errors"
	"time"

	"chatapi/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator used by the websocket core. It is
// handed a connection pool at construction so tests can swap the whole
// thing out behind the interfaces defined in the websocket package.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUserByID(id int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(
		"SELECT id, username, email, full_name, bio, avatar_url, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Bio, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetGroupByID(id int64) (*models.Group, error) {
	var group models.Group
	err := s.db.QueryRow(
		"SELECT id, name, description, creator_id, image_url, created_at, updated_at FROM `groups` WHERE id = ?",
		id,
	).Scan(&group.ID, &group.Name, &group.Description, &group.CreatorID, &group.ImageURL, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// AreFriends reports whether an accepted friend request exists between the
// two users in either direction.
func (s *Store) AreFriends(userA, userB int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = 'accepted'
			  AND ((from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?))
		)`, userA, userB, userB, userA,
	).Scan(&exists)
	return exists, err
}

func (s *Store) IsGroupMember(groupID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM group_memberships WHERE group_id = ? AND user_id = ?)",
		groupID, userID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) CreateDirectMessage(senderID, receiverID int64, content, messageType string) (*models.Message, error) {
	now := time.Now()
	result, err := s.db.Exec(
		"INSERT INTO messages (sender_id, receiver_id, content, message_type, created_at) VALUES (?, ?, ?, ?, ?)",
		senderID, receiverID, content, messageType, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Message{
		ID:          id,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: messageType,
		CreatedAt:   now,
	}, nil
}

func (s *Store) CreateGroupMessage(groupID, senderID int64, content, messageType string) (*models.GroupMessage, error) {
	now := time.Now()
	result, err := s.db.Exec(
		"INSERT INTO group_messages (group_id, sender_id, content, message_type, created_at) VALUES (?, ?, ?, ?, ?)",
		groupID, senderID, content, messageType, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.GroupMessage{
		ID:          id,
		GroupID:     groupID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
		CreatedAt:   now,
	}, nil
}
