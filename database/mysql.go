package database

import (
	"database/sql"

	"chatapi/config"
	"chatapi/logger"

	_ "github.com/go-sql-driver/mysql"
)

var DB *sql.DB

func Connect() error {
	var err error
	DB, err = sql.Open("mysql", config.Cfg.MysqlDSN)
	if err != nil {
		return err
	}

	if err = DB.Ping(); err != nil {
		return err
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(5)

	logger.Info().Msg("database connected")
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}

func CreateTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			username    VARCHAR(150) NOT NULL,
			email       VARCHAR(255) NOT NULL,
			password    VARCHAR(255) NOT NULL,
			full_name   VARCHAR(255) NOT NULL DEFAULT '',
			bio         TEXT,
			avatar_url  VARCHAR(255) NOT NULL DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uk_username (username),
			UNIQUE KEY uk_email (email)
		)`,
		`CREATE TABLE IF NOT EXISTS friend_requests (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			from_user   BIGINT NOT NULL,
			to_user     BIGINT NOT NULL,
			status      ENUM('pending', 'accepted', 'declined') DEFAULT 'pending',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uk_pair (from_user, to_user),
			INDEX idx_to_user (to_user)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGINT AUTO_INCREMENT PRIMARY KEY,
			sender_id       BIGINT NOT NULL,
			receiver_id     BIGINT NOT NULL,
			content         TEXT NOT NULL,
			message_type    ENUM('text', 'image', 'file') DEFAULT 'text',
			is_read         BOOLEAN DEFAULT FALSE,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_pair_time (sender_id, receiver_id, created_at),
			INDEX idx_receiver (receiver_id)
		)`,
		"CREATE TABLE IF NOT EXISTS `groups` (" + `
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			name        VARCHAR(255) NOT NULL,
			description TEXT,
			creator_id  BIGINT NOT NULL,
			image_url   VARCHAR(255) NOT NULL DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_creator (creator_id)
		)`,
		`CREATE TABLE IF NOT EXISTS group_memberships (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			group_id    BIGINT NOT NULL,
			user_id     BIGINT NOT NULL,
			joined_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uk_group_user (group_id, user_id),
			INDEX idx_user (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS group_messages (
			id              BIGINT AUTO_INCREMENT PRIMARY KEY,
			group_id        BIGINT NOT NULL,
			sender_id       BIGINT NOT NULL,
			content         TEXT NOT NULL,
			message_type    ENUM('text', 'image', 'file') DEFAULT 'text',
			is_read         BOOLEAN DEFAULT FALSE,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_group_time (group_id, created_at)
		)`,
	}

	for _, table := range tables {
		if _, err := DB.Exec(table); err != nil {
			return err
		}
	}

	logger.Info().Msg("database tables ready")
	return nil
}
