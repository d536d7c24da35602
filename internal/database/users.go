package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"echovia/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const userColumns = `id, username, email, role, created_at, password_hash`

// CreateUser stores a new account. When user.Role is empty the account gets
// the user role, except the very first account which becomes majorAdmin.
func (db *Database) CreateUser(user models.User, passwordHash string) (models.User, error) {
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = time.Now().UTC()

	err := db.WithTx(func(tx *sql.Tx) error {
		if user.Role == "" {
			var count int
			if err := tx.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
				return err
			}
			user.Role = models.RoleUser
			if count == 0 {
				user.Role = models.RoleMajorAdmin
			}
		}

		_, err := tx.Exec(`
			INSERT INTO users (id, username, email, password_hash, role, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.Email, passwordHash, string(user.Role), user.CreatedAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
		}
		db.logger.WithError(err).WithField("email", user.Email).Error("Failed to create user")
		return models.User{}, err
	}

	db.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("Created user")
	return user, nil
}

// GetUserByEmail returns the account and its password hash
func (db *Database) GetUserByEmail(email string) (models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, hash, err := scanUser(db.getUserByMailStm.QueryRow(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, "", fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return models.User{}, "", err
	}
	return user, hash, nil
}

// GetUserByID returns the account with the given id
func (db *Database) GetUserByID(id string) (models.User, error) {
	user, _, err := scanUser(db.getUserByIDStmt.QueryRow(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// ListUsers returns every account, oldest first
func (db *Database) ListUsers() ([]models.User, error) {
	rows, err := db.conn.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, _, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserRole changes the role of one account
func (db *Database) UpdateUserRole(id string, role models.Role) error {
	res, err := db.conn.Exec("UPDATE users SET role = ? WHERE id = ?", string(role), id)
	if err != nil {
		db.logger.WithError(err).WithField("user_id", id).Error("Failed to update user role")
		return err
	}
	if err := affectedOne(res); err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	return nil
}

func scanUser(row rowScanner) (models.User, string, error) {
	var (
		u    models.User
		role string
		hash string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &u.CreatedAt, &hash); err != nil {
		return models.User{}, "", err
	}
	u.Role = models.Role(role)
	return u, hash, nil
}
