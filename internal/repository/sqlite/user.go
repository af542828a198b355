package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/repository"
)

// compile-time checks
var (
	_ repository.UserRepository   = (*DB)(nil)
	_ repository.FollowRepository = (*DB)(nil)
)

const userColumns = `id, email, username, firstname, lastname, bio, image, password, role,
	active, email_notification, in_app_notification, provider, provider_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *model.User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.Bio, &u.Image,
		&u.Password, &u.Role, &u.Active, &u.EmailNotification, &u.InAppNotification,
		&u.Provider, &u.ProviderID, &u.CreatedAt, &u.UpdatedAt,
	)
}

// CreateUser inserts a new user. ID and timestamps are set on u.
// An empty Role becomes model.RoleUser.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, username, firstname, lastname, bio, image, password, role,
			active, email_notification, in_app_notification, provider, provider_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.Username, u.FirstName, u.LastName, u.Bio, u.Image, u.Password, u.Role,
		u.Active, u.EmailNotification, u.InAppNotification, u.Provider, u.ProviderID,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			switch uniqueColumn(err) {
			case "users.email":
				return apperror.FieldConflict("email", "email already exists.")
			case "users.username":
				return apperror.FieldConflict("username", "username already exists.")
			}
			return apperror.Conflict("user", u.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	u.ID = id
	return nil
}

// GetUserByID retrieves a user by their ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, "id", id, strconv.FormatInt(id, 10))
}

// GetUserByEmail matches the email case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email", email, email)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, "username", username, username)
}

// getUser selects one user by a fixed column name; column is never user input.
func (db *DB) getUser(ctx context.Context, column string, value any, label string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value,
	), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %s: %w", column, label, err)
	}
	return &u, nil
}

func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %s: %w", username, err)
	}
	return exists, nil
}

func (db *DB) UpdateUserProfile(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	return db.execUser(ctx, u.ID, "updating profile",
		`UPDATE users SET firstname = ?, lastname = ?, bio = ?, image = ?, updated_at = ? WHERE id = ?`,
		u.FirstName, u.LastName, u.Bio, u.Image, u.UpdatedAt, u.ID,
	)
}

func (db *DB) ActivateUser(ctx context.Context, id int64) error {
	return db.execUser(ctx, id, "activating",
		`UPDATE users SET active = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
}

func (db *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return db.execUser(ctx, id, "updating password",
		`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
}

func (db *DB) UpdateNotificationSettings(ctx context.Context, id int64, email, inApp bool) error {
	return db.execUser(ctx, id, "updating notification settings",
		`UPDATE users SET email_notification = ?, in_app_notification = ?, updated_at = ? WHERE id = ?`,
		email, inApp, time.Now().UTC(), id,
	)
}

// execUser runs a single-row UPDATE on users and maps zero rows to not found.
func (db *DB) execUser(ctx context.Context, id int64, action, query string, args ...any) error {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: %s for user %d: %w", action, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// =========================================================================
// FOLLOWS
// =========================================================================

func (db *DB) Follow(ctx context.Context, followerID, followedID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`,
		followerID, followedID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("follow", strconv.FormatInt(followedID, 10))
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", strconv.FormatInt(followedID, 10))
		}
		return fmt.Errorf("sqlite: following user %d: %w", followedID, err)
	}
	return nil
}

func (db *DB) Unfollow(ctx context.Context, followerID, followedID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unfollowing user %d: %w", followedID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("follow", strconv.FormatInt(followedID, 10))
	}
	return nil
}

func (db *DB) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND followed_id = ?)`,
		followerID, followedID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow %d -> %d: %w", followerID, followedID, err)
	}
	return exists, nil
}

// ListFollowers returns the users following userID, newest first.
func (db *DB) ListFollowers(ctx context.Context, userID int64) ([]model.User, error) {
	return db.listUsers(ctx,
		`SELECT `+prefixed("u", userColumns)+`
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.followed_id = ?
		 ORDER BY f.created_at DESC, u.id DESC`, userID)
}

// ListFollowing returns the users userID follows, newest first.
func (db *DB) ListFollowing(ctx context.Context, userID int64) ([]model.User, error) {
	return db.listUsers(ctx,
		`SELECT `+prefixed("u", userColumns)+`
		 FROM follows f JOIN users u ON u.id = f.followed_id
		 WHERE f.follower_id = ?
		 ORDER BY f.created_at DESC, u.id DESC`, userID)
}

func (db *DB) listUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}
