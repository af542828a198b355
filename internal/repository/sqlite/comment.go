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

var _ repository.CommentRepository = (*DB)(nil)

const commentSelect = `SELECT c.id, c.article_id, c.user_id, c.comment, c.total_likes, c.created_at, c.updated_at,
	u.username, u.firstname, u.lastname, u.bio, u.image
	FROM comments c JOIN users u ON u.id = c.user_id`

func scanComment(row rowScanner, c *model.Comment) error {
	author := &model.Profile{}
	err := row.Scan(
		&c.ID, &c.ArticleID, &c.UserID, &c.Comment, &c.TotalLikes, &c.CreatedAt, &c.UpdatedAt,
		&author.Username, &author.FirstName, &author.LastName, &author.Bio, &author.Image,
	)
	if err != nil {
		return err
	}
	c.Author = author
	return nil
}

func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (article_id, user_id, comment, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ArticleID, c.UserID, c.Comment, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("article", strconv.FormatInt(c.ArticleID, 10))
		}
		return fmt.Errorf("sqlite: inserting comment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new comment id: %w", err)
	}
	c.ID = id
	c.TotalLikes = 0
	return nil
}

func (db *DB) GetCommentByID(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := scanComment(db.conn.QueryRowContext(ctx, commentSelect+` WHERE c.id = ?`, id), &c)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting comment %d: %w", id, err)
	}
	return &c, nil
}

// ListComments returns an article's comments oldest first.
func (db *DB) ListComments(ctx context.Context, articleID int64) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		commentSelect+` WHERE c.article_id = ? ORDER BY c.created_at, c.id`, articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of article %d: %w", articleID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		if err := scanComment(rows, &c); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

// UpdateComment stores the current text in comment_edits and writes the new
// text, in one transaction.
func (db *DB) UpdateComment(ctx context.Context, id int64, text string) (*model.Comment, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning comment edit: %w", err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT comment FROM comments WHERE id = ?`, id).Scan(&previous)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: reading comment %d: %w", id, err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comment_edits (comment_id, comment, edited_at) VALUES (?, ?, ?)`,
		id, previous, now,
	); err != nil {
		return nil, fmt.Errorf("sqlite: recording edit of comment %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE comments SET comment = ?, updated_at = ? WHERE id = ?`, text, now, id,
	); err != nil {
		return nil, fmt.Errorf("sqlite: updating comment %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing comment edit: %w", err)
	}
	return db.GetCommentByID(ctx, id)
}

// DeleteComment removes the comment with its likes and edit history.
func (db *DB) DeleteComment(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("comment", strconv.FormatInt(id, 10))
	}
	return nil
}

func (db *DB) LikeComment(ctx context.Context, commentID, userID int64) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning comment like: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO comment_likes (comment_id, user_id) VALUES (?, ?)`, commentID, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperror.New(apperror.ErrConflict, "you have already liked this comment")
		}
		if isForeignKeyViolation(err) {
			return 0, apperror.NotFound("comment", strconv.FormatInt(commentID, 10))
		}
		return 0, fmt.Errorf("sqlite: inserting comment like: %w", err)
	}

	var total int64
	err = tx.QueryRowContext(ctx,
		`UPDATE comments SET total_likes = total_likes + 1 WHERE id = ? RETURNING total_likes`,
		commentID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting comment like: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing comment like: %w", err)
	}
	return total, nil
}

// ListCommentEdits returns the previous texts of a comment, oldest first.
func (db *DB) ListCommentEdits(ctx context.Context, commentID int64) ([]model.CommentEdit, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, comment_id, comment, edited_at FROM comment_edits
		 WHERE comment_id = ? ORDER BY edited_at, id`, commentID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing edits of comment %d: %w", commentID, err)
	}
	defer rows.Close()

	edits := make([]model.CommentEdit, 0)
	for rows.Next() {
		var e model.CommentEdit
		if err := rows.Scan(&e.ID, &e.CommentID, &e.Comment, &e.EditedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment edit: %w", err)
		}
		edits = append(edits, e)
	}
	return edits, rows.Err()
}
