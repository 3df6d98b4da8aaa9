package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scomapp/scom-be/internal/models"
)

// CommentServiceProvider defines the interface for page comment services.
type CommentServiceProvider interface {
	ListBySlug(ctx context.Context, slug string) ([]models.Comment, error)
	Create(ctx context.Context, slug, author, message, clientIP string) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// CommentService provides the page-comment feature.
type CommentService struct {
	db *sql.DB
}

// NewCommentService creates a new CommentService.
func NewCommentService(db *sql.DB) *CommentService {
	return &CommentService{db: db}
}

// ListBySlug returns the newest comments for a page, capped to keep responses
// bounded.
func (s *CommentService) ListBySlug(ctx context.Context, slug string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, author, message, created_at
		 FROM comments WHERE page_slug = ?
		 ORDER BY created_at DESC LIMIT 200`, slug)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.Author, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Create stores a comment. Only a truncated hash of the client address is
// persisted, for light anti-spam without keeping raw IPs.
func (s *CommentService) Create(ctx context.Context, slug, author, message, clientIP string) (models.Comment, error) {
	c := models.Comment{
		ID:        uuid.New().String(),
		PageSlug:  slug,
		Author:    author,
		Message:   message,
		IPHash:    HashIP(clientIP),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, page_slug, author, message, ip_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.PageSlug, c.Author, c.Message, c.IPHash, c.CreatedAt)
	if err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// Delete removes a comment by id. Returns ErrNotFound when no row matched.
func (s *CommentService) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HashIP returns the truncated sha256 digest stored in place of a raw client
// address.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:16]
}
