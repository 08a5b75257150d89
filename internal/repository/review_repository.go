package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// ReviewRepository encapsulates review persistence. Like and Unlike are
// single atomic statements; Unlike never drives the counter below zero.
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	List(ctx context.Context, limit, offset int) ([]domain.Review, error)
	Count(ctx context.Context) (int, error)
	Like(ctx context.Context, id string) (int, error)
	Unlike(ctx context.Context, id string) (int, error)
	SetAcknowledged(ctx context.Context, id string, acknowledged bool) error
	AddReply(ctx context.Context, reply *domain.Reply) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type reviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a Postgres-backed implementation.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

const pgReviewColumns = `id::text, name, rating, feedback, image, likes, acknowledged, created_at, updated_at`

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	prepareReview(review)
	const query = `
        INSERT INTO reviews (id, name, rating, feedback, image, likes, acknowledged, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.Name,
		review.Rating,
		review.Feedback,
		review.Image,
		review.Likes,
		review.Acknowledged,
		review.CreatedAt,
		review.UpdatedAt,
	)
	return err
}

func (r *reviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `SELECT ` + pgReviewColumns + ` FROM reviews WHERE id=$1`
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	reviews := []domain.Review{*review}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, err
	}
	return &reviews[0], nil
}

func (r *reviewRepository) List(ctx context.Context, limit, offset int) ([]domain.Review, error) {
	query := `SELECT ` + pgReviewColumns + `
        FROM reviews
        ORDER BY created_at DESC, id DESC
        LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *reviewRepository) Like(ctx context.Context, id string) (int, error) {
	const query = `
        UPDATE reviews SET likes=likes + 1, updated_at=NOW()
        WHERE id=$1
        RETURNING likes`
	var likes int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&likes); err != nil {
		return 0, mapPgError(err)
	}
	return likes, nil
}

func (r *reviewRepository) Unlike(ctx context.Context, id string) (int, error) {
	const query = `
        UPDATE reviews SET likes=GREATEST(likes - 1, 0), updated_at=NOW()
        WHERE id=$1
        RETURNING likes`
	var likes int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&likes); err != nil {
		return 0, mapPgError(err)
	}
	return likes, nil
}

func (r *reviewRepository) SetAcknowledged(ctx context.Context, id string, acknowledged bool) error {
	const query = `UPDATE reviews SET acknowledged=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, acknowledged, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reviewRepository) AddReply(ctx context.Context, reply *domain.Reply) error {
	prepareReply(reply)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE reviews SET updated_at=NOW() WHERE id=$1`, reply.ReviewID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	const insert = `
        INSERT INTO review_replies (id, review_id, name, reply, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	if _, err := tx.Exec(ctx, insert, reply.ID, reply.ReviewID, reply.Name, reply.Reply, reply.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *reviewRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reviewRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *reviewRepository) attachReplies(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	ids := make([]string, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
	}

	const query = `
        SELECT id::text, review_id::text, name, reply, created_at
        FROM review_replies
        WHERE review_id::text = ANY($1)
        ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byReview := make(map[string][]domain.Reply, len(reviews))
	for rows.Next() {
		var reply domain.Reply
		if err := rows.Scan(&reply.ID, &reply.ReviewID, &reply.Name, &reply.Reply, &reply.CreatedAt); err != nil {
			return err
		}
		byReview[reply.ReviewID] = append(byReview[reply.ReviewID], reply)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range reviews {
		reviews[i].Replies = byReview[reviews[i].ID]
	}
	return nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var review domain.Review
	if err := row.Scan(
		&review.ID,
		&review.Name,
		&review.Rating,
		&review.Feedback,
		&review.Image,
		&review.Likes,
		&review.Acknowledged,
		&review.CreatedAt,
		&review.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &review, nil
}

// prepareReview fills identity and timestamps the caller left empty.
func prepareReview(review *domain.Review) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = utcNow()
	}
	if review.UpdatedAt.IsZero() {
		review.UpdatedAt = review.CreatedAt
	}
}

func prepareReply(reply *domain.Reply) {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = utcNow()
	}
}
