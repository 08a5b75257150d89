package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// reviewRow maps 1:1 to the reviews table columns.
type reviewRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Rating       int            `db:"rating"`
	Feedback     string         `db:"feedback"`
	Image        sql.NullString `db:"image"`
	Likes        int            `db:"likes"`
	Acknowledged bool           `db:"acknowledged"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r reviewRow) toDomain() domain.Review {
	review := domain.Review{
		ID:           r.ID,
		Name:         r.Name,
		Rating:       r.Rating,
		Feedback:     r.Feedback,
		Likes:        r.Likes,
		Acknowledged: r.Acknowledged,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Image.Valid {
		image := r.Image.String
		review.Image = &image
	}
	return review
}

type replyRow struct {
	ID        string    `db:"id"`
	ReviewID  string    `db:"review_id"`
	Name      string    `db:"name"`
	Reply     string    `db:"reply"`
	CreatedAt time.Time `db:"created_at"`
}

const sqliteReviewColumns = `id, name, rating, feedback, image, likes, acknowledged, created_at, updated_at`

type sqliteReviewRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteReviewRepository returns an SQLite-backed implementation.
func NewSQLiteReviewRepository(db *sqlx.DB) ReviewRepository {
	return &sqliteReviewRepository{db: db, now: utcNow}
}

func (r *sqliteReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	prepareReview(review)
	var image sql.NullString
	if review.Image != nil {
		image = sql.NullString{String: *review.Image, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, name, rating, feedback, image, likes, acknowledged, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.Name, review.Rating, review.Feedback, image,
		review.Likes, review.Acknowledged, review.CreatedAt.UTC(), review.UpdatedAt.UTC())
	return err
}

func (r *sqliteReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	var row reviewRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sqliteReviewColumns+` FROM reviews WHERE id = ?`, id)
	if err != nil {
		return nil, mapSQLError(err)
	}
	reviews := []domain.Review{row.toDomain()}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, err
	}
	return &reviews[0], nil
}

func (r *sqliteReviewRepository) List(ctx context.Context, limit, offset int) ([]domain.Review, error) {
	var rows []reviewRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+sqliteReviewColumns+` FROM reviews
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	reviews := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, row.toDomain())
	}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *sqliteReviewRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM reviews`); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *sqliteReviewRepository) Like(ctx context.Context, id string) (int, error) {
	var likes int
	err := r.db.QueryRowxContext(ctx,
		`UPDATE reviews SET likes = likes + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING likes`, r.now(), id).Scan(&likes)
	if err != nil {
		return 0, mapSQLError(err)
	}
	return likes, nil
}

func (r *sqliteReviewRepository) Unlike(ctx context.Context, id string) (int, error) {
	var likes int
	err := r.db.QueryRowxContext(ctx,
		`UPDATE reviews SET likes = MAX(likes - 1, 0), updated_at = ?
		 WHERE id = ?
		 RETURNING likes`, r.now(), id).Scan(&likes)
	if err != nil {
		return 0, mapSQLError(err)
	}
	return likes, nil
}

func (r *sqliteReviewRepository) SetAcknowledged(ctx context.Context, id string, acknowledged bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET acknowledged = ?, updated_at = ? WHERE id = ?`,
		acknowledged, r.now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *sqliteReviewRepository) AddReply(ctx context.Context, reply *domain.Reply) (err error) {
	prepareReply(reply)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE reviews SET updated_at = ? WHERE id = ?`, r.now(), reply.ReviewID)
	if err != nil {
		return err
	}
	if err = requireAffected(res); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO review_replies (id, review_id, name, reply, created_at) VALUES (?, ?, ?, ?, ?)`,
		reply.ID, reply.ReviewID, reply.Name, reply.Reply, reply.CreatedAt.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *sqliteReviewRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteReviewRepository) attachReplies(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	ids := make([]string, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
	}

	query, args, err := sqlx.In(
		`SELECT id, review_id, name, reply, created_at FROM review_replies
		 WHERE review_id IN (?)
		 ORDER BY created_at ASC, id ASC`, ids)
	if err != nil {
		return err
	}
	var rows []replyRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return err
	}

	byReview := make(map[string][]domain.Reply, len(reviews))
	for _, row := range rows {
		byReview[row.ReviewID] = append(byReview[row.ReviewID], domain.Reply{
			ID:        row.ID,
			ReviewID:  row.ReviewID,
			Name:      row.Name,
			Reply:     row.Reply,
			CreatedAt: row.CreatedAt,
		})
	}
	for i := range reviews {
		reviews[i].Replies = byReview[reviews[i].ID]
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
