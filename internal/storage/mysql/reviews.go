package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"place_reviews/internal/domain"
)

type ReviewRepo struct{ db *sql.DB }

func NewReviews(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

func (r *ReviewRepo) FindByExternalID(ctx context.Context, externalID string) (*domain.Review, error) {
	row := r.db.QueryRowContext(ctx, findReviewSQL, externalID)
	rv, err := scanReview(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *ReviewRepo) Upsert(ctx context.Context, rv domain.Review) (domain.UpsertOutcome, error) {
	existing, err := r.FindByExternalID(ctx, rv.ExternalID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		_, err := r.db.ExecContext(ctx, updateReviewSQL,
			rv.PlaceID, rv.Author, rv.AuthorURL, rv.PhotoURL, rv.Rating, rv.Text, rv.Source,
			rv.ExternalID,
		)
		return domain.Updated, err
	}

	var published any
	if !rv.PublishedAt.IsZero() {
		published = rv.PublishedAt.UTC()
	}
	_, err = r.db.ExecContext(ctx, insertReviewSQL,
		rv.ExternalID, rv.PlaceID, rv.Author, rv.AuthorURL, rv.PhotoURL,
		rv.Rating, rv.Text, rv.Source, rv.Hidden, published,
	)
	return domain.Inserted, err
}

// listDataset builds the filtered dataset shared by List and Count.
func listDataset(q domain.ReviewQuery) *goqu.SelectDataset {
	ds := dialect.From("reviews")
	if !q.IncludeHidden {
		ds = ds.Where(goqu.C("hidden").Eq(0))
	}
	if q.MinRating > 0 {
		ds = ds.Where(goqu.C("rating").Gte(q.MinRating))
	}
	if q.WithTextOnly {
		ds = ds.Where(goqu.C("text").Neq(""))
	}
	if q.PlaceID != "" {
		ds = ds.Where(goqu.C("place_id").Eq(q.PlaceID))
	}
	return ds
}

// Ties break on the insertion id so pagination stays stable across requests
// for every order except random.
func ordered(ds *goqu.SelectDataset, sort string) *goqu.SelectDataset {
	switch sort {
	case "oldest":
		return ds.Order(goqu.C("published_at").Asc(), goqu.C("id").Asc())
	case "rating_desc":
		return ds.Order(goqu.C("rating").Desc(), goqu.C("id").Desc())
	case "rating_asc":
		return ds.Order(goqu.C("rating").Asc(), goqu.C("id").Asc())
	case "random":
		return ds.Order(goqu.L("RAND()").Asc())
	default: // newest
		return ds.Order(goqu.C("published_at").Desc(), goqu.C("id").Desc())
	}
}

func (r *ReviewRepo) List(ctx context.Context, q domain.ReviewQuery) ([]domain.Review, error) {
	ds := ordered(listDataset(q), q.Sort).Select(
		goqu.C("id"), goqu.C("external_id"), goqu.C("place_id"),
		goqu.C("author"), goqu.C("author_url"), goqu.C("photo_url"), goqu.C("photo_object"),
		goqu.C("rating"), goqu.C("text"), goqu.C("source"), goqu.C("hidden"), goqu.C("published_at"),
	)
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}
	if q.Offset > 0 {
		ds = ds.Offset(uint(q.Offset))
	}
	sqlStr, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *ReviewRepo) Count(ctx context.Context, q domain.ReviewQuery) (int, error) {
	sqlStr, args, err := listDataset(q).Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ReviewRepo) SetHidden(ctx context.Context, externalID string, hidden bool) error {
	existing, err := r.FindByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}
	_, err = r.db.ExecContext(ctx, setHiddenSQL, hidden, externalID)
	return err
}

func (r *ReviewRepo) SetPhotoObject(ctx context.Context, externalID, object string) error {
	_, err := r.db.ExecContext(ctx, setPhotoObjectSQL, object, externalID)
	return err
}

func (r *ReviewRepo) DeleteByPlace(ctx context.Context, placeID string) (int, error) {
	res, err := r.db.ExecContext(ctx, deleteReviewsByPlaceSQL, placeID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scanFn func(dst ...any) error

func scanReview(scan scanFn) (domain.Review, error) {
	var rv domain.Review
	var published sql.NullTime
	err := scan(
		&rv.ID, &rv.ExternalID, &rv.PlaceID,
		&rv.Author, &rv.AuthorURL, &rv.PhotoURL, &rv.PhotoObject,
		&rv.Rating, &rv.Text, &rv.Source, &rv.Hidden, &published,
	)
	if err != nil {
		return domain.Review{}, err
	}
	if published.Valid {
		rv.PublishedAt = published.Time
	}
	return rv, nil
}
