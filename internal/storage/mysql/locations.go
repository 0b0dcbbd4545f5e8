package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"place_reviews/internal/domain"
)

type LocationRepo struct{ db *sql.DB }

func NewLocations(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

func (r *LocationRepo) Get(ctx context.Context, placeID string) (domain.Location, error) {
	row := r.db.QueryRowContext(ctx, getLocationSQL, placeID)

	var loc domain.Location
	var lat, lng, rating sql.NullFloat64
	var priceLevel, reviewCount sql.NullInt64
	var hoursJSON []byte
	var updated sql.NullTime

	err := row.Scan(
		&loc.PlaceID, &loc.DataID, &loc.Name, &loc.Address, &loc.Phone,
		&lat, &lng, &priceLevel, &rating, &reviewCount,
		&loc.MapsURL, &loc.Website, &hoursJSON, &updated,
	)
	if err == sql.ErrNoRows {
		return domain.Location{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Location{}, err
	}

	if lat.Valid {
		v := lat.Float64
		loc.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		loc.Lng = &v
	}
	if priceLevel.Valid {
		v := int(priceLevel.Int64)
		loc.PriceLevel = &v
	}
	if rating.Valid {
		v := rating.Float64
		loc.Rating = &v
	}
	if reviewCount.Valid {
		v := int(reviewCount.Int64)
		loc.ReviewCount = &v
	}
	if len(hoursJSON) > 0 {
		_ = json.Unmarshal(hoursJSON, &loc.Hours)
	}
	if updated.Valid {
		loc.Updated = updated.Time
	}
	return loc, nil
}

func (r *LocationRepo) Merge(ctx context.Context, placeID string, incoming domain.Location) error {
	existing, err := r.Get(ctx, placeID)
	if err != nil && err != domain.ErrNotFound {
		return err
	}
	merged := domain.MergeLocation(existing, incoming)
	merged.PlaceID = placeID

	var hoursJSON any
	if len(merged.Hours) > 0 {
		b, err := json.Marshal(merged.Hours)
		if err != nil {
			return fmt.Errorf("marshal hours: %w", err)
		}
		hoursJSON = string(b)
	}

	_, err = r.db.ExecContext(ctx, upsertLocationSQL,
		merged.PlaceID, merged.DataID, merged.Name, merged.Address, merged.Phone,
		valF64(merged.Lat), valF64(merged.Lng), valInt(merged.PriceLevel),
		valF64(merged.Rating), valInt(merged.ReviewCount),
		merged.MapsURL, merged.Website, hoursJSON,
	)
	return err
}

func (r *LocationRepo) List(ctx context.Context) ([]domain.LocationSummary, error) {
	rows, err := r.db.QueryContext(ctx, listLocationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LocationSummary
	for rows.Next() {
		var s domain.LocationSummary
		if err := rows.Scan(&s.PlaceID, &s.Name, &s.ReviewCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *LocationRepo) Delete(ctx context.Context, placeID string) error {
	_, err := r.db.ExecContext(ctx, deleteLocationSQL, placeID)
	return err
}

func (r *LocationRepo) LiveStats(ctx context.Context, placeID string) (domain.Stats, error) {
	q := liveStatsSQL
	args := []any{}
	if placeID != "" {
		q += " AND place_id = ?"
		args = append(args, placeID)
	}
	var s domain.Stats
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&s.Count, &s.AverageRating); err != nil {
		return domain.Stats{}, err
	}
	return s, nil
}
