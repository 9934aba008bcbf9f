package repository

import (
	"context"

	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReferenceRepository reads airline and airport display data.
type ReferenceRepository interface {
	AirlinesByCodes(ctx context.Context, codes []string) ([]domain.Airline, error)
	AirportsByCodes(ctx context.Context, codes []string) ([]domain.Airport, error)
}

type PGReferenceRepository struct {
	db *pgxpool.Pool
}

func NewReferenceRepository(db *pgxpool.Pool) ReferenceRepository {
	return &PGReferenceRepository{db: db}
}

func (r *PGReferenceRepository) AirlinesByCodes(ctx context.Context, codes []string) ([]domain.Airline, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, code, name_en, name_ar FROM airlines WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	airlines := make([]domain.Airline, 0, len(codes))
	for rows.Next() {
		var a domain.Airline
		if err := rows.Scan(&a.ID, &a.Code, &a.Name.En, &a.Name.Ar); err != nil {
			return nil, err
		}
		a.Image = domain.AirlineLogoURL(a.Code)
		airlines = append(airlines, a)
	}
	return airlines, rows.Err()
}

func (r *PGReferenceRepository) AirportsByCodes(ctx context.Context, codes []string) ([]domain.Airport, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, code, name_en, name_ar, city_en, city_ar, country_en, country_ar FROM airports WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	airports := make([]domain.Airport, 0, len(codes))
	for rows.Next() {
		var a domain.Airport
		if err := rows.Scan(&a.ID, &a.Code, &a.Name.En, &a.Name.Ar, &a.City.En, &a.City.Ar, &a.Country.En, &a.Country.Ar); err != nil {
			return nil, err
		}
		airports = append(airports, a)
	}
	return airports, rows.Err()
}

var _ ReferenceRepository = (*PGReferenceRepository)(nil)
