package reference

import (
	"context"

	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/Domenick1991/airsettle/internal/repository"
	"go.uber.org/zap"
)

// ReferenceUseCase resolves carrier and airport codes to display records.
// Codes with no match are left out of the result.
type ReferenceUseCase interface {
	Airlines(ctx context.Context, codes []string) (map[string]domain.Airline, error)
	Airports(ctx context.Context, codes []string) (map[string]domain.Airport, error)
}

type ReferenceCache interface {
	GetAirlines(ctx context.Context, codes []string) (map[string]domain.Airline, []string, error)
	SetAirlines(ctx context.Context, airlines []domain.Airline) error
	GetAirports(ctx context.Context, codes []string) (map[string]domain.Airport, []string, error)
	SetAirports(ctx context.Context, airports []domain.Airport) error
}

type ReferenceService struct {
	repo  repository.ReferenceRepository
	cache ReferenceCache
	log   *zap.Logger
}

func NewReferenceService(repo repository.ReferenceRepository, cache ReferenceCache, log *zap.Logger) *ReferenceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferenceService{repo: repo, cache: cache, log: log}
}

func (s *ReferenceService) Airlines(ctx context.Context, codes []string) (map[string]domain.Airline, error) {
	result := make(map[string]domain.Airline, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	missing := codes
	if s.cache != nil {
		cached, rest, err := s.cache.GetAirlines(ctx, codes)
		if err != nil {
			s.log.Warn("airline cache read failed", zap.Error(err))
		} else {
			for code, a := range cached {
				result[code] = a
			}
			missing = rest
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	airlines, err := s.repo.AirlinesByCodes(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, a := range airlines {
		result[a.Code] = a
	}
	if s.cache != nil && len(airlines) > 0 {
		if err := s.cache.SetAirlines(ctx, airlines); err != nil {
			s.log.Warn("airline cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (s *ReferenceService) Airports(ctx context.Context, codes []string) (map[string]domain.Airport, error) {
	result := make(map[string]domain.Airport, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	missing := codes
	if s.cache != nil {
		cached, rest, err := s.cache.GetAirports(ctx, codes)
		if err != nil {
			s.log.Warn("airport cache read failed", zap.Error(err))
		} else {
			for code, a := range cached {
				result[code] = a
			}
			missing = rest
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	airports, err := s.repo.AirportsByCodes(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, a := range airports {
		result[a.Code] = a
	}
	if s.cache != nil && len(airports) > 0 {
		if err := s.cache.SetAirports(ctx, airports); err != nil {
			s.log.Warn("airport cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

var _ ReferenceUseCase = (*ReferenceService)(nil)
