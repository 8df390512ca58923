package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/format"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/IANDYI/trends-service/internal/core/trends"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// MaxTrendRange is the longest period a trend chart may cover
const MaxTrendRange = 90 * 24 * time.Hour

// TrendsService implements the trend chart computation
// Results are cached per query in an LRU cache, invalidated on ingestion.
// Each patient has a generation bumped on invalidation; a computation started
// under an older generation is never cached.
type TrendsService struct {
	patientRepo ports.PatientRepository
	readingRepo ports.ReadingRepository
	cache       *lru.Cache
	genMutex    sync.Mutex
	generations map[uuid.UUID]uint64
	logger      logrus.FieldLogger
}

// NewTrendsService creates a new trends service with a cache of cacheSize entries
func NewTrendsService(
	patientRepo ports.PatientRepository,
	readingRepo ports.ReadingRepository,
	cacheSize int,
	logger logrus.FieldLogger,
) (*TrendsService, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create trends cache: %w", err)
	}

	return &TrendsService{
		patientRepo: patientRepo,
		readingRepo: readingRepo,
		cache:       cache,
		generations: make(map[uuid.UUID]uint64),
		logger:      logger,
	}, nil
}

// GetTrendSlices computes the 30-minute slices of a patient's readings
// Values are expressed in the patient's glucose unit
func (s *TrendsService) GetTrendSlices(ctx context.Context, patientID uuid.UUID, query ports.TrendsQuery) ([]domain.Slice, error) {
	if err := validateRange(query.Start, query.End); err != nil {
		return nil, err
	}

	patient, err := loadPatient(ctx, s.patientRepo, patientID)
	if err != nil {
		return nil, err
	}

	prefs := patient.TimePrefs()
	if query.TimePrefs != nil {
		prefs = *query.TimePrefs
	}
	loc, err := format.ResolveLocation(prefs)
	if err != nil {
		return nil, err
	}

	generation := s.generation(patientID)
	key := cacheKey(patientID, generation, query, loc)
	if cached, ok := s.cache.Get(key); ok {
		trendComputationsTotal.WithLabelValues("cache_hit").Inc()
		return copySlices(cached.([]domain.Slice)), nil
	}

	stored, err := s.readingRepo.GetReadings(ctx, patientID, query.Start, query.End)
	if err != nil {
		trendComputationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get readings: %w", err)
	}

	for i := range stored {
		stored[i].Value = domain.ConvertGlucose(stored[i].Value, stored[i].Unit, patient.BgUnit)
		stored[i].Unit = patient.BgUnit
	}

	slices, err := trends.FormatCbgs(trends.ToReadings(stored, loc))
	if err != nil {
		trendComputationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to compute trend slices: %w", err)
	}
	if query.SortByTime {
		trends.SortByTime(slices)
	}

	trendComputationsTotal.WithLabelValues("computed").Inc()
	trendReadingsAggregated.Observe(float64(len(stored)))
	s.logger.WithFields(logrus.Fields{
		"patient_id": patientID.String(),
		"readings":   len(stored),
		"slices":     len(slices),
		"timezone":   loc.String(),
	}).Debug("Trend slices computed")

	s.genMutex.Lock()
	if s.generations[patientID] == generation {
		s.cache.Add(key, copySlices(slices))
	}
	s.genMutex.Unlock()
	return slices, nil
}

func (s *TrendsService) generation(patientID uuid.UUID) uint64 {
	s.genMutex.Lock()
	defer s.genMutex.Unlock()
	return s.generations[patientID]
}

// InvalidatePatient drops every cached computation of a patient
func (s *TrendsService) InvalidatePatient(patientID uuid.UUID) {
	s.genMutex.Lock()
	s.generations[patientID]++
	s.genMutex.Unlock()

	prefix := patientID.String() + "|"
	for _, k := range s.cache.Keys() {
		if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
			s.cache.Remove(k)
		}
	}
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", domain.ErrInvalidTimeRange)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start must be before end", domain.ErrInvalidTimeRange)
	}
	if end.Sub(start) > MaxTrendRange {
		return fmt.Errorf("%w: range exceeds %d days", domain.ErrInvalidTimeRange, int(MaxTrendRange.Hours()/24))
	}
	return nil
}

func cacheKey(patientID uuid.UUID, generation uint64, query ports.TrendsQuery, loc *time.Location) string {
	return fmt.Sprintf("%s|%d|%d|%d|%s|%t",
		patientID, generation, query.Start.UnixMilli(), query.End.UnixMilli(), loc.String(), query.SortByTime)
}

func copySlices(slices []domain.Slice) []domain.Slice {
	out := make([]domain.Slice, len(slices))
	copy(out, slices)
	return out
}
