// Package pipeline orchestrates the location reconciliation sequence:
// address preprocessing → postal standardization → geocode enrichment →
// field merge with precedence rules → status/error aggregation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/address-correction-service/internal/domain"
	"github.com/couchcryptid/address-correction-service/internal/observability"
)

// MaxBatchSize caps records per bulk correction request.
const MaxBatchSize = 100

// PostalCorrector standardizes a street address against the postal
// authority. It never returns an error; failures are tagged in the result.
type PostalCorrector interface {
	CorrectAddress(ctx context.Context, in domain.AddressInput) domain.AddressResult
}

// Geocoder resolves addresses and coordinates against the mapping provider.
type Geocoder interface {
	EnsureValidGeo(ctx context.Context, in domain.GeoInput) domain.GeoResult
	ReverseGeocode(ctx context.Context, geo domain.GeoPoint) (*domain.GeoResult, error)
	FetchCountyByCoordinates(ctx context.Context, geo domain.GeoPoint) (string, error)
}

// Publisher delivers corrected records to downstream consumers.
type Publisher interface {
	PublishCorrected(ctx context.Context, records []domain.Location) error
}

// Service is the reconciliation pipeline entry point the host invokes per
// incoming location payload.
type Service struct {
	postal    PostalCorrector
	geocoder  Geocoder
	publisher Publisher // optional
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates the pipeline service. publisher may be nil when downstream
// publishing is disabled.
func New(postal PostalCorrector, geocoder Geocoder, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		postal:    postal,
		geocoder:  geocoder,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness reports whether the service can take traffic.
func (s *Service) CheckReadiness(_ context.Context) error { return nil }

// CorrectLocation reconciles one location record. It never panics or returns
// an error: every outcome is a fully-formed record with Status and, on
// failure, a diagnostic Error. Geometry is always present; the sentinel
// (0,0) means nothing resolved.
func (s *Service) CorrectLocation(ctx context.Context, rec domain.Location) (out domain.Location) {
	start := time.Now()
	defer func() {
		s.metrics.CorrectionDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			s.logger.Error("location correction panic", "panic", r)
			out = rec
			out.Geo = domain.SentinelPoint()
			out.Status = false
			out.Error = fmt.Sprintf("unexpected error correcting location: %v", r)
		}
		outcome := "failure"
		if out.Status {
			outcome = "success"
		}
		s.metrics.CorrectionsTotal.WithLabelValues(outcome).Inc()
	}()

	work := rec
	hadCoordinates := !rec.Geo.IsSentinel()
	hadCityOrZip := rec.City != "" || rec.ZipCode != ""

	// The unformatted snapshot is derived from the original input exactly
	// once and never recomputed.
	if work.UnformattedAddress == "" {
		work.UnformattedAddress = domain.JoinNonEmpty(", ", rec.StreetAddress, rec.City, rec.State, rec.ZipCode)
	}

	// Coordinates-only input: reverse-geocode first so postal
	// standardization has a chance to run meaningfully if the lookup
	// surfaces a city or ZIP.
	if hadCoordinates && !hadCityOrZip {
		if r, err := s.geocoder.ReverseGeocode(ctx, work.Geo); err != nil {
			s.logger.Warn("reverse geocode priming failed",
				"lat", work.Geo.Lat(), "lng", work.Geo.Lng(), "error", err)
		} else if r != nil {
			if work.City == "" {
				work.City = r.City
			}
			if work.ZipCode == "" {
				work.ZipCode = r.ZipCode
			}
			if work.County == "" {
				work.County = r.County
			}
			if work.FormattedAddress == "" {
				work.FormattedAddress = r.FormattedAddress
			}
		}
	}

	// Postal standardization is skipped only when there is still no city or
	// ZIP to validate against; calling it would only fail. The vacuous
	// success keeps the downstream merge uniform.
	postalRes := domain.AddressResult{Status: true}
	skipPostal := hadCoordinates && work.City == "" && work.ZipCode == ""
	if !skipPostal {
		postalRes = s.postal.CorrectAddress(ctx, domain.AddressInput{
			StreetAddress: work.StreetAddress,
			City:          work.City,
			State:         work.State,
			ZipCode:       work.ZipCode,
		})
		work = domain.MergePostal(work, postalRes.Location)
	}

	work.County = domain.StripCountySuffix(work.County)

	// Geocoding needs a non-empty formatted address to resolve.
	if work.FormattedAddress == "" {
		work.FormattedAddress = domain.JoinNonEmpty(", ", work.StreetAddress, work.City, work.State, work.ZipCode)
	}

	geoRes := s.geocoder.EnsureValidGeo(ctx, domain.GeoInput{
		Geo:              work.Geo,
		FormattedAddress: work.FormattedAddress,
	})
	work = domain.MergeGeocode(work, geoRes)

	// Second-chance county enrichment, covering the reverse-geocoding-first
	// path where the primed result carried no county.
	if work.County == "" && !work.Geo.IsSentinel() {
		if county, err := s.geocoder.FetchCountyByCoordinates(ctx, work.Geo); err != nil {
			s.logger.Warn("county enrichment failed", "error", err)
		} else if county != "" {
			work.County = county
		}
	}

	// First non-empty error wins: postal before geocode.
	errStr := postalRes.Error
	if errStr == "" {
		errStr = geoRes.Error
	}

	hasCompleteAddress := work.StreetAddress != "" &&
		(work.City != "" || work.ZipCode != "") &&
		work.State != ""

	// Geocoding success is always required; postal failure is forgiven when
	// the merged record is complete, or when the original request was a
	// pure-coordinates lookup never expected to pass postal validation.
	status := geoRes.Status &&
		(postalRes.Status || hasCompleteAddress || (hadCoordinates && !hadCityOrZip))

	normalized := ""
	if work.FormattedAddress != "" {
		normalized = domain.NormalizeAddress(work.FormattedAddress)
	}

	// Built field-by-field so no stray field from a merge source can leak
	// into the output and overwrite the computed status.
	return domain.Location{
		StreetAddress:      work.StreetAddress,
		City:               work.City,
		State:              work.State,
		ZipCode:            work.ZipCode,
		County:             work.County,
		Geo:                work.Geo,
		FormattedAddress:   work.FormattedAddress,
		NormalizedAddress:  normalized,
		UnformattedAddress: work.UnformattedAddress,
		Status:             status,
		Error:              errStr,
	}
}

// CorrectBatch corrects up to MaxBatchSize records, isolating per-item
// failures: one record's failure never aborts the batch. Successfully
// corrected records are published downstream when a publisher is configured.
func (s *Service) CorrectBatch(ctx context.Context, records []domain.Location) []domain.Location {
	s.metrics.BatchSize.Observe(float64(len(records)))

	out := make([]domain.Location, len(records))
	for i, rec := range records {
		out[i] = s.CorrectLocation(ctx, rec)
	}
	s.publishCorrected(ctx, out)
	return out
}

// CorrectOne corrects a single record and publishes it if successful.
func (s *Service) CorrectOne(ctx context.Context, rec domain.Location) domain.Location {
	result := s.CorrectLocation(ctx, rec)
	s.publishCorrected(ctx, []domain.Location{result})
	return result
}

func (s *Service) publishCorrected(ctx context.Context, records []domain.Location) {
	if s.publisher == nil {
		return
	}
	corrected := make([]domain.Location, 0, len(records))
	for _, rec := range records {
		if rec.Status {
			corrected = append(corrected, rec)
		}
	}
	if len(corrected) == 0 {
		return
	}
	if err := s.publisher.PublishCorrected(ctx, corrected); err != nil {
		s.logger.Warn("publishing corrected locations failed",
			"count", len(corrected), "error", err)
	}
}
