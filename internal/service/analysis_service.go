package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/geo"
	"github.com/nestscore/nest-score-go/internal/models"
	"github.com/nestscore/nest-score-go/internal/quality"
	"github.com/nestscore/nest-score-go/internal/repository"
	"github.com/nestscore/nest-score-go/internal/scoring"
)

// POIProvider abstracts the hybrid merge engine for testing.
type POIProvider interface {
	FetchPOIs(ctx context.Context, lat, lon float64, opts geo.HybridOptions) (map[string][]*models.POI, *models.NatureMetrics, *geo.ProviderStatus)
}

// AnalysisOptions parameterize one analysis request.
type AnalysisOptions struct {
	ProfileKey      string
	RadiusOverrides map[string]int
	SkipCache       bool
}

// AnalysisResponse is the full payload for one analyzed location.
type AnalysisResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	Profile struct {
		Key   string `json:"key"`
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	} `json:"profile"`

	Scoring  *scoring.ScoringResult     `json:"scoring"`
	Verdict  *scoring.Verdict           `json:"verdict"`
	Baseline *scoring.NeighborhoodScore `json:"baseline"`
	Quality  *quality.Report            `json:"data_quality"`

	POIsByCategory map[string][]*models.POI `json:"pois_by_category"`
	CacheUsed      bool                     `json:"cache_used"`
	AnalysisID     int64                    `json:"analysis_id,omitempty"`
}

// poiSnapshot is what gets persisted alongside a result so a profile
// switch can rescore without refetching providers.
type poiSnapshot struct {
	POIs       map[string][]*models.POI `json:"pois"`
	Metrics    *models.NatureMetrics    `json:"metrics"`
	QuietScore float64                  `json:"quiet_score"`
	BaseScore  float64                  `json:"base_score"`
}

// AnalysisService orchestrates the full pipeline: hybrid POI fetch,
// baseline analysis, profile scoring, verdict and data quality report.
type AnalysisService struct {
	provider POIProvider
	repo     *repository.AnalysisRepository
	analyzer *scoring.BaselineAnalyzer
	verdicts *scoring.VerdictGenerator
	reporter *quality.Reporter
	logger   *zap.Logger

	analysisTTL      time.Duration
	enableFallback   bool
	enableEnrichment bool
}

// NewAnalysisService wires the pipeline. repo may be nil to disable
// persistence and rescore-from-snapshot.
func NewAnalysisService(
	provider POIProvider,
	repo *repository.AnalysisRepository,
	analysisTTL time.Duration,
	enableFallback, enableEnrichment bool,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		provider:         provider,
		repo:             repo,
		analyzer:         scoring.NewBaselineAnalyzer(),
		verdicts:         scoring.NewVerdictGenerator(),
		reporter:         quality.NewReporter(logger),
		logger:           logger,
		analysisTTL:      analysisTTL,
		enableFallback:   enableFallback,
		enableEnrichment: enableEnrichment,
	}
}

// Analyze runs the full analysis for a location and profile. Cached
// snapshots within the TTL are reused unless opts.SkipCache is set.
func (s *AnalysisService) Analyze(ctx context.Context, lat, lon float64, opts AnalysisOptions) (*AnalysisResponse, error) {
	if err := validateCoords(lat, lon); err != nil {
		return nil, err
	}

	profile := scoring.GetProfile(opts.ProfileKey).WithRadiusOverrides(opts.RadiusOverrides)
	fetchRadius := profile.MaxRadius()

	if !opts.SkipCache && s.repo != nil && len(opts.RadiusOverrides) == 0 {
		if resp, err := s.rescoreFromSnapshot(lat, lon, profile, fetchRadius); err != nil {
			s.logger.Warn("snapshot lookup failed, refetching", zap.Error(err))
		} else if resp != nil {
			return resp, nil
		}
	}

	pois, metrics, status := s.provider.FetchPOIs(ctx, lat, lon, geo.HybridOptions{
		FetchRadiusM:     fetchRadius,
		CategoryRadii:    profile.RadiusM,
		EnableFallback:   s.enableFallback,
		EnableEnrichment: s.enableEnrichment,
	})

	baseline := s.analyzer.Analyze(pois, metrics)

	engine := scoring.NewEngine(profile, s.logger)
	base := baseline.TotalScore
	result := engine.Calculate(pois, baseline.QuietScore, metrics, &base)

	verdict := s.verdicts.Generate(result, profile)
	report := s.reporter.Build(pois, profile.RadiusM, status, false, profile.Weights)

	resp := s.buildResponse(lat, lon, profile, result, verdict, baseline, report, pois, false)

	if s.repo != nil {
		if id, err := s.persist(lat, lon, fetchRadius, profile.Key, result, pois, metrics, baseline); err != nil {
			s.logger.Warn("failed to persist analysis", zap.Error(err))
		} else {
			resp.AnalysisID = id
		}
	}

	s.logger.Info("analysis completed",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("profile", profile.Key),
		zap.Float64("total_score", result.TotalScore),
		zap.String("verdict", verdict.Level))

	return resp, nil
}

// Rescore recomputes scores for a new profile from a persisted POI
// snapshot, without calling any provider. Falls back to a full analysis
// when no snapshot exists.
func (s *AnalysisService) Rescore(ctx context.Context, lat, lon float64, opts AnalysisOptions) (*AnalysisResponse, error) {
	if err := validateCoords(lat, lon); err != nil {
		return nil, err
	}

	profile := scoring.GetProfile(opts.ProfileKey).WithRadiusOverrides(opts.RadiusOverrides)
	fetchRadius := scoring.GetProfile(opts.ProfileKey).MaxRadius()

	if s.repo != nil {
		record, err := s.repo.FindSnapshotForRescore(lat, lon, fetchRadius)
		if err != nil {
			return nil, fmt.Errorf("failed to look up snapshot: %w", err)
		}
		if record != nil {
			resp, err := s.scoreSnapshot(record, profile)
			if err == nil {
				return resp, nil
			}
			s.logger.Warn("snapshot rescore failed, refetching", zap.Error(err))
		}
	}

	return s.Analyze(ctx, lat, lon, opts)
}

// GetAnalysis returns a persisted analysis with its stored scoring result.
func (s *AnalysisService) GetAnalysis(id int64) (*models.AnalysisRecord, *scoring.ScoringResult, error) {
	if s.repo == nil {
		return nil, nil, fmt.Errorf("persistence is disabled")
	}
	record, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	var result scoring.ScoringResult
	if err := json.Unmarshal([]byte(record.ResultJSON), &result); err != nil {
		return nil, nil, fmt.Errorf("corrupt stored result %d: %w", id, err)
	}
	return record, &result, nil
}

// CleanupExpired removes expired analysis rows.
func (s *AnalysisService) CleanupExpired() (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteExpired()
}

// rescoreFromSnapshot serves Analyze cache hits. An unexpired record for
// the exact profile is preferred; failing that, any snapshot at the same
// grid cell and fetch radius can be scored for the requested profile.
func (s *AnalysisService) rescoreFromSnapshot(lat, lon float64, profile *scoring.ProfileConfig, fetchRadius int) (*AnalysisResponse, error) {
	record, err := s.repo.FindCached(lat, lon, fetchRadius, profile.Key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record, err = s.repo.FindSnapshotForRescore(lat, lon, fetchRadius)
		if err != nil || record == nil {
			return nil, err
		}
	}
	return s.scoreSnapshot(record, profile)
}

func (s *AnalysisService) scoreSnapshot(record *models.AnalysisRecord, profile *scoring.ProfileConfig) (*AnalysisResponse, error) {
	var snapshot poiSnapshot
	if err := json.Unmarshal([]byte(record.POIsJSON), &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt poi snapshot %d: %w", record.ID, err)
	}

	engine := scoring.NewEngine(profile, s.logger)
	base := snapshot.BaseScore
	result := engine.Calculate(snapshot.POIs, snapshot.QuietScore, snapshot.Metrics, &base)

	verdict := s.verdicts.Generate(result, profile)
	baseline := s.analyzer.Analyze(snapshot.POIs, snapshot.Metrics)
	report := s.reporter.Build(snapshot.POIs, profile.RadiusM, nil, true, profile.Weights)

	resp := s.buildResponse(record.Lat, record.Lon, profile, result, verdict, baseline, report, snapshot.POIs, true)
	resp.AnalysisID = record.ID

	s.logger.Info("rescored from snapshot",
		zap.Int64("analysis_id", record.ID),
		zap.String("profile", profile.Key),
		zap.Float64("total_score", result.TotalScore))

	return resp, nil
}

func (s *AnalysisService) persist(
	lat, lon float64,
	fetchRadius int,
	profileKey string,
	result *scoring.ScoringResult,
	pois map[string][]*models.POI,
	metrics *models.NatureMetrics,
	baseline *scoring.NeighborhoodScore,
) (int64, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	snapshotJSON, err := json.Marshal(poiSnapshot{
		POIs:       pois,
		Metrics:    metrics,
		QuietScore: baseline.QuietScore,
		BaseScore:  baseline.TotalScore,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	record := &models.AnalysisRecord{
		Lat:        lat,
		Lon:        lon,
		RadiusM:    fetchRadius,
		ProfileKey: profileKey,
		ResultJSON: string(resultJSON),
		POIsJSON:   string(snapshotJSON),
		QuietScore: baseline.QuietScore,
		BaseScore:  baseline.TotalScore,
		ExpiresAt:  time.Now().Add(s.analysisTTL),
	}
	if err := s.repo.Create(record); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func (s *AnalysisService) buildResponse(
	lat, lon float64,
	profile *scoring.ProfileConfig,
	result *scoring.ScoringResult,
	verdict *scoring.Verdict,
	baseline *scoring.NeighborhoodScore,
	report *quality.Report,
	pois map[string][]*models.POI,
	cacheUsed bool,
) *AnalysisResponse {
	resp := &AnalysisResponse{
		Lat:            lat,
		Lon:            lon,
		Scoring:        result,
		Verdict:        verdict,
		Baseline:       baseline,
		Quality:        report,
		POIsByCategory: pois,
		CacheUsed:      cacheUsed,
	}
	resp.Profile.Key = profile.Key
	resp.Profile.Name = profile.Name
	resp.Profile.Emoji = profile.Emoji
	return resp
}

func validateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude out of range: %f", lon)
	}
	return nil
}
