package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/metrics"
	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

var ErrProfileNotFound = errors.New("search profile not found")

// ProfileStore is the read side the orchestrator pages through. FetchProfiles
// must return a stable order across calls within one pass.
type ProfileStore interface {
	FetchProfiles(limit, offset int) ([]models.SearchProfile, error)
	GetProfile(id uuid.UUID) (*models.SearchProfile, error)
}

type RunStore interface {
	CreateMatchingRun(algorithmVersion string) (*models.MatchingRun, error)
}

// CacheInvalidator drops cached match overviews after a profile gains new
// matches. Optional; a nil invalidator is a no-op.
type CacheInvalidator interface {
	InvalidateMatches(ctx context.Context, profileID uuid.UUID) error
}

type RunStats struct {
	RunID             uuid.UUID
	ProfilesProcessed int
	ProfilesFailed    int
	MatchesInserted   int
	MatchesSkipped    int
}

type Orchestrator struct {
	profiles  ProfileStore
	runs      RunStore
	scorer    *Scorer
	persister *Persister
	cache     CacheInvalidator
	pageSize  int
}

func NewOrchestrator(profiles ProfileStore, runs RunStore, scorer *Scorer, persister *Persister, cache CacheInvalidator, pageSize int) *Orchestrator {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Orchestrator{
		profiles:  profiles,
		runs:      runs,
		scorer:    scorer,
		persister: persister,
		cache:     cache,
		pageSize:  pageSize,
	}
}

// Run drives one full matching pass over all profiles. One MatchingRun row is
// created on the first non-empty page and shared by every profile in the
// pass. Profiles within a page run concurrently; pages are sequential. A
// failing profile never aborts its siblings: the failure is counted and the
// pass continues.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{}
	var run *models.MatchingRun

	for offset := 0; ; offset += o.pageSize {
		page, err := o.profiles.FetchProfiles(o.pageSize, offset)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch profile page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		if run == nil {
			run, err = o.runs.CreateMatchingRun(o.scorer.cfg.AlgorithmVersion())
			if err != nil {
				return stats, fmt.Errorf("failed to create matching run: %w", err)
			}
			stats.RunID = run.ID
		}

		o.processPage(ctx, page, run, stats)
	}

	logger.Info("Matching pass finished",
		zap.Int("profiles_processed", stats.ProfilesProcessed),
		zap.Int("profiles_failed", stats.ProfilesFailed),
		zap.Int("matches_inserted", stats.MatchesInserted),
		zap.Int("matches_skipped", stats.MatchesSkipped),
		zap.Duration("elapsed", time.Since(start)),
	)

	return stats, nil
}

func (o *Orchestrator) processPage(ctx context.Context, page []models.SearchProfile, run *models.MatchingRun, stats *RunStats) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := range page {
		profile := page[i]
		wg.Add(1)

		go func() {
			defer wg.Done()

			inserted, skipped, err := o.matchOne(ctx, &profile, run)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.ProfilesFailed++
				metrics.ProfileFailures.Inc()
				logger.Error("Profile matching failed",
					zap.String("profile_id", profile.ID.String()),
					zap.Error(err),
				)
				return
			}
			stats.ProfilesProcessed++
			stats.MatchesInserted += inserted
			stats.MatchesSkipped += skipped
		}()
	}

	wg.Wait()
}

func (o *Orchestrator) matchOne(ctx context.Context, profile *models.SearchProfile, run *models.MatchingRun) (int, int, error) {
	start := time.Now()

	ranked, explanations, err := o.scorer.Score(ctx, profile)
	if err != nil {
		return 0, 0, err
	}
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	inserted, skipped := o.persister.PersistRanked(profile.ID, ranked, explanations, run)
	metrics.MatchesInserted.Add(float64(inserted))
	metrics.MatchesSkipped.Add(float64(skipped))
	metrics.ProfilesMatched.Inc()

	if o.cache != nil {
		if err := o.cache.InvalidateMatches(ctx, profile.ID); err != nil {
			logger.Warn("Failed to invalidate match cache",
				zap.String("profile_id", profile.ID.String()),
				zap.Error(err),
			)
		}
	}

	return inserted, skipped, nil
}

// MatchProfile runs score-then-persist for a single profile with its own
// matching run. Returns ErrProfileNotFound when the profile is missing.
func (o *Orchestrator) MatchProfile(ctx context.Context, profileID uuid.UUID) (*RunStats, error) {
	profile, err := o.profiles.GetProfile(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	run, err := o.runs.CreateMatchingRun(o.scorer.cfg.AlgorithmVersion())
	if err != nil {
		return nil, fmt.Errorf("failed to create matching run: %w", err)
	}

	inserted, skipped, err := o.matchOne(ctx, profile, run)
	if err != nil {
		return nil, err
	}

	return &RunStats{
		RunID:             run.ID,
		ProfilesProcessed: 1,
		MatchesInserted:   inserted,
		MatchesSkipped:    skipped,
	}, nil
}
