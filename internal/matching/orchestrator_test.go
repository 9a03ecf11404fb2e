package matching

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/similarity"
	"github.com/newsradar/backend/internal/storage/models"
)

type fakeProfileStore struct {
	profiles []models.SearchProfile
	fetchErr error
}

func (f *fakeProfileStore) FetchProfiles(limit, offset int) ([]models.SearchProfile, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if offset >= len(f.profiles) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.profiles) {
		end = len(f.profiles)
	}
	return f.profiles[offset:end], nil
}

func (f *fakeProfileStore) GetProfile(id uuid.UUID) (*models.SearchProfile, error) {
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			return &f.profiles[i], nil
		}
	}
	return nil, nil
}

type fakeRunStore struct {
	runs []models.MatchingRun
}

func (f *fakeRunStore) CreateMatchingRun(algorithmVersion string) (*models.MatchingRun, error) {
	run := models.MatchingRun{
		ID:               uuid.New(),
		Counter:          int64(len(f.runs) + 1),
		AlgorithmVersion: algorithmVersion,
	}
	f.runs = append(f.runs, run)
	return &run, nil
}

type fakeInvalidator struct {
	mu       sync.Mutex
	profiles []uuid.UUID
}

func (f *fakeInvalidator) InvalidateMatches(_ context.Context, profileID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, profileID)
	return nil
}

type syncMatchStore struct {
	mu       sync.Mutex
	inserted []models.Match
}

func (s *syncMatchStore) InsertMatch(m *models.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, *m)
	return true, nil
}

func profileWithTopic(name, keyword string) models.SearchProfile {
	return models.SearchProfile{
		ID:   uuid.New(),
		Name: name,
		Topics: []models.Topic{{
			ID:       uuid.New(),
			Name:     name,
			Keywords: []models.Keyword{{ID: uuid.New(), Name: keyword}},
		}},
	}
}

func TestRun_SharesOneMatchingRunAcrossPages(t *testing.T) {
	profiles := &fakeProfileStore{profiles: []models.SearchProfile{
		profileWithTopic("Energy", "solar"),
		profileWithTopic("Health", "vaccines"),
		profileWithTopic("Finance", "stocks"),
	}}
	runs := &fakeRunStore{}
	store := &syncMatchStore{}
	article := uuid.New()

	source := &fakeSource{results: map[string][]similarity.ScoredDocument{
		"Topic Energy: solar":    {{ArticleID: article, Score: 0.6}},
		"Topic Health: vaccines": {{ArticleID: article, Score: 0.7}},
		"Topic Finance: stocks":  {{ArticleID: article, Score: 0.8}},
	}}

	// Page size 2 forces two pages.
	orch := NewOrchestrator(profiles, runs, NewScorer(source, DefaultConfig()), NewPersister(store), nil, 2)

	stats, err := orch.Run(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(runs.runs))
	assert.Equal(t, runs.runs[0].ID, stats.RunID)
	assert.Equal(t, 3, stats.ProfilesProcessed)
	assert.Equal(t, 0, stats.ProfilesFailed)
	assert.Equal(t, 3, stats.MatchesInserted)

	for _, m := range store.inserted {
		assert.Equal(t, runs.runs[0].ID, m.MatchingRunID)
	}
}

func TestRun_NoProfilesCreatesNoRun(t *testing.T) {
	runs := &fakeRunStore{}
	orch := NewOrchestrator(&fakeProfileStore{}, runs, NewScorer(&fakeSource{}, DefaultConfig()), NewPersister(&syncMatchStore{}), nil, 10)

	stats, err := orch.Run(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(runs.runs))
	assert.Equal(t, uuid.Nil, stats.RunID)
	assert.Equal(t, 0, stats.ProfilesProcessed)
}

func TestRun_FailingProfileDoesNotAbortSiblings(t *testing.T) {
	good := profileWithTopic("Energy", "solar")
	bad := profileWithTopic("Health", "vaccines")
	profiles := &fakeProfileStore{profiles: []models.SearchProfile{bad, good}}
	runs := &fakeRunStore{}
	store := &syncMatchStore{}
	article := uuid.New()

	source := &fakeSource{
		results: map[string][]similarity.ScoredDocument{
			"Topic Energy: solar": {{ArticleID: article, Score: 0.6}},
		},
		errs: map[string]error{
			"Topic Health: vaccines": errors.New("index unavailable"),
		},
	}

	orch := NewOrchestrator(profiles, runs, NewScorer(source, DefaultConfig()), NewPersister(store), nil, 10)

	stats, err := orch.Run(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, stats.ProfilesProcessed)
	assert.Equal(t, 1, stats.ProfilesFailed)
	assert.Equal(t, 1, stats.MatchesInserted)
	assert.Equal(t, good.ID, store.inserted[0].SearchProfileID)
}

func TestRun_FetchErrorAbortsPass(t *testing.T) {
	profiles := &fakeProfileStore{fetchErr: errors.New("db gone")}
	orch := NewOrchestrator(profiles, &fakeRunStore{}, NewScorer(&fakeSource{}, DefaultConfig()), NewPersister(&syncMatchStore{}), nil, 10)

	_, err := orch.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_InvalidatesCachePerProfile(t *testing.T) {
	profile := profileWithTopic("Energy", "solar")
	profiles := &fakeProfileStore{profiles: []models.SearchProfile{profile}}
	cache := &fakeInvalidator{}

	source := &fakeSource{results: map[string][]similarity.ScoredDocument{
		"Topic Energy: solar": {{ArticleID: uuid.New(), Score: 0.6}},
	}}

	orch := NewOrchestrator(profiles, &fakeRunStore{}, NewScorer(source, DefaultConfig()), NewPersister(&syncMatchStore{}), cache, 10)

	_, err := orch.Run(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, []uuid.UUID{profile.ID}, cache.profiles)
}

func TestMatchProfile_UnknownProfile(t *testing.T) {
	orch := NewOrchestrator(&fakeProfileStore{}, &fakeRunStore{}, NewScorer(&fakeSource{}, DefaultConfig()), NewPersister(&syncMatchStore{}), nil, 10)

	_, err := orch.MatchProfile(context.Background(), uuid.New())
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestMatchProfile_CreatesOwnRun(t *testing.T) {
	profile := profileWithTopic("Energy", "solar")
	profiles := &fakeProfileStore{profiles: []models.SearchProfile{profile}}
	runs := &fakeRunStore{}
	store := &syncMatchStore{}

	source := &fakeSource{results: map[string][]similarity.ScoredDocument{
		"Topic Energy: solar": {{ArticleID: uuid.New(), Score: 0.6}},
	}}

	orch := NewOrchestrator(profiles, runs, NewScorer(source, DefaultConfig()), NewPersister(store), nil, 10)

	stats, err := orch.MatchProfile(context.Background(), profile.ID)

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(runs.runs))
	assert.Equal(t, runs.runs[0].ID, stats.RunID)
	assert.Equal(t, "V1_TOPIC_WEIGHTS_0.7_KEYWORD_WEIGHTS_0.3", runs.runs[0].AlgorithmVersion)
	assert.Equal(t, 1, stats.MatchesInserted)
}
