package matching

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/storage/models"
)

type fakeMatchStore struct {
	inserted []models.Match
	existing map[uuid.UUID]bool
	failOn   map[uuid.UUID]error
}

func (f *fakeMatchStore) InsertMatch(m *models.Match) (bool, error) {
	if err := f.failOn[m.ArticleID]; err != nil {
		return false, err
	}
	if f.existing[m.ArticleID] {
		return false, nil
	}
	f.inserted = append(f.inserted, *m)
	return true, nil
}

func rankedFixture(n int) ([]RankedMatch, map[uuid.UUID]Explanation) {
	ranked := make([]RankedMatch, 0, n)
	explanations := make(map[uuid.UUID]Explanation, n)
	for i := 0; i < n; i++ {
		articleID := uuid.New()
		ranked = append(ranked, RankedMatch{
			ArticleID: articleID,
			TopicID:   uuid.New(),
			Score:     1.0 - float64(i)*0.1,
		})
		explanations[articleID] = Explanation{
			ArticleID: articleID,
			Topics:    []TopicScore{{TopicName: "Finance", Score: 1.0 - float64(i)*0.1}},
		}
	}
	return ranked, explanations
}

func TestPersistRanked_AssignsSortingOrder(t *testing.T) {
	store := &fakeMatchStore{}
	ranked, explanations := rankedFixture(3)
	run := &models.MatchingRun{ID: uuid.New()}

	inserted, skipped := NewPersister(store).PersistRanked(uuid.New(), ranked, explanations, run)

	assert.Equal(t, 3, inserted)
	assert.Equal(t, 0, skipped)
	for i, m := range store.inserted {
		assert.Equal(t, i, m.SortingOrder)
		assert.Equal(t, run.ID, m.MatchingRunID)
		assert.Equal(t, ranked[i].ArticleID, m.ArticleID)
	}
}

func TestPersistRanked_SkipsDoNotConsumeSlots(t *testing.T) {
	ranked, explanations := rankedFixture(3)
	store := &fakeMatchStore{
		existing: map[uuid.UUID]bool{ranked[1].ArticleID: true},
	}
	run := &models.MatchingRun{ID: uuid.New()}

	inserted, skipped := NewPersister(store).PersistRanked(uuid.New(), ranked, explanations, run)

	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, skipped)

	// The article after the skip takes order 1, not 2.
	assert.Equal(t, 0, store.inserted[0].SortingOrder)
	assert.Equal(t, 1, store.inserted[1].SortingOrder)
	assert.Equal(t, ranked[2].ArticleID, store.inserted[1].ArticleID)
}

func TestPersistRanked_SecondRunInsertsNothing(t *testing.T) {
	ranked, explanations := rankedFixture(2)
	store := &fakeMatchStore{existing: map[uuid.UUID]bool{}}
	run := &models.MatchingRun{ID: uuid.New()}
	persister := NewPersister(store)

	inserted, _ := persister.PersistRanked(uuid.New(), ranked, explanations, run)
	assert.Equal(t, 2, inserted)

	for _, m := range store.inserted {
		store.existing[m.ArticleID] = true
	}

	secondRun := &models.MatchingRun{ID: uuid.New()}
	inserted, skipped := persister.PersistRanked(uuid.New(), ranked, explanations, secondRun)

	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 2, len(store.inserted))
}

func TestPersistRanked_InsertErrorDoesNotAbortBatch(t *testing.T) {
	ranked, explanations := rankedFixture(3)
	store := &fakeMatchStore{
		failOn: map[uuid.UUID]error{ranked[0].ArticleID: errors.New("disk full")},
	}
	run := &models.MatchingRun{ID: uuid.New()}

	inserted, skipped := NewPersister(store).PersistRanked(uuid.New(), ranked, explanations, run)

	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, skipped)
}

func TestPersistRanked_CommentCarriesExplanation(t *testing.T) {
	store := &fakeMatchStore{}
	ranked, explanations := rankedFixture(1)
	run := &models.MatchingRun{ID: uuid.New()}

	NewPersister(store).PersistRanked(uuid.New(), ranked, explanations, run)

	var exp Explanation
	err := json.Unmarshal([]byte(store.inserted[0].Comment), &exp)
	assert.Equal(t, nil, err)
	assert.Equal(t, ranked[0].ArticleID, exp.ArticleID)
	assert.Equal(t, "Finance", exp.Topics[0].TopicName)
}
