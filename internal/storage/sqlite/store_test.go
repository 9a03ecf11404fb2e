package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.InitSchema(); err != nil {
		t.Fatal(err)
	}
	return client
}

type seeded struct {
	org     models.Organization
	sub     models.Subscription
	profile models.SearchProfile
	article models.Article
	run     *models.MatchingRun
}

func seed(t *testing.T, c *Client) seeded {
	t.Helper()

	org := models.Organization{ID: uuid.New(), Name: "Acme Media"}
	if err := c.InsertOrganization(&org); err != nil {
		t.Fatal(err)
	}

	sub := models.Subscription{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Name:           "Energy Wire",
		URL:            "https://energywire.example/feed.xml",
		Active:         true,
	}
	if err := c.InsertSubscription(&sub); err != nil {
		t.Fatal(err)
	}

	profile := models.SearchProfile{
		ID:             uuid.New(),
		Name:           "energy watch",
		OrganizationID: org.ID,
		Language:       "en",
		Topics: []models.Topic{{
			ID:       uuid.New(),
			Name:     "Energy",
			Keywords: []models.Keyword{{ID: uuid.New(), Name: "solar"}},
		}},
		SubscriptionIDs: []uuid.UUID{sub.ID},
	}
	if err := c.InsertProfile(&profile); err != nil {
		t.Fatal(err)
	}

	article := models.Article{
		ID:             uuid.New(),
		URL:            "https://energywire.example/articles/1",
		Title:          "Solar output hits record",
		Content:        "full text",
		PublishedAt:    time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		SubscriptionID: sub.ID,
		Status:         models.StatusScraped,
	}
	if _, err := c.InsertArticle(&article); err != nil {
		t.Fatal(err)
	}

	run, err := c.CreateMatchingRun("V1_TOPIC_WEIGHTS_0.7_KEYWORD_WEIGHTS_0.3")
	if err != nil {
		t.Fatal(err)
	}

	return seeded{org: org, sub: sub, profile: profile, article: article, run: run}
}

func (s seeded) match() *models.Match {
	return &models.Match{
		ID:              uuid.New(),
		ArticleID:       s.article.ID,
		SearchProfileID: s.profile.ID,
		TopicID:         s.profile.Topics[0].ID,
		MatchingRunID:   s.run.ID,
		SortingOrder:    0,
		Score:           0.48,
		Comment:         `{"article_id":"` + s.article.ID.String() + `","topics":[]}`,
	}
}

func TestInsertMatch_DuplicatePairIsDropped(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	first := s.match()
	inserted, err := c.InsertMatch(first)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, inserted)

	// Same (profile, article) pair from a later run with a different score.
	second := s.match()
	second.Score = 0.9
	second.MatchingRunID = s.run.ID
	inserted, err = c.InsertMatch(second)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, inserted)

	// The stored match is untouched.
	matches, err := c.GetMatchesBySearchProfile(s.profile.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(matches))
	assert.Equal(t, first.ID, matches[0].ID)
	assert.Equal(t, 0.48, matches[0].Score)
}

func TestMatchExists(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	exists, err := c.MatchExists(s.profile.ID, s.article.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, exists)

	if _, err := c.InsertMatch(s.match()); err != nil {
		t.Fatal(err)
	}

	exists, err = c.MatchExists(s.profile.ID, s.article.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, exists)
}

func TestCreateMatchingRun_CounterIncreases(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	next, err := c.CreateMatchingRun("V1_TOPIC_WEIGHTS_0.7_KEYWORD_WEIGHTS_0.3")
	assert.Equal(t, nil, err)
	if next.Counter <= s.run.Counter {
		t.Fatalf("counter must increase: %d then %d", s.run.Counter, next.Counter)
	}
}

func TestGetMatch_MissingIsNil(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)

	match, err := c.GetMatch(uuid.New())
	assert.Equal(t, nil, err)
	if match != nil {
		t.Fatal("expected nil match")
	}
}

func TestUpdateMatchFeedback(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	m := s.match()
	if _, err := c.InsertMatch(m); err != nil {
		t.Fatal(err)
	}

	ok, err := c.UpdateMatchFeedback(m.ID, "on target", "matches my beat", 5)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)

	stored, err := c.GetMatch(m.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, "on target", stored.UserComment)
	assert.Equal(t, "matches my beat", stored.UserReason)
	assert.Equal(t, 5, stored.UserRanking)

	ok, err = c.UpdateMatchFeedback(uuid.New(), "x", "", 1)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
}

func TestProfileRoundTrip(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	got, err := c.GetProfile(s.profile.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, "energy watch", got.Name)
	assert.Equal(t, s.org.ID, got.OrganizationID)
	assert.Equal(t, 1, len(got.Topics))
	assert.Equal(t, "Energy", got.Topics[0].Name)
	assert.Equal(t, "solar", got.Topics[0].Keywords[0].Name)
	assert.Equal(t, []uuid.UUID{s.sub.ID}, got.SubscriptionIDs)
}

func TestGetProfile_MissingIsNil(t *testing.T) {
	c := newTestClient(t)

	got, err := c.GetProfile(uuid.New())
	assert.Equal(t, nil, err)
	if got != nil {
		t.Fatal("expected nil profile")
	}
}

func TestFetchProfiles_Pages(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	second := models.SearchProfile{
		ID:             uuid.New(),
		Name:           "health watch",
		OrganizationID: s.org.ID,
		Language:       "en",
		CreatedAt:      s.profile.CreatedAt.Add(time.Hour),
	}
	if err := c.InsertProfile(&second); err != nil {
		t.Fatal(err)
	}

	page, err := c.FetchProfiles(1, 0)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(page))

	page, err = c.FetchProfiles(10, 1)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(page))

	page, err = c.FetchProfiles(10, 2)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(page))
}

func TestSyncTopics_ReplacesTopicSet(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	replacement := []models.Topic{{
		ID:              uuid.New(),
		SearchProfileID: s.profile.ID,
		Name:            "Climate",
		Keywords: []models.Keyword{
			{ID: uuid.New(), Name: "emissions"},
			{ID: uuid.New(), Name: "solar"},
		},
	}}
	if err := c.SyncTopics(s.profile.ID, replacement); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetProfile(s.profile.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(got.Topics))
	assert.Equal(t, "Climate", got.Topics[0].Name)
	assert.Equal(t, 2, len(got.Topics[0].Keywords))
}

func TestSyncTopics_AfterMatchesExist(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	m := s.match()
	if _, err := c.InsertMatch(m); err != nil {
		t.Fatal(err)
	}

	replacement := []models.Topic{{
		ID:              uuid.New(),
		SearchProfileID: s.profile.ID,
		Name:            "Climate",
		Keywords:        []models.Keyword{{ID: uuid.New(), Name: "emissions"}},
	}}
	if err := c.SyncTopics(s.profile.ID, replacement); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetProfile(s.profile.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(got.Topics))
	assert.Equal(t, "Climate", got.Topics[0].Name)

	// The removed topic's match goes with it; the article is matchable again.
	matches, err := c.GetMatchesBySearchProfile(s.profile.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(matches))

	exists, err := c.MatchExists(s.profile.ID, s.article.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, exists)
}

func TestInsertArticle_DuplicateURL(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	dup := s.article
	dup.ID = uuid.New()
	inserted, err := c.InsertArticle(&dup)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, inserted)
}

func TestActiveSubscriptionIDs_SkipsInactive(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	inactive := models.Subscription{
		ID:             uuid.New(),
		OrganizationID: s.org.ID,
		Name:           "Lapsed Wire",
		Active:         false,
	}
	if err := c.InsertSubscription(&inactive); err != nil {
		t.Fatal(err)
	}

	active, err := c.ActiveSubscriptionIDs(s.org.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, map[uuid.UUID]bool{s.sub.ID: true}, active)
}

func TestFetchFeedSubscriptions(t *testing.T) {
	c := newTestClient(t)
	s := seed(t, c)

	noFeed := models.Subscription{
		ID:             uuid.New(),
		OrganizationID: s.org.ID,
		Name:           "Print Only",
		Active:         true,
	}
	if err := c.InsertSubscription(&noFeed); err != nil {
		t.Fatal(err)
	}

	subs, err := c.FetchFeedSubscriptions()
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(subs))
	assert.Equal(t, s.sub.ID, subs[0].ID)
	assert.Equal(t, "https://energywire.example/feed.xml", subs[0].URL)
}
