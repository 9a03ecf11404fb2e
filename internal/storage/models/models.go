package models

import (
	"time"

	"github.com/google/uuid"
)

// ArticleStatus tracks the article pipeline lifecycle.
type ArticleStatus string

const (
	StatusScraped    ArticleStatus = "SCRAPED"
	StatusSummarized ArticleStatus = "SUMMARIZED"
	StatusTranslated ArticleStatus = "TRANSLATED"
)

type Organization struct {
	ID   uuid.UUID
	Name string
}

// Subscription is a content source an organization pays for. Article access
// at query time is gated on an active subscription for the article's source.
type Subscription struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	URL            string
	Active         bool
}

type SearchProfile struct {
	ID              uuid.UUID
	Name            string
	OrganizationID  uuid.UUID
	OwnerID         uuid.UUID
	Public          bool
	Language        string
	Topics          []Topic
	SubscriptionIDs []uuid.UUID
	CreatedAt       time.Time
}

type Topic struct {
	ID              uuid.UUID
	SearchProfileID uuid.UUID
	Name            string
	Keywords        []Keyword
}

// Keyword names are globally unique; a keyword row is shared across topics
// and garbage-collected once no topic links remain.
type Keyword struct {
	ID   uuid.UUID
	Name string
}

type Article struct {
	ID             uuid.UUID
	URL            string
	Title          string
	TitleEN        string
	TitleDE        string
	Content        string
	ContentEN      string
	ContentDE      string
	Summary        string
	SummaryEN      string
	SummaryDE      string
	PublishedAt    time.Time
	SubscriptionID uuid.UUID
	Status         ArticleStatus
	Categories     []string
	Authors        []string
	Language       string
	ImageURL       string
	CreatedAt      time.Time
}

// MatchingRun is an append-only audit record for one orchestration pass.
// Counter increases monotonically across runs and is safe to order by.
type MatchingRun struct {
	ID               uuid.UUID
	RunAt            time.Time
	Counter          int64
	AlgorithmVersion string
}

type Match struct {
	ID              uuid.UUID
	ArticleID       uuid.UUID
	SearchProfileID uuid.UUID
	TopicID         uuid.UUID
	MatchingRunID   uuid.UUID
	SortingOrder    int
	Score           float64
	Comment         string
	UserComment     string
	UserReason      string
	UserRanking     int
	CreatedAt       time.Time
}
