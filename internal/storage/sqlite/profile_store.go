package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsradar/backend/internal/storage/models"
	"github.com/newsradar/backend/pkg/logger"
)

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (c *Client) InsertOrganization(org *models.Organization) error {
	_, err := c.db.Exec(
		`INSERT INTO organizations (id, name) VALUES (?, ?)`,
		org.ID.String(), org.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert organization: %w", err)
	}
	return nil
}

func (c *Client) InsertSubscription(sub *models.Subscription) error {
	active := 0
	if sub.Active {
		active = 1
	}

	_, err := c.db.Exec(
		`INSERT INTO subscriptions (id, organization_id, name, url, active) VALUES (?, ?, ?, ?, ?)`,
		sub.ID.String(), sub.OrganizationID.String(), sub.Name, sub.URL, active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

// FetchFeedSubscriptions returns every active subscription with a feed url,
// ordered stably for the crawler.
func (c *Client) FetchFeedSubscriptions() ([]models.Subscription, error) {
	rows, err := c.db.Query(
		`SELECT id, organization_id, name, url, active
		 FROM subscriptions
		 WHERE active = 1 AND url != ''
		 ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var (
			sub           models.Subscription
			rawID, rawOrg string
			active        int
		)
		if err := rows.Scan(&rawID, &rawOrg, &sub.Name, &sub.URL, &active); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if sub.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("invalid subscription id %q: %w", rawID, err)
		}
		if sub.OrganizationID, err = uuid.Parse(rawOrg); err != nil {
			return nil, fmt.Errorf("invalid organization id %q: %w", rawOrg, err)
		}
		sub.Active = active == 1
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// ActiveSubscriptionIDs returns the subscription ids the organization holds
// an active subscription for. Used for query-time content gating.
func (c *Client) ActiveSubscriptionIDs(organizationID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := c.db.Query(
		`SELECT id FROM subscriptions WHERE organization_id = ? AND active = 1`,
		organizationID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscriptions: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid subscription id %q: %w", raw, err)
		}
		ids[id] = true
	}

	return ids, rows.Err()
}

func (c *Client) InsertProfile(profile *models.SearchProfile) error {
	public := 0
	if profile.Public {
		public = 1
	}

	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.Exec(
		`INSERT INTO search_profiles (id, name, organization_id, owner_id, public, language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.ID.String(),
		profile.Name,
		profile.OrganizationID.String(),
		profile.OwnerID.String(),
		public,
		profile.Language,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	for _, subID := range profile.SubscriptionIDs {
		_, err = c.db.Exec(
			`INSERT OR IGNORE INTO search_profile_subscriptions (search_profile_id, subscription_id) VALUES (?, ?)`,
			profile.ID.String(), subID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to link subscription: %w", err)
		}
	}

	if len(profile.Topics) > 0 {
		if err := c.SyncTopics(profile.ID, profile.Topics); err != nil {
			return err
		}
	}

	logger.Debug("Profile inserted", zap.String("profile_id", profile.ID.String()), zap.String("name", profile.Name))
	return nil
}

// GetProfile returns nil without error when the profile does not exist.
func (c *Client) GetProfile(id uuid.UUID) (*models.SearchProfile, error) {
	row := c.db.QueryRow(
		`SELECT id, name, organization_id, owner_id, public, language, created_at
		 FROM search_profiles WHERE id = ?`,
		id.String(),
	)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := c.loadProfileChildren([]*models.SearchProfile{profile}); err != nil {
		return nil, err
	}

	return profile, nil
}

// FetchProfiles pages through all profiles with a stable order. Topics and
// keywords are preloaded with batched queries.
func (c *Client) FetchProfiles(limit, offset int) ([]models.SearchProfile, error) {
	rows, err := c.db.Query(
		`SELECT id, name, organization_id, owner_id, public, language, created_at
		 FROM search_profiles ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.SearchProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}

	if err := c.loadProfileChildren(profiles); err != nil {
		return nil, err
	}

	result := make([]models.SearchProfile, len(profiles))
	for i, p := range profiles {
		result[i] = *p
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.SearchProfile, error) {
	var (
		profile              models.SearchProfile
		id, orgID, ownerID   string
		public               int
		createdAt            int64
	)

	err := row.Scan(&id, &profile.Name, &orgID, &ownerID, &public, &profile.Language, &createdAt)
	if err != nil {
		return nil, err
	}

	profile.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid profile id %q: %w", id, err)
	}
	profile.OrganizationID, _ = uuid.Parse(orgID)
	profile.OwnerID, _ = uuid.Parse(ownerID)
	profile.Public = public == 1
	profile.CreatedAt = time.Unix(createdAt, 0)

	return &profile, nil
}

func (c *Client) loadProfileChildren(profiles []*models.SearchProfile) error {
	if len(profiles) == 0 {
		return nil
	}

	byID := make(map[string]*models.SearchProfile, len(profiles))
	args := make([]interface{}, 0, len(profiles))
	for _, p := range profiles {
		byID[p.ID.String()] = p
		args = append(args, p.ID.String())
	}

	rows, err := c.db.Query(
		`SELECT id, search_profile_id, name FROM topics
		 WHERE search_profile_id IN (`+placeholders(len(args))+`) ORDER BY rowid`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to load topics: %w", err)
	}
	defer rows.Close()

	topicsByID := make(map[string]*models.Topic)
	topicArgs := make([]interface{}, 0)
	for rows.Next() {
		var topicID, profileID, name string
		if err := rows.Scan(&topicID, &profileID, &name); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		profile := byID[profileID]
		tid, err := uuid.Parse(topicID)
		if err != nil {
			return fmt.Errorf("invalid topic id %q: %w", topicID, err)
		}
		profile.Topics = append(profile.Topics, models.Topic{
			ID:              tid,
			SearchProfileID: profile.ID,
			Name:            name,
		})
		topicsByID[topicID] = &profile.Topics[len(profile.Topics)-1]
		topicArgs = append(topicArgs, topicID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load topics: %w", err)
	}

	if len(topicArgs) > 0 {
		kwRows, err := c.db.Query(
			`SELECT tk.topic_id, k.id, k.name FROM topic_keywords tk
			 JOIN keywords k ON k.id = tk.keyword_id
			 WHERE tk.topic_id IN (`+placeholders(len(topicArgs))+`) ORDER BY tk.rowid`,
			topicArgs...,
		)
		if err != nil {
			return fmt.Errorf("failed to load keywords: %w", err)
		}
		defer kwRows.Close()

		for kwRows.Next() {
			var topicID, keywordID, name string
			if err := kwRows.Scan(&topicID, &keywordID, &name); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}
			kid, err := uuid.Parse(keywordID)
			if err != nil {
				return fmt.Errorf("invalid keyword id %q: %w", keywordID, err)
			}
			topicsByID[topicID].Keywords = append(topicsByID[topicID].Keywords, models.Keyword{
				ID:   kid,
				Name: name,
			})
		}
		if err := kwRows.Err(); err != nil {
			return fmt.Errorf("failed to load keywords: %w", err)
		}
	}

	subRows, err := c.db.Query(
		`SELECT search_profile_id, subscription_id FROM search_profile_subscriptions
		 WHERE search_profile_id IN (`+placeholders(len(args))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to load profile subscriptions: %w", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		var profileID, subID string
		if err := subRows.Scan(&profileID, &subID); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		sid, err := uuid.Parse(subID)
		if err != nil {
			return fmt.Errorf("invalid subscription id %q: %w", subID, err)
		}
		byID[profileID].SubscriptionIDs = append(byID[profileID].SubscriptionIDs, sid)
	}

	return subRows.Err()
}

// SyncTopics replaces the profile's topic set with the given one. Matches
// attributed to a removed topic are dropped with it, so the article can match
// again under the remaining topics. Keywords are deduplicated globally by
// name; orphaned keywords are garbage-collected after every sync.
func (c *Client) SyncTopics(profileID uuid.UUID, topics []models.Topic) error {
	keep := make([]interface{}, 0, len(topics)+1)
	keep = append(keep, profileID.String())
	for _, t := range topics {
		keep = append(keep, t.ID.String())
	}

	query := `DELETE FROM topics WHERE search_profile_id = ?`
	if len(topics) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(topics)) + `)`
	}
	if _, err := c.db.Exec(query, keep...); err != nil {
		return fmt.Errorf("failed to delete stale topics: %w", err)
	}

	for _, topic := range topics {
		_, err := c.db.Exec(
			`INSERT INTO topics (id, search_profile_id, name) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			topic.ID.String(), profileID.String(), topic.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert topic: %w", err)
		}

		if _, err := c.db.Exec(`DELETE FROM topic_keywords WHERE topic_id = ?`, topic.ID.String()); err != nil {
			return fmt.Errorf("failed to clear topic keywords: %w", err)
		}

		for _, kw := range topic.Keywords {
			keywordID, err := c.upsertKeyword(kw)
			if err != nil {
				return err
			}
			_, err = c.db.Exec(
				`INSERT OR IGNORE INTO topic_keywords (topic_id, keyword_id) VALUES (?, ?)`,
				topic.ID.String(), keywordID,
			)
			if err != nil {
				return fmt.Errorf("failed to link keyword: %w", err)
			}
		}
	}

	removed, err := c.CleanupOrphanKeywords()
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Debug("Orphan keywords removed", zap.Int("count", removed))
	}

	return nil
}

func (c *Client) upsertKeyword(kw models.Keyword) (string, error) {
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO keywords (id, name) VALUES (?, ?)`,
		kw.ID.String(), kw.Name,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert keyword: %w", err)
	}

	var id string
	err = c.db.QueryRow(`SELECT id FROM keywords WHERE name = ?`, kw.Name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve keyword id: %w", err)
	}
	return id, nil
}

// CleanupOrphanKeywords deletes keywords with no remaining topic links and
// returns how many were removed.
func (c *Client) CleanupOrphanKeywords() (int, error) {
	res, err := c.db.Exec(
		`DELETE FROM keywords WHERE id NOT IN (SELECT DISTINCT keyword_id FROM topic_keywords)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup keywords: %w", err)
	}

	removed, _ := res.RowsAffected()
	return int(removed), nil
}
