// Package notionsync publishes analysis results to a Notion database.
package notionsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/logger"
)

// NotionService is the slice of the Notion API the publisher needs: find a
// results page, then create or update it.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// Publisher writes one page per subject into a results database. Publishing
// the same subject again updates its page in place.
type Publisher struct {
	client     NotionService
	databaseID string
	now        func() time.Time
}

// NewPublisher creates a publisher for databaseID.
func NewPublisher(client NotionService, databaseID string) *Publisher {
	return &Publisher{client: client, databaseID: databaseID, now: time.Now}
}

// PublishOutcome reports what PublishResult did.
type PublishOutcome struct {
	PageID  string `json:"page_id,omitempty"`
	Created bool   `json:"created"`
	DryRun  bool   `json:"dry_run"`
}

// PublishResult creates or updates the page for subject. In dry-run mode the
// database is queried but nothing is written.
func (p *Publisher) PublishResult(ctx context.Context, subject string, result *domain.AnalyticsResult, dryRun bool) (PublishOutcome, error) {
	if result == nil {
		return PublishOutcome{}, errors.New("PublishResult: nil result")
	}
	if subject == "" {
		return PublishOutcome{}, errors.New("PublishResult: empty subject")
	}
	log := logger.FromContext(ctx).With().
		Str("subject", subject).
		Str("run_id", result.RunID).
		Bool("dry_run", dryRun).
		Logger()

	existing, err := p.findPage(ctx, subject)
	if err != nil {
		return PublishOutcome{}, fmt.Errorf("PublishResult: %w", err)
	}

	if dryRun {
		if existing != "" {
			log.Info().Str("page_id", existing).Msg("[DRY RUN] Would update existing Notion page")
		} else {
			log.Info().Msg("[DRY RUN] Would create new Notion page")
		}
		return PublishOutcome{PageID: existing, Created: existing == "", DryRun: true}, nil
	}

	props := ResultToNotionProperties(subject, result, p.now())

	if existing != "" {
		if _, err := p.client.UpdatePage(ctx, existing, props); err != nil {
			return PublishOutcome{}, fmt.Errorf("PublishResult: %w", err)
		}
		log.Info().Str("page_id", existing).Msg("Updated Notion page")
		return PublishOutcome{PageID: existing}, nil
	}

	page, err := p.client.CreatePage(ctx, p.databaseID, props)
	if err != nil {
		return PublishOutcome{}, fmt.Errorf("PublishResult: %w", err)
	}
	log.Info().Str("page_id", string(page.ID)).Msg("Created Notion page")
	return PublishOutcome{PageID: string(page.ID), Created: true}, nil
}

// findPage returns the id of the page titled subject, or "" when none exists.
func (p *Publisher) findPage(ctx context.Context, subject string) (string, error) {
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: PropSubject,
				Title:    &notionapi.TextFilterCondition{Equals: subject},
			},
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := p.client.QueryDatabase(ctx, p.databaseID, req)
		if err != nil {
			return "", fmt.Errorf("findPage: %w", err)
		}
		for _, page := range resp.Results {
			if extractSubject(page) == subject {
				return string(page.ID), nil
			}
		}
		if !resp.HasMore {
			return "", nil
		}
		cursor = resp.NextCursor
	}
}
