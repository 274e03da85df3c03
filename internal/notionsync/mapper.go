package notionsync

import (
	"fmt"
	"sort"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// Property names of the results database. The database must define them
// with the matching Notion types.
const (
	PropSubject      = "Subject"       // title
	PropRunID        = "Run ID"        // rich text
	PropPersona      = "Persona"       // select
	PropTopCategory  = "Top Category"  // select
	PropTopMerchant  = "Top Merchant"  // rich text
	PropExperiences  = "Experiences %" // number
	PropEssentials   = "Essentials %"  // number
	PropPeakMonths   = "Peak Months"   // multi-select
	PropTransactions = "Transactions"  // number
	PropPublished    = "Published"     // date
)

// ResultToNotionProperties maps an analysis result to page properties.
func ResultToNotionProperties(subject string, result *domain.AnalyticsResult, published time.Time) notionapi.Properties {
	props := notionapi.Properties{
		PropSubject: notionapi.TitleProperty{
			Title: richText(subject),
		},
		PropRunID: notionapi.RichTextProperty{
			RichText: richText(result.RunID),
		},
		PropExperiences: notionapi.NumberProperty{
			Number: float64(result.SpendingBreakdown.ExperiencesPct),
		},
		PropEssentials: notionapi.NumberProperty{
			Number: float64(result.SpendingBreakdown.EssentialsPct),
		},
		PropTransactions: notionapi.NumberProperty{
			Number: float64(result.TransactionCount),
		},
		PropPublished: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(published.UTC())
					return &d
				}(),
			},
		},
	}

	if result.FinancialPersonality != "" {
		props[PropPersona] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: result.FinancialPersonality},
		}
	}

	if top := TopCategory(result); top != "" {
		props[PropTopCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: top},
		}
	}

	if len(result.TopMerchants) > 0 {
		m := result.TopMerchants[0]
		props[PropTopMerchant] = notionapi.RichTextProperty{
			RichText: richText(fmt.Sprintf("%s (%d visits)", m.Name, m.VisitCount)),
		}
	}

	if len(result.PeakMonths) > 0 {
		options := make([]notionapi.Option, 0, len(result.PeakMonths))
		for _, month := range result.PeakMonths {
			options = append(options, notionapi.Option{Name: month})
		}
		props[PropPeakMonths] = notionapi.MultiSelectProperty{MultiSelect: options}
	}

	return props
}

// TopCategory returns the category with the highest share of transactions.
// Ties go to the alphabetically first name.
func TopCategory(result *domain.AnalyticsResult) string {
	names := make([]string, 0, len(result.Categories))
	for name := range result.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	var top string
	var best int64 = -1
	for _, name := range names {
		if pct := result.Categories[name].Percentage; pct > best {
			top, best = name, pct
		}
	}
	return top
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractSubject reads the title of a results page.
// Returns empty string if not found.
func extractSubject(page notionapi.Page) string {
	if prop, ok := page.Properties[PropSubject]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok && len(title.Title) > 0 {
			return title.Title[0].PlainText
		}
	}
	return ""
}
