package views

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Event type filters per base view.
const (
	allSendFilter  = "(event_type IN ('_SMS.SUCCESS', '_SMS.FAILURE') OR event_type IN ('_email.send', '_email.delivered', '_email.hardbounce', '_email.softbounce', '_email.complaint'))"
	smsFilter      = "(event_type LIKE '_SMS.%')"
	emailFilter    = "(event_type LIKE '_email.%')"
	campaignFilter = "(event_type LIKE '_campaign.%')"
	journeyFilter  = "(event_type LIKE '_journey.%')"
	customFilter   = "(event_type NOT LIKE '_email.%' AND event_type NOT LIKE '_SMS.%' AND event_type NOT LIKE '_campaign.%' AND event_type NOT LIKE '_test.event%' AND event_type NOT LIKE '_journey.%')"
)

// WindowPredicate limits rows to events since the first day of the current
// month minus months calendar months.
func WindowPredicate(months int) string {
	return fmt.Sprintf(
		"from_unixtime((event_timestamp / 1000)) >= CAST(DATE_FORMAT(current_date, '%%Y-%%m-01') AS DATE) - interval '%d' month",
		months)
}

func writeSelectList(b *strings.Builder, items []string) {
	b.WriteString("SELECT\n")
	for i, item := range items {
		if i == 0 {
			b.WriteString("  ")
		} else {
			b.WriteString("  , ")
		}
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func baseSelect(cols []Column, database string, months int, filter string) string {
	items := make([]string, len(cols))
	for i, c := range cols {
		items[i] = c.Projection()
	}

	var b strings.Builder
	writeSelectList(&b, items)
	fmt.Fprintf(&b, "FROM %s\n", QualifiedName(naming.GlueCatalog, database, naming.SourceTable))
	fmt.Fprintf(&b, "WHERE %s\n  AND %s\n", WindowPredicate(months), filter)
	return b.String()
}

// JoinedSelect renders the left outer join of base against the
// campaign/journey and segment lookup tables. The lookup references are
// used verbatim and must already be quoted.
func JoinedSelect(base, campaignJourneyRef, segmentRef string) string {
	items := []string{aliasEvent + ".*"}
	for _, c := range lookupColumns() {
		items = append(items, c.Projection())
	}

	var b strings.Builder
	writeSelectList(&b, items)
	fmt.Fprintf(&b, "FROM %q AS %s\n", base, aliasEvent)
	fmt.Fprintf(&b, "LEFT JOIN %s AS %s\n  ON %s.%s = %s.id\n",
		campaignJourneyRef, aliasCampJour, aliasEvent, ColumnCampaignJourneyID, aliasCampJour)
	fmt.Fprintf(&b, "LEFT JOIN %s AS %s\n  ON %s.segment_id = %s.id\n",
		segmentRef, aliasSegment, aliasCampJour, aliasSegment)
	return b.String()
}
