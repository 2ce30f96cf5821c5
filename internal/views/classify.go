package views

import (
	"fmt"
	"strings"
)

// Output column names of the synthetic campaign-or-journey classification.
const (
	ColumnCampaignJourneyID   = "pinpoint_campaign_journey_id"
	ColumnCampaignJourneyType = "pinpoint_campaign_journey_type"
)

// Event origins produced by the classification.
const (
	OriginCampaign      = "campaign"
	OriginJourney       = "journey"
	OriginTransactional = "transactional"
)

// classificationRule maps the presence of an attribute to an origin.
type classificationRule struct {
	Attribute string
	Origin    string
}

// classificationRules are evaluated in order; the first present attribute wins.
var classificationRules = []classificationRule{
	{Attribute: "campaign_id", Origin: OriginCampaign},
	{Attribute: "journey_id", Origin: OriginJourney},
}

// AttributeAccessor renders the SQL expression reading an event attribute.
type AttributeAccessor func(key string) string

// AthenaAttribute reads a key from the attributes map column.
func AthenaAttribute(key string) string {
	return fmt.Sprintf("attributes['%s']", key)
}

// Classify returns the campaign-or-journey identifier and origin for an
// event's attributes. Events with neither attribute are transactional and
// have no identifier.
func Classify(attributes map[string]string) (id, origin string) {
	for _, rule := range classificationRules {
		if v, ok := attributes[rule.Attribute]; ok {
			return v, rule.Origin
		}
	}
	return "", OriginTransactional
}

// CampaignJourneyIDExpr renders the CASE expression selecting the identifier.
func CampaignJourneyIDExpr(access AttributeAccessor) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, rule := range classificationRules {
		a := access(rule.Attribute)
		fmt.Fprintf(&b, " WHEN %s IS NOT NULL THEN %s", a, a)
	}
	b.WriteString(" END")
	return b.String()
}

// CampaignJourneyTypeExpr renders the CASE expression selecting the origin.
func CampaignJourneyTypeExpr(access AttributeAccessor) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, rule := range classificationRules {
		fmt.Fprintf(&b, " WHEN %s IS NOT NULL THEN '%s'", access(rule.Attribute), rule.Origin)
	}
	fmt.Fprintf(&b, " ELSE '%s' END", OriginTransactional)
	return b.String()
}
