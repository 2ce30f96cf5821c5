package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allNames(r *Registry) []string {
	return []string{
		r.AllSendView(), r.EmailView(), r.SMSView(), r.CampaignView(),
		r.JourneyView(), r.CustomView(), r.AllSendJoinedView(),
		r.EmailJoinedView(), r.SMSJoinedView(), r.AllSendDataset(),
		r.EmailDataset(), r.SMSDataset(), r.DataSource(), r.Analysis(),
		r.DynamoCatalog(), r.ConnectorFunction(), r.Materializer(),
		r.NamedQuery(r.EmailView()),
	}
}

func TestRegistry_EveryNameCarriesPrefix(t *testing.T) {
	prefixes := []string{"pinpoint_analytics_", "a_", "prod_", "x"}

	for _, p := range prefixes {
		t.Run(p, func(t *testing.T) {
			for _, name := range allNames(New(p)) {
				assert.True(t, strings.HasPrefix(name, p), name)
			}
		})
	}
}

func TestRegistry_Deterministic(t *testing.T) {
	a := New(DefaultPrefix)
	b := New(DefaultPrefix)

	assert.Equal(t, a.EmailJoinedView(), b.EmailJoinedView())
	assert.Equal(t, "pinpoint_analytics_email_all_events", a.EmailView())
	assert.Equal(t, "pinpoint_analytics_dynamo_db_catalog_cdk", a.DynamoCatalog())
	assert.Equal(t, "pinpoint_analytics_sms_all_events_with_pinpoint_camp_jour_data", a.SMSJoinedView())
}

func TestRegistry_NamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, name := range allNames(New(DefaultPrefix)) {
		assert.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true
	}
}

func TestValidPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   bool
	}{
		{"pinpoint_analytics_", true},
		{"abc", true},
		{"", false},
		{"Upper_", false},
		{"with-dash_", false},
		{"digits1_", false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPrefix(tt.prefix))
		})
	}
}

func TestARNHelpers(t *testing.T) {
	assert.Equal(t, "arn:aws:athena:us-east-1:123456789012:workgroup/primary",
		ARN("athena", "us-east-1", "123456789012", "workgroup/primary"))
	assert.Equal(t, "arn:aws:quicksight:us-east-1:123456789012:user/default/admin",
		QuickSightUserARN("us-east-1", "123456789012", "admin"))
	assert.Equal(t, "arn:aws:lambda:eu-west-1:1:function:fn",
		FunctionARN("eu-west-1", "1", "fn"))
}
