package views

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

func testParams() Params {
	return Params{
		Names:                naming.New("pa_"),
		Database:             "due_eventdb",
		LookbackMonths:       6,
		CampaignJourneyTable: "camp_jour_table",
		SegmentTable:         "segment_table",
	}
}

func testSet(t *testing.T) *Set {
	t.Helper()
	s, err := New(testParams())
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		errMsg string
	}{
		{"missing registry", func(p *Params) { p.Names = nil }, "registry"},
		{"missing database", func(p *Params) { p.Database = "" }, "database"},
		{"zero lookback", func(p *Params) { p.LookbackMonths = 0 }, "lookback"},
		{"missing lookup table", func(p *Params) { p.SegmentTable = "" }, "lookup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			_, err := New(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew_DefinesNineViews(t *testing.T) {
	s := testSet(t)
	defs := s.All()
	require.Len(t, defs, 9)

	categories := map[Category]bool{}
	for _, d := range defs {
		categories[d.Category] = true
		assert.True(t, strings.HasPrefix(d.Name, "pa_"), d.Name)
		assert.Equal(t, "due_eventdb", d.Database)
		assert.NotEmpty(t, d.Description)
		assert.True(t, strings.HasPrefix(d.SQL(), "CREATE OR REPLACE VIEW "+d.Name+" AS\n"))
	}
	assert.Len(t, categories, 9)
}

func TestNew_JoinedViewsFollowTheirBase(t *testing.T) {
	s := testSet(t)
	position := map[string]int{}
	for i, d := range s.All() {
		position[d.Name] = i
	}

	for _, d := range s.All() {
		if !d.Category.Joined() {
			assert.Empty(t, d.DependsOn, d.Name)
			continue
		}
		require.Len(t, d.DependsOn, 1, d.Name)
		assert.Less(t, position[d.DependsOn[0]], position[d.Name])
		assert.Contains(t, d.Query, `FROM "`+d.DependsOn[0]+`" AS event`)
	}
}

func TestBaseViews_FilterAndWindow(t *testing.T) {
	s := testSet(t)

	tests := []struct {
		category Category
		filter   string
	}{
		{CategoryAllSend, "event_type IN ('_SMS.SUCCESS', '_SMS.FAILURE')"},
		{CategorySMS, "event_type LIKE '_SMS.%'"},
		{CategoryEmail, "event_type LIKE '_email.%'"},
		{CategoryCampaign, "event_type LIKE '_campaign.%'"},
		{CategoryJourney, "event_type LIKE '_journey.%'"},
		{CategoryCustom, "event_type NOT LIKE '_test.event%'"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			d, ok := s.ByCategory(tt.category)
			require.True(t, ok)
			assert.Contains(t, d.Query, tt.filter)
			assert.Contains(t, d.Query, `FROM "AwsDataCatalog"."due_eventdb"."all_events"`)
			assert.Contains(t, d.Query, "- interval '6' month")
			assert.Contains(t, d.Query, "DATE_FORMAT(current_date, '%Y-%m-01')")
		})
	}
}

func TestJoinedViews_ReferenceLookupTables(t *testing.T) {
	s := testSet(t)
	d, ok := s.ByCategory(CategorySMSJoined)
	require.True(t, ok)

	assert.Contains(t, d.Query, `LEFT JOIN "pa_dynamo_db_catalog_cdk"."default"."camp_jour_table" AS camp_jour`)
	assert.Contains(t, d.Query, `LEFT JOIN "pa_dynamo_db_catalog_cdk"."default"."segment_table" AS segment`)
	assert.Contains(t, d.Query, "ON event.pinpoint_campaign_journey_id = camp_jour.id")
}

func TestLevels(t *testing.T) {
	s := testSet(t)
	n := naming.New("pa_")

	levels, err := s.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Len(t, levels[0], 6)
	assert.ElementsMatch(t, []string{n.AllSendJoinedView(), n.EmailJoinedView(), n.SMSJoinedView()}, levels[1])
}

func TestGet_Unknown(t *testing.T) {
	_, err := testSet(t).Get("nope")
	assert.ErrorContains(t, err, "not defined")
}

func TestDatasets_MatchJoinedViews(t *testing.T) {
	s := testSet(t)
	datasets, err := s.Datasets()
	require.NoError(t, err)
	require.Len(t, datasets, 3)

	assert.Equal(t, "all_send_events", datasets[0].Identifier)
	assert.Equal(t, "email_all_events", datasets[1].Identifier)
	assert.Equal(t, "sms_all_events", datasets[2].Identifier)

	for _, ds := range datasets {
		view, err := s.Get(ds.Table)
		require.NoError(t, err)
		assert.True(t, view.Category.Joined())
		assert.Equal(t, Names(view.Columns), Names(ds.Columns))
		assert.Equal(t, "AwsDataCatalog", ds.Catalog)
		assert.Equal(t, "due_eventdb", ds.Schema)
		assert.Equal(t, RefreshWindow{Column: "event_timestamp", Size: 7, Unit: "DAY"}, ds.Refresh)
		assert.True(t, strings.HasPrefix(ds.Name, "pa_"))
	}

	// all_send carries record_status through to its dataset
	assert.Contains(t, Names(datasets[0].Columns), "record_status")
}

func TestColumnTypes(t *testing.T) {
	s := testSet(t)
	d, ok := s.ByCategory(CategoryEmail)
	require.True(t, ok)

	types := map[string]ColumnType{}
	for _, c := range d.Columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, TypeDatetime, types["event_timestamp"])
	assert.Equal(t, TypeDatetime, types["message_send_timestamp"])
	assert.Equal(t, TypeDecimal, types["price_in_millicents_usd"])
	assert.Equal(t, TypeString, types["subject"])
}
