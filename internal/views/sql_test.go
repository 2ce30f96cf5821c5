package views

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pinpoint-analytics/internal/testutil"
)

func sqliteAttribute(key string) string {
	return fmt.Sprintf("json_extract(attributes, '$.%s')", key)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		wantID     string
		wantOrigin string
	}{
		{"campaign", map[string]string{"campaign_id": "c1"}, "c1", OriginCampaign},
		{"journey", map[string]string{"journey_id": "j1"}, "j1", OriginJourney},
		{"neither", map[string]string{"other": "x"}, "", OriginTransactional},
		{"both prefers campaign", map[string]string{"campaign_id": "c1", "journey_id": "j1"}, "c1", OriginCampaign},
		{"nil attributes", nil, "", OriginTransactional},
	}

	db := testutil.OpenSQLite(t, "CREATE TABLE events (attributes TEXT)")
	query := fmt.Sprintf("SELECT %s AS id, %s AS origin FROM events",
		CampaignJourneyIDExpr(sqliteAttribute), CampaignJourneyTypeExpr(sqliteAttribute))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, origin := Classify(tt.attributes)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantOrigin, origin)

			// The rendered CASE expressions agree with Classify.
			_, err := db.Exec("DELETE FROM events")
			require.NoError(t, err)
			raw, err := json.Marshal(tt.attributes)
			require.NoError(t, err)
			_, err = db.Exec("INSERT INTO events (attributes) VALUES (?)", string(raw))
			require.NoError(t, err)

			var sqlID sql.NullString
			var sqlOrigin string
			require.NoError(t, db.QueryRow(query).Scan(&sqlID, &sqlOrigin))
			assert.Equal(t, tt.wantID, sqlID.String)
			assert.Equal(t, tt.wantID != "", sqlID.Valid)
			assert.Equal(t, tt.wantOrigin, sqlOrigin)
		})
	}
}

func TestJoinedSelect_PreservesBaseRows(t *testing.T) {
	db := testutil.OpenSQLite(t,
		`CREATE TABLE "pa_email_all_events" (event_type TEXT, pinpoint_campaign_journey_id TEXT)`,
		`CREATE TABLE camp_jour_lookup (id TEXT, name TEXT, deleted TEXT, type TEXT, segment_id TEXT, event_name TEXT)`,
		`CREATE TABLE segment_lookup (id TEXT, name TEXT, deleted TEXT)`,
		`INSERT INTO "pa_email_all_events" VALUES
			('_email.send', 'c1'),
			('_email.send', 'c-missing'),
			('_email.delivered', NULL),
			('_email.open', 'j1')`,
		`INSERT INTO camp_jour_lookup VALUES
			('c1', 'Spring sale', 'false', 'campaign', 's1', NULL),
			('j1', 'Onboarding', 'false', 'journey', 's-missing', 'signup')`,
		`INSERT INTO segment_lookup VALUES ('s1', 'All users', 'false')`,
	)

	query := JoinedSelect("pa_email_all_events", `"camp_jour_lookup"`, `"segment_lookup"`)
	rows, err := db.Query(query + " ORDER BY event.rowid")
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	projected, err := ProjectedColumns(query, func(table string) ([]string, bool) {
		if table == "pa_email_all_events" {
			return []string{"event_type", "pinpoint_campaign_journey_id"}, true
		}
		return nil, false
	})
	require.NoError(t, err)
	assert.Equal(t, projected, cols)

	type row struct {
		campaign    sql.NullString
		name        sql.NullString
		segmentName sql.NullString
	}
	var got []row
	for rows.Next() {
		values := make([]any, len(cols))
		var r row
		for i := range values {
			switch cols[i] {
			case "pinpoint_campaign_journey_id":
				values[i] = &r.campaign
			case "camp_jour_name":
				values[i] = &r.name
			case "segment_name":
				values[i] = &r.segmentName
			default:
				values[i] = new(sql.NullString)
			}
		}
		require.NoError(t, rows.Scan(values...))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, 4, "every base row survives the join")
	assert.Equal(t, "Spring sale", got[0].name.String)
	assert.Equal(t, "All users", got[0].segmentName.String)
	assert.False(t, got[1].name.Valid, "unmatched campaign surfaces as null")
	assert.False(t, got[2].campaign.Valid)
	assert.False(t, got[2].name.Valid)
	assert.Equal(t, "Onboarding", got[3].name.String)
	assert.False(t, got[3].segmentName.Valid, "unmatched segment surfaces as null")
}
