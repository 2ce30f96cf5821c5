package views

// ColumnType is the semantic type a dataset declares for an input column.
type ColumnType string

// Column types understood by the dashboard service.
const (
	TypeString   ColumnType = "STRING"
	TypeDatetime ColumnType = "DATETIME"
	TypeDecimal  ColumnType = "DECIMAL"
)

// Column is one projected output column of a view.
//
// Expr is the SQL expression producing the column. An empty Expr selects the
// source column of the same name.
type Column struct {
	Name string
	Expr string
	Type ColumnType
}

// Projection renders the select-list item for the column.
func (c Column) Projection() string {
	if c.Expr == "" {
		return c.Name
	}
	return c.Expr + " AS " + c.Name
}

func col(name, expr string, typ ColumnType) Column {
	return Column{Name: name, Expr: expr, Type: typ}
}

func attr(name string) Column {
	return col(name, AthenaAttribute(name), TypeString)
}

func fromMillis(name, field string) Column {
	return col(name, "from_unixtime(("+field+" / 1000))", TypeDatetime)
}

var (
	colEventType        = col("event_type", "", TypeString)
	colEventTimestamp   = fromMillis("event_timestamp", "event_timestamp")
	colArrivalTimestamp = fromMillis("arrival_timestamp", "arrival_timestamp")
	colApplicationID    = col("application_id", "application.app_id", TypeString)
	colEndpointID       = col("endpoint_id", "client.client_id", TypeString)
	colTreatmentID      = col("pinpoint_treatment_id", AthenaAttribute("treament_id"), TypeString)
	colJourneyRunID     = attr("journey_run_id")
	colJourneySend      = attr("journey_send_status")
	colJourneyActivity  = attr("journey_activity_id")
	colRecordStatus     = attr("record_status")
	colAccountID        = col("aws_account_id", "awsaccountid", TypeString)
	colPrice            = col("price_in_millicents_usd", "metrics.price_in_millicents_usd", TypeDecimal)
	colPlatform         = col("device_platform_name", "device.platform['name']", TypeString)
	colIngestTimestamp  = col("ingest_timestamp", "", TypeDatetime)
)

// eventHead is the leading projection shared by every base view.
func eventHead() []Column {
	return []Column{colEventType, colEventTimestamp, colArrivalTimestamp, colApplicationID, colEndpointID}
}

// campaignJourneyColumns derives the synthetic campaign-or-journey id and type.
func campaignJourneyColumns() []Column {
	return []Column{
		col(ColumnCampaignJourneyID, CampaignJourneyIDExpr(AthenaAttribute), TypeString),
		col(ColumnCampaignJourneyType, CampaignJourneyTypeExpr(AthenaAttribute), TypeString),
		colTreatmentID,
		colJourneyRunID,
		colJourneySend,
		colJourneyActivity,
	}
}

func concat(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func allSendColumns() []Column {
	return concat(eventHead(), campaignJourneyColumns(), []Column{
		colRecordStatus,
		colAccountID,
		colPrice,
		colPlatform,
	})
}

func smsColumns() []Column {
	return concat(eventHead(), campaignJourneyColumns(), []Column{
		colAccountID,
		attr("sender_request_id"),
		attr("destination_phone_number"),
		colRecordStatus,
		attr("iso_country_code"),
		attr("number_of_message_parts"),
		attr("message_id"),
		attr("message_type"),
		attr("origination_phone_number"),
		colPrice,
		col("message_tags", "CAST(JSON_PARSE(attributes['customer_context']) AS MAP(VARCHAR, VARCHAR))", TypeString),
		colIngestTimestamp,
		colPlatform,
	})
}

func emailColumns() []Column {
	const mail = "facets.email_channel.mail_event.mail"
	return concat(eventHead(), campaignJourneyColumns(), []Column{
		colAccountID,
		col("message_id", mail+".message_id", TypeString),
		fromMillis("message_send_timestamp", mail+".message_send_timestamp"),
		col("from_address", mail+".from_address", TypeString),
		col("destination", "element_at("+mail+".destination, 1)", TypeString),
		col("subject", mail+".common_headers.subject", TypeString),
		col("message_tags", "MAP_CONCAT(COALESCE(client_context.custom, CAST(JSON '{}' AS MAP(varchar, varchar))), attributes)", TypeString),
		colIngestTimestamp,
		colPlatform,
		colPrice,
	})
}

func campaignColumns() []Column {
	return concat(eventHead(), []Column{
		col("pinpoint_campaign_id", AthenaAttribute("campaign_id"), TypeString),
		colTreatmentID,
		colAccountID,
		attr("delivery_type"),
		attr("campaign_send_status"),
		colIngestTimestamp,
		colPrice,
	})
}

func journeyColumns() []Column {
	const endpoint = "client_context.custom['endpoint']"
	return concat(eventHead(), []Column{
		attr("journey_id"),
		colJourneyRunID,
		colJourneySend,
		colJourneyActivity,
		colAccountID,
		col("custom", "typeof("+endpoint+")", TypeString),
		col("end_point_status", "json_extract_scalar("+endpoint+", '$.EndpointStatus')", TypeString),
		col("channel_type", "json_extract_scalar("+endpoint+", '$.ChannelType')", TypeString),
		col("user_id", "json_extract_scalar("+endpoint+", '$.User.UserId')", TypeString),
		colIngestTimestamp,
		colPrice,
	})
}

func customColumns() []Column {
	return concat(eventHead(), []Column{
		col("cognito_id", "client.cognito_id", TypeString),
		col("session_id", "session['session_id']", TypeString),
		col("session_start_time", "from_unixtime(CAST(session['start_timestamp'] AS BIGINT) / 1000)", TypeDatetime),
		col("session_stop_time", "from_unixtime(CAST(session['stop_timestamp'] AS BIGINT) / 1000)", TypeDatetime),
		colIngestTimestamp,
		colPrice,
	})
}

// Lookup table aliases used by joined views.
const (
	aliasEvent    = "event"
	aliasCampJour = "camp_jour"
	aliasSegment  = "segment"
)

// lookupColumns are appended to a base view's columns by every joined view.
func lookupColumns() []Column {
	return []Column{
		col("camp_jour_name", aliasCampJour+".name", TypeString),
		col("camp_jour_deleted_status", aliasCampJour+".deleted", TypeString),
		col("camp_jour_type", aliasCampJour+".type", TypeString),
		col("segment_id", aliasCampJour+".segment_id", TypeString),
		col("event_name", aliasCampJour+".event_name", TypeString),
		col("segment_name", aliasSegment+".name", TypeString),
		col("segment_deleted_status", aliasSegment+".deleted", TypeString),
	}
}

// Names returns the column names in order.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
