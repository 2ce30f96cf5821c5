// Package naming derives deterministic resource names from a deployment prefix.
//
// Every component that needs to refer to a view, dataset or catalog asks the
// Registry instead of formatting strings itself, so two independent callers
// always agree on a name without sharing state.
package naming

import (
	"fmt"
	"regexp"
)

// DefaultPrefix is the prefix used when none is configured.
const DefaultPrefix = "pinpoint_analytics_"

// Names that are not derived from the prefix.
const (
	GlueCatalog      = "AwsDataCatalog"
	DynamoSchema     = "default"
	SourceTable      = "all_events"
	DefaultWorkgroup = "primary"
)

// Logical keys for every prefixed resource name.
const (
	KeyAllSendView       = "all_send_events"
	KeyEmailView         = "email_all_events"
	KeySMSView           = "sms_all_events"
	KeyCampaignView      = "campaign_all_events"
	KeyJourneyView       = "journey_all_events"
	KeyCustomView        = "custom_all_events"
	KeyAllSendJoinedView = "all_send_events_with_pinpoint_camp_jour_data"
	KeyEmailJoinedView   = "email_all_events_with_pinpoint_camp_jour_data"
	KeySMSJoinedView     = "sms_all_events_with_pinpoint_camp_jour_data"

	KeyAllSendDataset = "all_send_events_data_set_cdk"
	KeyEmailDataset   = "email_all_events_data_set_cdk"
	KeySMSDataset     = "sms_all_events_data_set_cdk"

	KeyDataSource        = "qs_athena_data_source_cdk"
	KeyAnalysis          = "qs_pinpoint_events_analysis_cdk"
	KeyDynamoCatalog     = "dynamo_db_catalog_cdk"
	KeyConnectorFunction = "athena-dynamo-db-catalog-metadata-function"
	KeyMaterializer      = "view-materializer"
)

var prefixPattern = regexp.MustCompile(`^[a-z_]+$`)

// ValidPrefix reports whether p contains only lowercase letters and underscores.
func ValidPrefix(p string) bool {
	return prefixPattern.MatchString(p)
}

// Registry derives names for a single deployment prefix.
type Registry struct {
	prefix string
}

// New returns a registry for prefix. The registry does not validate the
// prefix; callers that accept user input should check ValidPrefix first.
func New(prefix string) *Registry {
	return &Registry{prefix: prefix}
}

// Name returns the prefixed name for a logical key.
func (r *Registry) Name(key string) string {
	return r.prefix + key
}

// AllSendView returns the name of the view over every send event.
func (r *Registry) AllSendView() string { return r.Name(KeyAllSendView) }

// EmailView returns the name of the view over email events.
func (r *Registry) EmailView() string { return r.Name(KeyEmailView) }

// SMSView returns the name of the view over SMS events.
func (r *Registry) SMSView() string { return r.Name(KeySMSView) }

// CampaignView returns the name of the view over campaign events.
func (r *Registry) CampaignView() string { return r.Name(KeyCampaignView) }

// JourneyView returns the name of the view over journey events.
func (r *Registry) JourneyView() string { return r.Name(KeyJourneyView) }

// CustomView returns the name of the view over custom events.
func (r *Registry) CustomView() string { return r.Name(KeyCustomView) }

// AllSendJoinedView returns the name of the send view joined with campaign
// and journey names.
func (r *Registry) AllSendJoinedView() string { return r.Name(KeyAllSendJoinedView) }

// EmailJoinedView returns the name of the email view joined with campaign
// and journey names.
func (r *Registry) EmailJoinedView() string { return r.Name(KeyEmailJoinedView) }

// SMSJoinedView returns the name of the SMS view joined with campaign and
// journey names.
func (r *Registry) SMSJoinedView() string { return r.Name(KeySMSJoinedView) }

// AllSendDataset returns the name of the QuickSight dataset over all sends.
func (r *Registry) AllSendDataset() string { return r.Name(KeyAllSendDataset) }

// EmailDataset returns the name of the QuickSight dataset over email events.
func (r *Registry) EmailDataset() string { return r.Name(KeyEmailDataset) }

// SMSDataset returns the name of the QuickSight dataset over SMS events.
func (r *Registry) SMSDataset() string { return r.Name(KeySMSDataset) }

// DataSource returns the name of the QuickSight Athena data source.
func (r *Registry) DataSource() string { return r.Name(KeyDataSource) }

// Analysis returns the name of the QuickSight analysis.
func (r *Registry) Analysis() string { return r.Name(KeyAnalysis) }

// DynamoCatalog returns the name of the Athena data catalog backed by the
// DynamoDB connector.
func (r *Registry) DynamoCatalog() string { return r.Name(KeyDynamoCatalog) }

// ConnectorFunction returns the name of the connector's Lambda function.
func (r *Registry) ConnectorFunction() string { return r.Name(KeyConnectorFunction) }

// Materializer returns the name of the view materializer function.
func (r *Registry) Materializer() string { return r.Name(KeyMaterializer) }

// NamedQuery returns the name of the saved query that creates view.
func (r *Registry) NamedQuery(view string) string {
	return view + "_named_query"
}

// ARN builds arn:aws:<service>:<region>:<account>:<resource>.
func ARN(service, region, account, resource string) string {
	return fmt.Sprintf("arn:aws:%s:%s:%s:%s", service, region, account, resource)
}

// QuickSightUserARN returns the ARN of a user in the default namespace.
func QuickSightUserARN(region, account, user string) string {
	return ARN("quicksight", region, account, "user/default/"+user)
}

// FunctionARN returns the ARN of a Lambda function.
func FunctionARN(region, account, function string) string {
	return ARN("lambda", region, account, "function:"+function)
}
