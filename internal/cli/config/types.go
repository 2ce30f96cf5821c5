// Package config loads the pinpoint-analytics CLI configuration from
// defaults, pinpoint-analytics.yaml, a .env file, PINPOINT_ANALYTICS_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"github.com/leapstack-labs/pinpoint-analytics/internal/stack"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// QuickSightConfig identifies the QuickSight user that owns the resources.
type QuickSightConfig struct {
	UserName    string `koanf:"user_name"`
	UserRegion  string `koanf:"user_region"`
	ServiceRole string `koanf:"service_role"`
}

// AthenaConfig locates the event database.
type AthenaConfig struct {
	Workgroup string `koanf:"workgroup"`
	Database  string `koanf:"database"`
}

// LookupDBConfig points at the nested stack that exports campaign, journey
// and segment names to DynamoDB.
type LookupDBConfig struct {
	TemplateURL string `koanf:"template_url"`
}

// ConnectorConfig selects the Athena DynamoDB connector application.
type ConnectorConfig struct {
	ApplicationID   string `koanf:"application_id"`
	SemanticVersion string `koanf:"semantic_version"`
}

// MaterializerConfig locates the view-materializer function bundle.
type MaterializerConfig struct {
	CodeBucket string `koanf:"code_bucket"`
	CodeKey    string `koanf:"code_key"`
}

// DeployConfig controls how the template is handed to CloudFormation.
type DeployConfig struct {
	StackName      string `koanf:"stack_name"`
	ArtifactBucket string `koanf:"artifact_bucket"`
}

// Config holds all CLI configuration options.
type Config struct {
	Region            string `koanf:"region"`
	Profile           string `koanf:"profile"`
	Account           string `koanf:"account"`
	ResourcePrefix    string `koanf:"resource_prefix"`
	SourceBucket      string `koanf:"source_bucket"`
	PinpointProjectID string `koanf:"pinpoint_project_id"`
	DateRangeMonths   int    `koanf:"date_range_months"`
	RefreshInterval   string `koanf:"refresh_interval"`
	AnalysisTemplate  string `koanf:"analysis_template"`

	QuickSight   QuickSightConfig   `koanf:"quicksight"`
	Athena       AthenaConfig       `koanf:"athena"`
	LookupDB     LookupDBConfig     `koanf:"lookup_db"`
	Connector    ConnectorConfig    `koanf:"connector"`
	Materializer MaterializerConfig `koanf:"materializer"`
	Deploy       DeployConfig       `koanf:"deploy"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultRegion           = "us-east-1"
	DefaultPrefix           = naming.DefaultPrefix
	DefaultDateRangeMonths  = 6
	DefaultRefreshInterval  = stack.RefreshDaily
	DefaultAnalysisTemplate = "qs_analysis_definitions/pinpoint_event_analysis.json"
	DefaultWorkgroup        = "primary"
	DefaultDatabase         = "due_eventdb"
	DefaultServiceRole      = stack.ServiceRoleDefault
	DefaultConnectorApp     = "arn:aws:serverlessrepo:us-east-1:292517598671:applications/AthenaDynamoDBConnector"
	DefaultConnectorVersion = "2022.34.1"
	DefaultStackName        = "PinpointAnalytics"
	DefaultOutput           = "text"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// defaults returns the lowest-precedence layer, keyed like the YAML file.
func defaults() map[string]any {
	return map[string]any{
		"region":                     DefaultRegion,
		"resource_prefix":            DefaultPrefix,
		"date_range_months":          DefaultDateRangeMonths,
		"refresh_interval":           DefaultRefreshInterval,
		"analysis_template":          DefaultAnalysisTemplate,
		"quicksight.user_region":     DefaultRegion,
		"quicksight.service_role":    DefaultServiceRole,
		"athena.workgroup":           DefaultWorkgroup,
		"athena.database":            DefaultDatabase,
		"connector.application_id":   DefaultConnectorApp,
		"connector.semantic_version": DefaultConnectorVersion,
		"deploy.stack_name":          DefaultStackName,
		"verbose":                    false,
		"output":                     DefaultOutput,
	}
}
