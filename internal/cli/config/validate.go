package config

import (
	"errors"
	"log/slog"
	"reflect"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/leapstack-labs/pinpoint-analytics/internal/analysis"
	"github.com/leapstack-labs/pinpoint-analytics/internal/stack"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

var accountPattern = regexp.MustCompile(`^\d{12}$`)

// Validate checks the fields every command needs to build the stack.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.Account, validation.Match(accountPattern).Error("must be a 12 digit account id")),
		validation.Field(&c.ResourcePrefix, validation.Required, validation.By(prefix)),
		validation.Field(&c.SourceBucket, validation.Required),
		validation.Field(&c.PinpointProjectID, validation.Required),
		validation.Field(&c.DateRangeMonths, validation.Required, validation.Min(1)),
		validation.Field(&c.RefreshInterval, validation.Required,
			validation.In(stack.RefreshDaily, stack.RefreshHourly)),
		validation.Field(&c.AnalysisTemplate, validation.Required),
		nestedFields(&c.QuickSight,
			validation.Field(&c.QuickSight.UserName, validation.Required),
			validation.Field(&c.QuickSight.UserRegion, validation.Required),
			validation.Field(&c.QuickSight.ServiceRole, validation.Required,
				validation.In(stack.ServiceRoleDefault, stack.ServiceRoleS3Consumers)),
		),
		nestedFields(&c.Athena,
			validation.Field(&c.Athena.Workgroup, validation.Required),
			validation.Field(&c.Athena.Database, validation.Required),
		),
		nestedFields(&c.LookupDB,
			validation.Field(&c.LookupDB.TemplateURL, validation.Required),
		),
		nestedFields(&c.Connector,
			validation.Field(&c.Connector.ApplicationID, validation.Required),
			validation.Field(&c.Connector.SemanticVersion, validation.Required),
		),
		nestedFields(&c.Materializer,
			validation.Field(&c.Materializer.CodeBucket, validation.Required),
			validation.Field(&c.Materializer.CodeKey, validation.Required),
		),
		validation.Field(&c.OutputFormat, validation.In(OutputText, OutputJSON, OutputYAML)),
	)
}

// ValidateDeploy additionally checks the deployment settings.
func (c *Config) ValidateDeploy() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		nestedFields(&c.Deploy,
			validation.Field(&c.Deploy.StackName, validation.Required),
		),
	)
}

// StackConfig maps the CLI configuration onto the stack builder's.
func (c *Config) StackConfig(doc *analysis.Document, logger *slog.Logger) stack.Config {
	return stack.Config{
		Prefix:                 c.ResourcePrefix,
		Account:                c.Account,
		SourceBucket:           c.SourceBucket,
		PinpointProjectID:      c.PinpointProjectID,
		Database:               c.Athena.Database,
		Workgroup:              c.Athena.Workgroup,
		LookbackMonths:         c.DateRangeMonths,
		RefreshInterval:        c.RefreshInterval,
		QuickSightUser:         c.QuickSight.UserName,
		QuickSightUserRegion:   c.QuickSight.UserRegion,
		QuickSightServiceRole:  c.QuickSight.ServiceRole,
		LookupTemplateURL:      c.LookupDB.TemplateURL,
		ConnectorApplicationID: c.Connector.ApplicationID,
		ConnectorVersion:       c.Connector.SemanticVersion,
		MaterializerCodeBucket: c.Materializer.CodeBucket,
		MaterializerCodeKey:    c.Materializer.CodeKey,
		Analysis:               doc,
		Logger:                 logger,
	}
}

func prefix(value any) error {
	p, _ := value.(string)
	if !naming.ValidPrefix(p) {
		return errors.New("must contain only lowercase letters and underscores")
	}
	return nil
}

// nestedFields validates the fields of an embedded struct under its own key.
// See https://github.com/go-ozzo/ozzo-validation/issues/136.
func nestedFields(target any, fieldRules ...*validation.FieldRules) *validation.FieldRules {
	return validation.Field(target, validation.By(func(value any) error {
		valueV := reflect.Indirect(reflect.ValueOf(value))
		if valueV.CanAddr() {
			return validation.ValidateStruct(valueV.Addr().Interface(), fieldRules...)
		}
		return validation.ValidateStruct(target, fieldRules...)
	}))
}
