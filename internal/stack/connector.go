package stack

import (
	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Logical ids of the connector stage.
const (
	IDLookupDatabase    = "LookupDatabase"
	IDSpillBucket       = "SpillBucket"
	IDSpillBucketPolicy = "SpillBucketPolicy"
	IDConnector         = "AthenaDynamoConnector"
	IDDynamoCatalog     = "DynamoCatalog"
)

// Outputs of the lookup database template.
const (
	OutputCampaignJourneyTable = "campaignJourneyDynamoDbTableName"
	OutputSegmentTable         = "segmentDynamoDbTableName"
	OutputLogBucket            = "S3logBucket"
)

const spillLogPrefix = "spill"

// lookupOutput returns a Fn::Sub placeholder for an output of the nested
// lookup database stack.
func lookupOutput(name string) string {
	return "${" + IDLookupDatabase + ".Outputs." + name + "}"
}

// connectorARN is the ARN of the function the serverless application
// deploys. The application names the function after AthenaCatalogName.
func (b *builder) connectorARN() map[string]any {
	return cfn.Sub(naming.FunctionARN("${"+cfn.Region+"}", b.account(), b.names.ConnectorFunction()))
}

func (b *builder) connector() error {
	if err := b.add(IDLookupDatabase, &cfn.Resource{
		Type: "AWS::CloudFormation::Stack",
		Properties: map[string]any{
			"TemplateURL": b.cfg.LookupTemplateURL,
			"Parameters": map[string]any{
				"PinpointProjectId": b.cfg.PinpointProjectID,
			},
		},
	}); err != nil {
		return err
	}

	if err := b.add(IDSpillBucket, &cfn.Resource{
		Type: "AWS::S3::Bucket",
		Properties: map[string]any{
			"LoggingConfiguration": map[string]any{
				"DestinationBucketName": cfn.GetAtt(IDLookupDatabase, "Outputs."+OutputLogBucket),
				"LogFilePrefix":         spillLogPrefix,
			},
			"PublicAccessBlockConfiguration": map[string]any{
				"BlockPublicAcls":       true,
				"BlockPublicPolicy":     true,
				"IgnorePublicAcls":      true,
				"RestrictPublicBuckets": true,
			},
		},
	}); err != nil {
		return err
	}

	sslOnly := cfn.PolicyDocument{Statements: []cfn.Statement{{
		Effect:    "Deny",
		Principal: map[string]any{"AWS": "*"},
		Actions:   []string{"s3:*"},
		Resources: []any{
			cfn.GetAtt(IDSpillBucket, "Arn"),
			cfn.Sub("${" + IDSpillBucket + ".Arn}/*"),
		},
		Condition: map[string]any{"Bool": map[string]any{"aws:SecureTransport": "false"}},
	}}}
	if err := b.add(IDSpillBucketPolicy, &cfn.Resource{
		Type: "AWS::S3::BucketPolicy",
		Properties: map[string]any{
			"Bucket":         cfn.Ref(IDSpillBucket),
			"PolicyDocument": sslOnly.Value(),
		},
	}); err != nil {
		return err
	}

	if err := b.add(IDConnector, &cfn.Resource{
		Type: "AWS::Serverless::Application",
		Properties: map[string]any{
			"Location": map[string]any{
				"ApplicationId":   b.cfg.ConnectorApplicationID,
				"SemanticVersion": b.cfg.ConnectorVersion,
			},
			"Parameters": map[string]any{
				"AthenaCatalogName": b.names.ConnectorFunction(),
				"SpillBucket":       cfn.Ref(IDSpillBucket),
			},
		},
	}); err != nil {
		return err
	}

	if err := b.add(IDDynamoCatalog, &cfn.Resource{
		Type: "AWS::Athena::DataCatalog",
		Properties: map[string]any{
			"Name":        b.names.DynamoCatalog(),
			"Type":        "LAMBDA",
			"Description": "DynamoDB lookup tables for Pinpoint campaigns, journeys and segments",
			"Parameters": map[string]any{
				"function": b.connectorARN(),
			},
		},
	}); err != nil {
		return err
	}
	// The catalog names the function by ARN, which carries no reference.
	b.dependsOn(IDDynamoCatalog, IDConnector)
	return nil
}

// catalogARN returns the ARN of an Athena data catalog.
func (b *builder) catalogARN(name string) map[string]any {
	return b.arn("athena", "datacatalog/"+name)
}
