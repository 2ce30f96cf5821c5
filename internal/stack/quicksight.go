package stack

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leapstack-labs/pinpoint-analytics/internal/analysis"
	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
	"github.com/leapstack-labs/pinpoint-analytics/internal/views"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Logical ids of the dataset and analysis stages.
const (
	IDQuickSightAccessPolicy = "QuickSightAccessPolicy"
	IDDataSource             = "DataSource"
	IDAnalysis               = "Analysis"
)

// OutputAnalysisURL is the stack output holding the analysis console URL.
const OutputAnalysisURL = "QuickSightPinpointAnalysisURL"

// QuickSight settings shared by every dataset.
const (
	ImportMode       = "SPICE"
	RefreshType      = "INCREMENTAL_REFRESH"
	physicalTableKey = "EventsTable"
)

// Actions granted to the QuickSight user on each resource.
var (
	dataSourceActions = []string{
		"quicksight:DeleteDataSource",
		"quicksight:DescribeDataSource",
		"quicksight:DescribeDataSourcePermissions",
		"quicksight:PassDataSource",
		"quicksight:UpdateDataSource",
		"quicksight:UpdateDataSourcePermissions",
	}
	dataSetActions = []string{
		"quicksight:CancelIngestion",
		"quicksight:CreateIngestion",
		"quicksight:CreateRefreshSchedule",
		"quicksight:DeleteDataSet",
		"quicksight:DeleteDataSetRefreshProperties",
		"quicksight:DeleteRefreshSchedule",
		"quicksight:DescribeDataSet",
		"quicksight:DescribeDataSetPermissions",
		"quicksight:DescribeIngestion",
		"quicksight:DescribeRefreshSchedule",
		"quicksight:ListIngestions",
		"quicksight:PassDataSet",
		"quicksight:PutDataSetRefreshProperties",
		"quicksight:UpdateDataSet",
		"quicksight:UpdateDataSetPermissions",
		"quicksight:UpdateRefreshSchedule",
	}
	analysisActions = []string{
		"quicksight:DeleteAnalysis",
		"quicksight:DescribeAnalysis",
		"quicksight:DescribeAnalysisPermissions",
		"quicksight:QueryAnalysis",
		"quicksight:RestoreAnalysis",
		"quicksight:UpdateAnalysis",
		"quicksight:UpdateAnalysisPermissions",
	}
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/leapstack-labs/pinpoint-analytics"))

// StableID returns a name-based UUID. The same name always yields the same
// id, so repeated builds address the same QuickSight resources.
func StableID(name string) string {
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// DatasetID returns the logical id of a dataset resource.
func DatasetID(ds views.Dataset) string {
	return pascal(ds.Identifier) + "DataSet"
}

// RefreshScheduleID returns the logical id of a dataset's refresh schedule.
func RefreshScheduleID(ds views.Dataset) string {
	return pascal(ds.Identifier) + "RefreshSchedule"
}

func (b *builder) permissions(actions []string) []any {
	principal := naming.QuickSightUserARN(b.cfg.QuickSightUserRegion, b.account(), b.cfg.QuickSightUser)
	list := make([]any, len(actions))
	for i, a := range actions {
		list[i] = a
	}
	return []any{map[string]any{
		"Principal": cfn.Sub(principal),
		"Actions":   list,
	}}
}

func (b *builder) datasets() error {
	access := cfn.PolicyDocument{Statements: []cfn.Statement{
		cfn.Allow([]string{"s3:GetObject", "s3:GetObjectVersion", "s3:ListBucket"},
			"arn:aws:s3:::"+b.cfg.SourceBucket,
			"arn:aws:s3:::"+b.cfg.SourceBucket+"/*",
			cfn.GetAtt(IDSpillBucket, "Arn"),
			cfn.Join("", cfn.GetAtt(IDSpillBucket, "Arn"), "/*")),
		cfn.Allow([]string{"lambda:InvokeFunction"}, b.connectorARN()),
	}}
	doc, err := b.policy(IDQuickSightAccessPolicy, access)
	if err != nil {
		return err
	}
	if err := b.add(IDQuickSightAccessPolicy, &cfn.Resource{
		Type: "AWS::IAM::ManagedPolicy",
		Properties: map[string]any{
			"Description":    "QuickSight access to the Pinpoint event and spill buckets and the DynamoDB connector",
			"Roles":          []any{b.cfg.QuickSightServiceRole},
			"PolicyDocument": doc,
		},
	}); err != nil {
		return err
	}

	if err := b.add(IDDataSource, &cfn.Resource{
		Type: "AWS::QuickSight::DataSource",
		Properties: map[string]any{
			"AwsAccountId": b.accountValue(),
			"DataSourceId": StableID(b.names.DataSource()),
			"Name":         b.names.DataSource(),
			"Type":         "ATHENA",
			"DataSourceParameters": map[string]any{
				"AthenaParameters": map[string]any{"WorkGroup": b.cfg.Workgroup},
			},
			"Permissions": b.permissions(dataSourceActions),
		},
	}); err != nil {
		return err
	}
	// Queries through the data source need the service role grants.
	b.dependsOn(IDDataSource, IDQuickSightAccessPolicy)

	for _, ds := range b.datasetList {
		if err := b.dataset(ds); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) dataset(ds views.Dataset) error {
	columns := make([]any, len(ds.Columns))
	for i, c := range ds.Columns {
		columns[i] = map[string]any{"Name": c.Name, "Type": string(c.Type)}
	}

	datasetID := StableID(ds.Name)
	id := DatasetID(ds)
	if err := b.add(id, &cfn.Resource{
		Type: "AWS::QuickSight::DataSet",
		Properties: map[string]any{
			"AwsAccountId": b.accountValue(),
			"DataSetId":    datasetID,
			"Name":         ds.Name,
			"ImportMode":   ImportMode,
			"PhysicalTableMap": map[string]any{
				physicalTableKey: map[string]any{
					"RelationalTable": map[string]any{
						"DataSourceArn": cfn.GetAtt(IDDataSource, "Arn"),
						"Catalog":       ds.Catalog,
						"Schema":        ds.Schema,
						"Name":          ds.Table,
						"InputColumns":  columns,
					},
				},
			},
			"DataSetRefreshProperties": map[string]any{
				"RefreshConfiguration": map[string]any{
					"IncrementalRefresh": map[string]any{
						"LookbackWindow": map[string]any{
							"ColumnName": ds.Refresh.Column,
							"Size":       ds.Refresh.Size,
							"SizeUnit":   ds.Refresh.Unit,
						},
					},
				},
			},
			"Permissions": b.permissions(dataSetActions),
		},
	}); err != nil {
		return err
	}

	schedule := RefreshScheduleID(ds)
	if err := b.add(schedule, &cfn.Resource{
		Type: "AWS::QuickSight::RefreshSchedule",
		Properties: map[string]any{
			"AwsAccountId": b.accountValue(),
			"DataSetId":    datasetID,
			"Schedule": map[string]any{
				"ScheduleId":  StableID(ds.Name + "/refresh"),
				"RefreshType": RefreshType,
				"ScheduleFrequency": map[string]any{
					"Interval": b.cfg.RefreshInterval,
				},
			},
		},
	}); err != nil {
		return err
	}
	// The schedule names its dataset by id, not by reference.
	b.dependsOn(schedule, id)
	return nil
}

func (b *builder) analysis() error {
	doc := b.cfg.Analysis
	bindings := make([]analysis.Binding, len(b.datasetList))
	for i, ds := range b.datasetList {
		bindings[i] = analysis.Binding{
			Identifier: ds.Identifier,
			DataSetArn: cfn.GetAtt(DatasetID(ds), "Arn"),
		}
	}
	decls, err := doc.Bind(bindings)
	if err != nil {
		return err
	}
	b.decls = decls

	b.report = doc.DanglingIdentifiers(decls)
	if len(b.report.Undeclared) > 0 {
		b.logger.Warn("analysis references undeclared dataset identifiers",
			slog.Any("identifiers", b.report.Undeclared))
	}
	if len(b.report.Unused) > 0 {
		b.logger.Warn("analysis never uses declared dataset identifiers",
			slog.Any("identifiers", b.report.Unused))
	}

	definition, parameters := doc.Properties(decls)
	analysisID := StableID(b.names.Analysis())
	props := map[string]any{
		"AwsAccountId": b.accountValue(),
		"AnalysisId":   analysisID,
		"Name":         b.names.Analysis(),
		"Definition":   definition,
		"Permissions":  b.permissions(analysisActions),
	}
	if parameters != nil {
		props["Parameters"] = parameters
	}
	if err := b.add(IDAnalysis, &cfn.Resource{
		Type:       "AWS::QuickSight::Analysis",
		Properties: props,
	}); err != nil {
		return err
	}

	b.tpl.AddOutput(OutputAnalysisURL, cfn.Output{
		Description: "QuickSight console URL of the Pinpoint analysis",
		Value:       cfn.Sub(fmt.Sprintf("https://${%s}.quicksight.aws.amazon.com/sn/analyses/%s", cfn.Region, analysisID)),
	})
	return nil
}
