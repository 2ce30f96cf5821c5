package stack

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
	"github.com/leapstack-labs/pinpoint-analytics/internal/materialize"
	"github.com/leapstack-labs/pinpoint-analytics/internal/views"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Logical ids of the views stage.
const (
	IDMaterializerRole     = "ViewMaterializerRole"
	IDMaterializerPolicy   = "ViewMaterializerPolicy"
	IDMaterializerFunction = "ViewMaterializerFunction"
	IDMaterializerTrigger  = "ViewMaterializerTrigger"
)

// TriggerType is the custom resource type that runs the materializer.
const TriggerType = "Custom::ViewMaterializer"

// Materializer function settings.
const (
	materializerRuntime = "provided.al2023"
	materializerHandler = "bootstrap"
	materializerMemory  = 256
	materializerTimeout = 300
)

// NamedQueryID returns the logical id of the named query for a view category.
func NamedQueryID(c views.Category) string {
	return pascal(string(c)) + "NamedQuery"
}

func pascal(s string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' }) {
		b.WriteString(strings.ToUpper(word[:1]) + word[1:])
	}
	return b.String()
}

// Digest fingerprints the SQL of every view. It changes whenever any view
// text changes.
func Digest(set *views.Set) string {
	h := sha256.New()
	for _, d := range set.All() {
		h.Write([]byte(d.SQL()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TriggerPhysicalID is the stable physical id the materializer reports for
// its trigger resource.
func TriggerPhysicalID(names *naming.Registry) string {
	return names.Materializer() + "-trigger"
}

func (b *builder) views() error {
	set, err := views.New(views.Params{
		Names:                b.names,
		Database:             b.cfg.Database,
		LookbackMonths:       b.cfg.LookbackMonths,
		CampaignJourneyTable: lookupOutput(OutputCampaignJourneyTable),
		SegmentTable:         lookupOutput(OutputSegmentTable),
	})
	if err != nil {
		return err
	}
	datasets, err := set.Datasets()
	if err != nil {
		return err
	}
	if err := views.Check(set, datasets); err != nil {
		return err
	}
	b.viewSet = set
	b.datasetList = datasets

	queryIDs := map[string]string{}
	for _, def := range set.All() {
		id := NamedQueryID(def.Category)
		queryIDs[def.Name] = id
		if err := b.add(id, &cfn.Resource{
			Type: "AWS::Athena::NamedQuery",
			Properties: map[string]any{
				"Name":        b.names.NamedQuery(def.Name),
				"Database":    def.Database,
				"Description": def.Description,
				"QueryString": cfn.Sub(def.SQL()),
				"WorkGroup":   b.cfg.Workgroup,
			},
		}); err != nil {
			return err
		}
	}

	if err := b.materializer(set, queryIDs); err != nil {
		return err
	}

	trigger := []string{IDMaterializerPolicy, IDDynamoCatalog, IDConnector}
	for _, def := range set.All() {
		trigger = append(trigger, queryIDs[def.Name])
	}
	b.dependsOn(IDMaterializerTrigger, trigger...)
	return nil
}

func (b *builder) materializer(set *views.Set, queryIDs map[string]string) error {
	trust := cfn.PolicyDocument{Statements: []cfn.Statement{{
		Effect:    "Allow",
		Principal: map[string]any{"Service": "lambda.amazonaws.com"},
		Actions:   []string{"sts:AssumeRole"},
	}}}
	if err := b.add(IDMaterializerRole, &cfn.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]any{
			"AssumeRolePolicyDocument": trust.Value(),
			"Path":                     "/",
		},
	}); err != nil {
		return err
	}

	levels, err := set.Levels()
	if err != nil {
		return err
	}
	refs := make([][]string, len(levels))
	for i, level := range levels {
		for _, view := range level {
			refs[i] = append(refs[i], "${"+queryIDs[view]+"}")
		}
	}

	function := b.names.Materializer()
	if err := b.add(IDMaterializerFunction, &cfn.Resource{
		Type: "AWS::Lambda::Function",
		Properties: map[string]any{
			"FunctionName": function,
			"Description":  "Creates the Athena views from their named queries in the " + b.cfg.Database + " database",
			"Runtime":      materializerRuntime,
			"Handler":      materializerHandler,
			"MemorySize":   materializerMemory,
			"Timeout":      materializerTimeout,
			"Role":         cfn.GetAtt(IDMaterializerRole, "Arn"),
			"Code": map[string]any{
				"S3Bucket": b.cfg.MaterializerCodeBucket,
				"S3Key":    b.cfg.MaterializerCodeKey,
			},
			"Environment": map[string]any{
				"Variables": map[string]any{
					materialize.EnvQueryLevels: cfn.Sub(materialize.FormatLevels(refs)),
					materialize.EnvDataBucket:  b.cfg.SourceBucket,
					materialize.EnvWorkgroup:   b.cfg.Workgroup,
					materialize.EnvLogLevel:    "INFO",
				},
			},
		},
	}); err != nil {
		return err
	}

	doc, err := b.policy(IDMaterializerPolicy, b.materializerPolicy(function))
	if err != nil {
		return err
	}
	if err := b.add(IDMaterializerPolicy, &cfn.Resource{
		Type: "AWS::IAM::Policy",
		Properties: map[string]any{
			"PolicyName":     function + "-policy",
			"Roles":          []any{cfn.Ref(IDMaterializerRole)},
			"PolicyDocument": doc,
		},
	}); err != nil {
		return err
	}

	return b.add(IDMaterializerTrigger, &cfn.Resource{
		Type: TriggerType,
		Properties: map[string]any{
			"ServiceToken":                         cfn.GetAtt(IDMaterializerFunction, "Arn"),
			materialize.PropertyPhysicalResourceID: TriggerPhysicalID(b.names),
			"ViewsDigest":                          Digest(set),
		},
	})
}

func (b *builder) materializerPolicy(function string) cfn.PolicyDocument {
	bucket := "arn:aws:s3:::" + b.cfg.SourceBucket
	db := b.cfg.Database
	return cfn.PolicyDocument{Statements: []cfn.Statement{
		cfn.Allow([]string{
			"s3:AbortMultipartUpload",
			"s3:GetBucketLocation",
			"s3:GetObject",
			"s3:ListBucket",
			"s3:ListBucketMultipartUploads",
			"s3:ListMultipartUploadParts",
		}, bucket),
		cfn.Allow([]string{"s3:PutObject"}, bucket+"/"+materialize.OutputPrefix+"*"),
		cfn.Allow([]string{"s3:GetObject", "s3:ListBucket"},
			cfn.GetAtt(IDSpillBucket, "Arn"),
			cfn.Sub("${"+IDSpillBucket+".Arn}/*")),
		cfn.Allow([]string{
			"athena:GetQueryExecution",
			"athena:StartQueryExecution",
			"athena:GetNamedQuery",
			"athena:BatchGetNamedQuery",
			"athena:ListNamedQueries",
			"athena:GetWorkGroup",
		}, b.arn("athena", "workgroup/"+b.cfg.Workgroup)),
		cfn.Allow([]string{
			"glue:CreateTable",
			"glue:GetDatabase",
			"glue:GetDatabases",
			"glue:GetPartition",
			"glue:GetPartitions",
			"glue:GetTable",
			"glue:GetTables",
			"glue:UpdateTable",
		},
			b.arn("glue", "table/"+db+"/*"),
			b.arn("glue", "database/"+db),
			b.arn("glue", "catalog")),
		cfn.Allow([]string{"athena:GetDataCatalog"},
			b.catalogARN(naming.GlueCatalog),
			b.catalogARN(b.names.DynamoCatalog())),
		cfn.Allow([]string{"lambda:InvokeFunction"}, b.connectorARN()),
		cfn.Allow([]string{"logs:CreateLogGroup"}, b.arn("logs", "*")),
		cfn.Allow([]string{"logs:CreateLogStream", "logs:PutLogEvents"},
			b.arn("logs", "log-group:/aws/lambda/"+function+":*")),
	}}
}
