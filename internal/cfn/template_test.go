package cfn

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReferences(t *testing.T) {
	props := map[string]any{
		"Bucket": Ref("SpillBucket"),
		"Arn":    GetAtt("Connector", "Outputs.LambdaArn"),
		"Query":  Sub(`SELECT * FROM "${Lookup.Outputs.table}" WHERE a = '${!literal}' AND r = '${AWS::Region}'`),
		"Joined": Join(",", Ref("QueryA"), "x", GetAtt("QueryB", "NamedQueryId")),
		"Nested": []any{map[string]any{"Role": Ref("Role")}},
		"Local":  map[string]any{"Fn::Sub": []any{"${Var}-${Other}", map[string]any{"Var": Ref("Param")}}},
		"Pseudo": Ref(AccountID),
	}

	assert.Equal(t,
		[]string{"Connector", "Lookup", "Other", "Param", "QueryA", "QueryB", "Role", "SpillBucket"},
		References(props))
}

func TestSubVariables(t *testing.T) {
	assert.Equal(t, []string{"Res", "AWS::AccountId"},
		SubVariables("arn:${Res.Arn}:${AWS::AccountId}:${!esc}"))
	assert.Empty(t, SubVariables("SELECT json_extract_scalar(x, '$.A') FROM t"))
}

func TestTemplate_Validate(t *testing.T) {
	newTemplate := func() *Template {
		tpl := New("test")
		require.NoError(t, tpl.AddResource("Bucket", &Resource{Type: "AWS::S3::Bucket"}))
		require.NoError(t, tpl.AddResource("Policy", &Resource{
			Type:       "AWS::S3::BucketPolicy",
			Properties: map[string]any{"Bucket": Ref("Bucket")},
		}))
		return tpl
	}

	t.Run("valid", func(t *testing.T) {
		tpl := newTemplate()
		tpl.AddOutput("BucketArn", Output{Value: GetAtt("Bucket", "Arn")})
		assert.NoError(t, tpl.Validate())
	})

	t.Run("duplicate resource", func(t *testing.T) {
		tpl := newTemplate()
		assert.Error(t, tpl.AddResource("Bucket", &Resource{Type: "AWS::S3::Bucket"}))
	})

	t.Run("unresolved property reference", func(t *testing.T) {
		tpl := newTemplate()
		tpl.Resources["Policy"].Properties["Other"] = Sub("${Missing.Arn}")
		err := tpl.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnresolvedReference))
		assert.Contains(t, err.Error(), "Missing")
	})

	t.Run("unresolved depends on", func(t *testing.T) {
		tpl := newTemplate()
		tpl.Resources["Policy"].DependsOn = []string{"Ghost"}
		assert.ErrorIs(t, tpl.Validate(), ErrUnresolvedReference)
	})

	t.Run("unresolved output", func(t *testing.T) {
		tpl := newTemplate()
		tpl.AddOutput("X", Output{Value: Ref("Ghost")})
		assert.ErrorIs(t, tpl.Validate(), ErrUnresolvedReference)
	})

	t.Run("parameter reference", func(t *testing.T) {
		tpl := newTemplate()
		tpl.Parameters = map[string]Parameter{"Env": {Type: "String"}}
		tpl.Resources["Policy"].Properties["Env"] = Ref("Env")
		assert.NoError(t, tpl.Validate())
	})

	t.Run("missing type", func(t *testing.T) {
		tpl := newTemplate()
		tpl.Resources["Bucket"].Type = ""
		assert.ErrorContains(t, tpl.Validate(), "no type")
	})
}

func TestTemplate_Render(t *testing.T) {
	tpl := New("render")
	tpl.Transform = []string{ServerlessTransform}
	require.NoError(t, tpl.AddResource("Bucket", &Resource{
		Type:       "AWS::S3::Bucket",
		Properties: map[string]any{"BucketName": Sub("${AWS::StackName}-spill")},
		DependsOn:  []string{"Other"},
	}))

	body, err := tpl.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, FormatVersion, decoded["AWSTemplateFormatVersion"])
	assert.Equal(t, []any{ServerlessTransform}, decoded["Transform"])
	resources := decoded["Resources"].(map[string]any)
	bucket := resources["Bucket"].(map[string]any)
	assert.Equal(t, "AWS::S3::Bucket", bucket["Type"])
	assert.Equal(t, []any{"Other"}, bucket["DependsOn"])
	assert.NotContains(t, decoded, "Outputs")

	out, err := tpl.YAML()
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(out, &fromYAML))
	assert.Equal(t, "render", fromYAML["Description"])
	yamlBucket := fromYAML["Resources"].(map[string]any)["Bucket"].(map[string]any)
	assert.Equal(t,
		map[string]any{"BucketName": map[string]any{"Fn::Sub": "${AWS::StackName}-spill"}},
		yamlBucket["Properties"])
}

func TestTemplate_YAMLNumbers(t *testing.T) {
	tpl := New("numbers")
	props := map[string]any{
		"Layout": map[string]any{
			"ColumnSpan": json.Number("7"),
			"Elements":   []any{map[string]any{"RowSpan": json.Number("12")}},
		},
		"Ratio": json.Number("1.5"),
		"Name":  "7",
	}
	require.NoError(t, tpl.AddResource("Analysis", &Resource{Type: "AWS::QuickSight::Analysis", Properties: props}))
	tpl.AddOutput("Span", Output{Value: json.Number("3")})

	out, err := tpl.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "ColumnSpan: 7\n")
	assert.Contains(t, string(out), "Ratio: 1.5\n")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	got := decoded["Resources"].(map[string]any)["Analysis"].(map[string]any)["Properties"].(map[string]any)
	layout := got["Layout"].(map[string]any)
	assert.Equal(t, 7, layout["ColumnSpan"])
	assert.Equal(t, 12, layout["Elements"].([]any)[0].(map[string]any)["RowSpan"])
	assert.Equal(t, 1.5, got["Ratio"])
	assert.Equal(t, "7", got["Name"])
	assert.Equal(t, 3, decoded["Outputs"].(map[string]any)["Span"].(map[string]any)["Value"])

	// The template itself is left untouched.
	assert.Equal(t, json.Number("7"), props["Layout"].(map[string]any)["ColumnSpan"])
}

func TestPolicyDocument_ValidateLeastPrivilege(t *testing.T) {
	tests := []struct {
		name    string
		doc     PolicyDocument
		wantErr string
	}{
		{
			name: "scoped grants",
			doc: PolicyDocument{Statements: []Statement{
				Allow([]string{"s3:GetObject"}, "arn:aws:s3:::bucket", "arn:aws:s3:::bucket/temp/*"),
				Allow([]string{"logs:CreateLogGroup"}, Sub("arn:aws:logs:${AWS::Region}:${AWS::AccountId}:*")),
				Allow([]string{"lambda:InvokeFunction"}, GetAtt("Connector", "Outputs.LambdaArn")),
				Allow([]string{"athena:GetDataCatalog"}, Join("", "arn:aws:athena:", Ref(Region), ":", Ref(AccountID), ":datacatalog/x")),
			}},
		},
		{
			name:    "star resource",
			doc:     PolicyDocument{Statements: []Statement{Allow([]string{"s3:GetObject"}, "*")}},
			wantErr: "wildcard resource",
		},
		{
			name: "service wide resource",
			doc: PolicyDocument{Statements: []Statement{
				Allow([]string{"glue:GetTable"}, Sub("arn:aws:glue:${AWS::Region}:${AWS::AccountId}:*")),
			}},
			wantErr: "wildcard resource",
		},
		{
			name:    "wildcard action",
			doc:     PolicyDocument{Statements: []Statement{Allow([]string{"s3:*"}, "arn:aws:s3:::bucket")}},
			wantErr: "wildcard action",
		},
		{
			name:    "no resources",
			doc:     PolicyDocument{Statements: []Statement{Allow([]string{"s3:GetObject"})}},
			wantErr: "without resources",
		},
		{
			name: "trust policy",
			doc: PolicyDocument{Statements: []Statement{{
				Effect:    "Allow",
				Principal: map[string]any{"Service": "lambda.amazonaws.com"},
				Actions:   []string{"sts:AssumeRole"},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.ValidateLeastPrivilege()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPolicyDocument_Value(t *testing.T) {
	doc := PolicyDocument{Statements: []Statement{Allow([]string{"s3:GetObject"}, Ref("Bucket"))}}
	v := doc.Value()

	assert.Equal(t, PolicyVersion, v["Version"])
	assert.Equal(t, []string{"Bucket"}, References(v))
}
