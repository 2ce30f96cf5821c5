package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pinpoint-analytics/internal/stack"
)

const sampleConfig = `
resource_prefix: due_
source_bucket: due-database-events
pinpoint_project_id: 5f15f080a1024dd188fe09330c55a062
date_range_months: 3
quicksight:
  user_name: Admin/analyst
athena:
  database: events
lookup_db:
  template_url: https://templates.s3.amazonaws.com/lookup.json
materializer:
  code_bucket: artifacts
  code_key: view-materializer.zip
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("region", "", "")
	fs.String("prefix", "", "")
	fs.String("stack-name", "", "")
	fs.String("analysis-template", "", "")
	fs.Bool("verbose", false, "")
	fs.String("output", "", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultPrefix, cfg.ResourcePrefix)
	assert.Equal(t, DefaultDateRangeMonths, cfg.DateRangeMonths)
	assert.Equal(t, stack.RefreshDaily, cfg.RefreshInterval)
	assert.Equal(t, DefaultWorkgroup, cfg.Athena.Workgroup)
	assert.Equal(t, DefaultDatabase, cfg.Athena.Database)
	assert.Equal(t, DefaultServiceRole, cfg.QuickSight.ServiceRole)
	assert.Equal(t, DefaultConnectorVersion, cfg.Connector.SemanticVersion)
	assert.Equal(t, DefaultStackName, cfg.Deploy.StackName)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoad_FileFoundUpward(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "pinpoint-analytics.yaml", sampleConfig)
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	used, err := filepath.EvalSymlinks(GetConfigFileUsed())
	require.NoError(t, err)
	assert.Equal(t, resolved, used)

	assert.Equal(t, "due_", cfg.ResourcePrefix)
	assert.Equal(t, 3, cfg.DateRangeMonths)
	assert.Equal(t, "Admin/analyst", cfg.QuickSight.UserName)
	assert.Equal(t, DefaultRegion, cfg.QuickSight.UserRegion)
	assert.Equal(t, "events", cfg.Athena.Database)
	assert.Equal(t, DefaultWorkgroup, cfg.Athena.Workgroup)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultAnalysisTemplate), cfg.AnalysisTemplate)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", sampleConfig)
	writeFile(t, dir, ".env", "PINPOINT_ANALYTICS_ATHENA__WORKGROUP=from_dotenv\nPINPOINT_ANALYTICS_REGION=eu-west-1\n")
	unsetEnv(t, EnvPrefix+"ATHENA__WORKGROUP")
	t.Setenv(EnvPrefix+"REGION", "eu-central-1")
	t.Setenv(EnvPrefix+"QUICKSIGHT__USER_REGION", "us-west-2")
	t.Setenv(EnvPrefix+"DATE_RANGE_MONTHS", "12")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--prefix", "flag_", "--stack-name", "Analytics", "--verbose"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from_dotenv", cfg.Athena.Workgroup, ".env fills unset variables")
	assert.Equal(t, "eu-central-1", cfg.Region, "environment wins over .env")
	assert.Equal(t, "us-west-2", cfg.QuickSight.UserRegion)
	assert.Equal(t, 12, cfg.DateRangeMonths)
	assert.Equal(t, "flag_", cfg.ResourcePrefix)
	assert.Equal(t, "Analytics", cfg.Deploy.StackName)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, dir, cfg.ProjectRoot)
}

func TestLoad_AnalysisTemplateFlagIsRelativeToCWD(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pinpoint-analytics.yaml", sampleConfig)
	cwd := t.TempDir()
	t.Chdir(cwd)

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--analysis-template", "local.json"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("local.json")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.AnalysisTemplate)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pinpoint-analytics.yaml", "source_bucket: [unterminated")

	_, err := Load(path, nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func validConfig() *Config {
	return &Config{
		Region:            "us-east-1",
		ResourcePrefix:    "pinpoint_analytics_",
		SourceBucket:      "due-events",
		PinpointProjectID: "project",
		DateRangeMonths:   6,
		RefreshInterval:   stack.RefreshDaily,
		AnalysisTemplate:  "analysis.json",
		QuickSight: QuickSightConfig{
			UserName:    "Admin/analyst",
			UserRegion:  "us-east-1",
			ServiceRole: stack.ServiceRoleDefault,
		},
		Athena:       AthenaConfig{Workgroup: "primary", Database: "due_eventdb"},
		LookupDB:     LookupDBConfig{TemplateURL: "https://example/lookup.json"},
		Connector:    ConnectorConfig{ApplicationID: DefaultConnectorApp, SemanticVersion: DefaultConnectorVersion},
		Materializer: MaterializerConfig{CodeBucket: "artifacts", CodeKey: "fn.zip"},
		Deploy:       DeployConfig{StackName: "PinpointAnalytics"},
		OutputFormat: OutputText,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:      "bad prefix",
			mutate:    func(c *Config) { c.ResourcePrefix = "Pinpoint-" },
			errSubstr: "only lowercase letters and underscores",
		},
		{
			name:      "bad account",
			mutate:    func(c *Config) { c.Account = "12345" },
			errSubstr: "12 digit account id",
		},
		{
			name:      "unknown refresh interval",
			mutate:    func(c *Config) { c.RefreshInterval = "WEEKLY" },
			errSubstr: "RefreshInterval",
		},
		{
			name:      "zero months",
			mutate:    func(c *Config) { c.DateRangeMonths = 0 },
			errSubstr: "DateRangeMonths",
		},
		{
			name:      "missing quicksight user",
			mutate:    func(c *Config) { c.QuickSight.UserName = "" },
			errSubstr: "UserName: cannot be blank",
		},
		{
			name:      "unknown service role",
			mutate:    func(c *Config) { c.QuickSight.ServiceRole = "admin" },
			errSubstr: "ServiceRole",
		},
		{
			name:      "missing materializer code",
			mutate:    func(c *Config) { c.Materializer.CodeKey = "" },
			errSubstr: "CodeKey: cannot be blank",
		},
		{
			name:      "unknown output",
			mutate:    func(c *Config) { c.OutputFormat = "xml" },
			errSubstr: "OutputFormat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_ValidateDeploy(t *testing.T) {
	c := validConfig()
	c.Deploy.StackName = ""
	require.NoError(t, c.Validate())
	assert.ErrorContains(t, c.ValidateDeploy(), "StackName: cannot be blank")
}

func TestConfig_StackConfig(t *testing.T) {
	c := validConfig()
	sc := c.StackConfig(nil, nil)

	assert.Equal(t, c.ResourcePrefix, sc.Prefix)
	assert.Equal(t, c.Athena.Database, sc.Database)
	assert.Equal(t, c.Athena.Workgroup, sc.Workgroup)
	assert.Equal(t, c.DateRangeMonths, sc.LookbackMonths)
	assert.Equal(t, c.QuickSight.UserName, sc.QuickSightUser)
	assert.Equal(t, c.Materializer.CodeKey, sc.MaterializerCodeKey)
}
