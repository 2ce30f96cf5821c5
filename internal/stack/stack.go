// Package stack assembles the provisioning graph for Pinpoint analytics: the
// lookup database and federated catalog, the Athena views, the QuickSight
// datasets and the analysis. The graph is emitted as a CloudFormation
// template whose DependsOn entries encode the stage ordering.
package stack

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/leapstack-labs/pinpoint-analytics/internal/analysis"
	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
	"github.com/leapstack-labs/pinpoint-analytics/internal/dag"
	"github.com/leapstack-labs/pinpoint-analytics/internal/views"
	"github.com/leapstack-labs/pinpoint-analytics/pkg/naming"
)

// Refresh intervals accepted by QuickSight refresh schedules.
const (
	RefreshDaily  = "DAILY"
	RefreshHourly = "HOURLY"
)

// QuickSight service roles that may be granted data access.
const (
	ServiceRoleDefault     = "aws-quicksight-service-role-v0"
	ServiceRoleS3Consumers = "aws-quicksight-s3-consumers-role-v0"
)

// Config holds everything needed to build the graph.
type Config struct {
	Prefix string
	// Account is the AWS account id. When empty the template uses the
	// AWS::AccountId pseudo parameter.
	Account string

	SourceBucket      string
	PinpointProjectID string
	Database          string
	Workgroup         string
	LookbackMonths    int
	RefreshInterval   string

	QuickSightUser        string
	QuickSightUserRegion  string
	QuickSightServiceRole string

	LookupTemplateURL      string
	ConnectorApplicationID string
	ConnectorVersion       string

	MaterializerCodeBucket string
	MaterializerCodeKey    string

	// Analysis is the dashboard definition to deploy.
	Analysis *analysis.Document

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Prefix, validation.Required, validation.By(validPrefix)),
		validation.Field(&c.SourceBucket, validation.Required),
		validation.Field(&c.PinpointProjectID, validation.Required),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.Workgroup, validation.Required),
		validation.Field(&c.LookbackMonths, validation.Required, validation.Min(1)),
		validation.Field(&c.RefreshInterval, validation.Required, validation.In(RefreshDaily, RefreshHourly)),
		validation.Field(&c.QuickSightUser, validation.Required),
		validation.Field(&c.QuickSightUserRegion, validation.Required),
		validation.Field(&c.QuickSightServiceRole, validation.Required,
			validation.In(ServiceRoleDefault, ServiceRoleS3Consumers)),
		validation.Field(&c.LookupTemplateURL, validation.Required),
		validation.Field(&c.ConnectorApplicationID, validation.Required),
		validation.Field(&c.ConnectorVersion, validation.Required),
		validation.Field(&c.MaterializerCodeBucket, validation.Required),
		validation.Field(&c.MaterializerCodeKey, validation.Required),
		validation.Field(&c.Analysis, validation.NotNil),
	)
}

func validPrefix(value any) error {
	p, _ := value.(string)
	if !naming.ValidPrefix(p) {
		return errors.New("must contain only lowercase letters and underscores")
	}
	return nil
}

// Stage groups resources that must settle before the next group starts.
type Stage int

// Stages in deployment order.
const (
	StageConnector Stage = iota
	StageViews
	StageDatasets
	StageAnalysis
)

func (s Stage) String() string {
	switch s {
	case StageConnector:
		return "connector"
	case StageViews:
		return "views"
	case StageDatasets:
		return "datasets"
	case StageAnalysis:
		return "analysis"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Stages returns every stage in deployment order.
func Stages() []Stage {
	return []Stage{StageConnector, StageViews, StageDatasets, StageAnalysis}
}

// Stack is a built provisioning graph.
type Stack struct {
	Template *cfn.Template
	// Graph holds one node per resource; node data is the resource's Stage.
	Graph        *dag.Graph
	Views        *views.Set
	Datasets     []views.Dataset
	Declarations []analysis.Declaration
	// Identifiers reports dataset identifiers the analysis references but
	// does not declare, and declarations it never uses.
	Identifiers analysis.IdentifierReport

	stages map[Stage][]string
}

// Resources returns the logical ids in a stage, sorted.
func (s *Stack) Resources(stage Stage) []string {
	ids := slices.Clone(s.stages[stage])
	slices.Sort(ids)
	return ids
}

// StageOf returns the stage a resource belongs to.
func (s *Stack) StageOf(id string) (Stage, bool) {
	n, ok := s.Graph.Node(id)
	if !ok {
		return 0, false
	}
	stage, ok := n.Data.(Stage)
	return stage, ok
}

// Order returns the resource ids grouped in creation waves.
func (s *Stack) Order() ([][]string, error) {
	return s.Graph.ExecutionLevels()
}

// Build declares every resource, derives the dependency graph and validates
// the result. Any unresolved reference, cycle or over-broad grant fails the
// build.
func Build(cfg Config) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stack config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &builder{
		cfg:      cfg,
		logger:   logger,
		names:    naming.New(cfg.Prefix),
		tpl:      cfn.New(fmt.Sprintf("Pinpoint analytics (%s)", cfg.Prefix)),
		graph:    dag.NewGraph(),
		stages:   map[Stage][]string{},
		explicit: map[string][]string{},
	}
	b.tpl.Transform = []string{cfn.ServerlessTransform}

	steps := []struct {
		stage Stage
		fn    func() error
	}{
		{StageConnector, b.connector},
		{StageViews, b.views},
		{StageDatasets, b.datasets},
		{StageAnalysis, b.analysis},
	}
	for _, step := range steps {
		b.stage = step.stage
		if err := step.fn(); err != nil {
			return nil, fmt.Errorf("%s stage: %w", step.stage, err)
		}
	}

	if err := b.tpl.Validate(); err != nil {
		return nil, err
	}
	if err := b.link(); err != nil {
		return nil, err
	}

	logger.Debug("stack built",
		slog.Int("resources", b.graph.NodeCount()),
		slog.Int("edges", b.graph.EdgeCount()))

	return &Stack{
		Template:     b.tpl,
		Graph:        b.graph,
		Views:        b.viewSet,
		Datasets:     b.datasetList,
		Declarations: b.decls,
		Identifiers:  b.report,
		stages:       b.stages,
	}, nil
}

type builder struct {
	cfg    Config
	logger *slog.Logger
	names  *naming.Registry
	tpl    *cfn.Template
	graph  *dag.Graph

	stage    Stage
	stages   map[Stage][]string
	explicit map[string][]string

	viewSet     *views.Set
	datasetList []views.Dataset
	decls       []analysis.Declaration
	report      analysis.IdentifierReport
}

func (b *builder) add(id string, r *cfn.Resource) error {
	if err := b.tpl.AddResource(id, r); err != nil {
		return err
	}
	b.graph.AddNode(id, b.stage)
	b.stages[b.stage] = append(b.stages[b.stage], id)
	b.logger.Debug("declared resource",
		slog.String("id", id),
		slog.String("type", r.Type),
		slog.String("stage", b.stage.String()))
	return nil
}

// dependsOn records ordering that no property reference expresses.
func (b *builder) dependsOn(id string, deps ...string) {
	b.explicit[id] = append(b.explicit[id], deps...)
}

// link adds reference edges, explicit edges and stage barriers to the graph,
// checks it for cycles and writes every ordering edge not implied by a
// reference into DependsOn.
func (b *builder) link() error {
	implicit := map[string]map[string]bool{}
	for _, id := range b.tpl.ResourceIDs() {
		implicit[id] = map[string]bool{}
		for _, ref := range cfn.References(b.tpl.Resources[id].Properties) {
			if _, ok := b.tpl.Resources[ref]; !ok {
				continue
			}
			implicit[id][ref] = true
			if err := b.graph.AddEdge(ref, id); err != nil {
				return fmt.Errorf("reference %s -> %s: %w", ref, id, err)
			}
		}
	}

	for id, deps := range b.explicit {
		for _, dep := range deps {
			if _, ok := b.tpl.Resources[dep]; !ok {
				return fmt.Errorf("resource %s: %w: depends on %s", id, cfn.ErrUnresolvedReference, dep)
			}
			if err := b.graph.AddEdge(dep, id); err != nil {
				return fmt.Errorf("dependency %s -> %s: %w", dep, id, err)
			}
		}
	}

	stages := Stages()
	for i := 1; i < len(stages); i++ {
		if err := b.graph.AddBarrier(b.stages[stages[i-1]], b.stages[stages[i]]); err != nil {
			return err
		}
	}

	if err := b.graph.Validate(); err != nil {
		return err
	}

	for id, r := range b.tpl.Resources {
		var deps []string
		for _, parent := range b.graph.Parents(id) {
			if !implicit[id][parent] {
				deps = append(deps, parent)
			}
		}
		r.DependsOn = deps
	}
	return nil
}

// policy renders a policy document after checking it grants no wildcard
// resources.
func (b *builder) policy(name string, doc cfn.PolicyDocument) (map[string]any, error) {
	if err := doc.ValidateLeastPrivilege(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", name, err)
	}
	return doc.Value(), nil
}

// account returns the account id for use inside Fn::Sub strings.
func (b *builder) account() string {
	if b.cfg.Account != "" {
		return b.cfg.Account
	}
	return "${" + cfn.AccountID + "}"
}

// accountValue returns the account id as a property value.
func (b *builder) accountValue() any {
	if b.cfg.Account != "" {
		return b.cfg.Account
	}
	return cfn.Ref(cfn.AccountID)
}

// arn returns a Fn::Sub ARN in the deployment region and account.
func (b *builder) arn(service, resource string) map[string]any {
	return cfn.Sub(naming.ARN(service, "${"+cfn.Region+"}", b.account(), resource))
}
