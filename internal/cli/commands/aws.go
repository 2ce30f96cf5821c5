package commands

import (
	"context"

	"github.com/leapstack-labs/pinpoint-analytics/internal/awsclient"
	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
	"github.com/leapstack-labs/pinpoint-analytics/internal/deploy"
	"github.com/leapstack-labs/pinpoint-analytics/internal/preflight"
)

// StackDeployer is satisfied by *deploy.Deployer.
type StackDeployer interface {
	Deploy(ctx context.Context, tpl *cfn.Template) (*deploy.Result, error)
}

// PreflightRunner is satisfied by *preflight.Checker.
type PreflightRunner interface {
	Run(ctx context.Context) (*preflight.Report, error)
}

// newDeployer and newPreflight build the AWS-backed implementations. Tests
// replace them.
var (
	newDeployer  = awsDeployer
	newPreflight = awsPreflight
)

func awsDeployer(ctx context.Context, cmdCtx *CommandContext) (StackDeployer, error) {
	cfg := cmdCtx.Cfg
	clients, err := awsclient.Load(ctx, cfg.Region, cfg.Profile)
	if err != nil {
		return nil, err
	}
	return deploy.New(deploy.Config{
		Logger:         cmdCtx.Logger,
		CloudFormation: clients.CloudFormation,
		S3:             clients.S3,
		ArtifactBucket: cfg.Deploy.ArtifactBucket,
		Region:         clients.Config.Region,
		StackName:      cfg.Deploy.StackName,
	})
}

func awsPreflight(ctx context.Context, cmdCtx *CommandContext) (PreflightRunner, error) {
	cfg := cmdCtx.Cfg
	clients, err := awsclient.Load(ctx, cfg.Region, cfg.Profile)
	if err != nil {
		return nil, err
	}
	return preflight.New(preflightConfig(cmdCtx, clients))
}

func preflightConfig(cmdCtx *CommandContext, clients *awsclient.Clients) preflight.Config {
	cfg := cmdCtx.Cfg
	return preflight.Config{
		Logger:         cmdCtx.Logger,
		STS:            clients.STS,
		S3:             clients.S3,
		Athena:         clients.Athena,
		QuickSight:     clients.QuickSight(cfg.QuickSight.UserRegion),
		Account:        cfg.Account,
		SourceBucket:   cfg.SourceBucket,
		ArtifactBucket: cfg.Deploy.ArtifactBucket,
		Workgroup:      cfg.Athena.Workgroup,
		Database:       cfg.Athena.Database,
		QuickSightUser: cfg.QuickSight.UserName,
	}
}
