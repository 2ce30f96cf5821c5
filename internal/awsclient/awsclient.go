// Package awsclient builds the AWS SDK clients shared by the CLI commands.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients holds one client per service, all built from the same aws.Config.
type Clients struct {
	Config         aws.Config
	CloudFormation *cloudformation.Client
	S3             *s3.Client
	Athena         *athena.Client
	STS            *sts.Client
}

// Load resolves credentials the usual SDK way (environment, shared config,
// instance role). An empty region falls back to the SDK default chain.
func Load(ctx context.Context, region, profile string) (*Clients, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured; set region or AWS_REGION")
	}

	return &Clients{
		Config:         cfg,
		CloudFormation: cloudformation.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
		Athena:         athena.NewFromConfig(cfg),
		STS:            sts.NewFromConfig(cfg),
	}, nil
}

// QuickSight returns a client for region. QuickSight users live in their
// identity region, which is often not the stack region.
func (c *Clients) QuickSight(region string) *quicksight.Client {
	return quicksight.NewFromConfig(c.Config, func(o *quicksight.Options) {
		if region != "" {
			o.Region = region
		}
	})
}
