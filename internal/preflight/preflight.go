// Package preflight checks the AWS account prerequisites of a deployment:
// credentials, the event bucket, the Athena workgroup and database, and the
// QuickSight user that will own the analysis.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	qstypes "github.com/aws/aws-sdk-go-v2/service/quicksight/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// GlueCatalog is the Athena catalog backed by the Glue data catalog.
const GlueCatalog = "AwsDataCatalog"

// QuickSightNamespace is the namespace users are looked up in.
const QuickSightNamespace = "default"

// STSAPI resolves the calling identity.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3API checks bucket access.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// AthenaAPI checks the workgroup and database.
type AthenaAPI interface {
	GetWorkGroup(ctx context.Context, in *athena.GetWorkGroupInput, optFns ...func(*athena.Options)) (*athena.GetWorkGroupOutput, error)
	GetDatabase(ctx context.Context, in *athena.GetDatabaseInput, optFns ...func(*athena.Options)) (*athena.GetDatabaseOutput, error)
}

// QuickSightAPI checks the analysis owner.
type QuickSightAPI interface {
	DescribeUser(ctx context.Context, in *quicksight.DescribeUserInput, optFns ...func(*quicksight.Options)) (*quicksight.DescribeUserOutput, error)
}

var (
	_ STSAPI        = (*sts.Client)(nil)
	_ S3API         = (*s3.Client)(nil)
	_ AthenaAPI     = (*athena.Client)(nil)
	_ QuickSightAPI = (*quicksight.Client)(nil)
)

// Status is the outcome of a single check.
type Status string

// Check statuses.
const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Check is one line of the report.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report lists the checks in a fixed order.
type Report struct {
	Account string  `json:"account,omitempty"`
	Checks  []Check `json:"checks"`
}

// Err aggregates every failed check, or returns nil.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			merr = multierror.Append(merr, fmt.Errorf("%s: %s", c.Name, c.Detail))
		}
	}
	return merr.ErrorOrNil()
}

// Config configures a Checker.
type Config struct {
	Logger     *slog.Logger
	STS        STSAPI
	S3         S3API
	Athena     AthenaAPI
	QuickSight QuickSightAPI

	// Account, when set, must match the caller's account.
	Account        string
	SourceBucket   string
	ArtifactBucket string
	Workgroup      string
	Database       string
	QuickSightUser string
}

// Validate checks the config and fills defaults.
func (cfg *Config) Validate() error {
	if cfg.STS == nil || cfg.S3 == nil || cfg.Athena == nil || cfg.QuickSight == nil {
		return errors.New("sts, s3, athena and quicksight clients are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Checker runs the preflight checks.
type Checker struct {
	log *slog.Logger
	cfg Config
}

// New returns a Checker.
func New(cfg Config) (*Checker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Checker{log: cfg.Logger, cfg: cfg}, nil
}

// Run resolves the caller identity, then runs the remaining checks
// concurrently. Failed checks are recorded in the report; the error is only
// for a cancelled context.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	identity := Check{Name: "credentials"}
	out, err := c.cfg.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	switch {
	case err != nil:
		identity.Status, identity.Detail = StatusFail, err.Error()
	case c.cfg.Account != "" && aws.ToString(out.Account) != c.cfg.Account:
		identity.Status = StatusFail
		identity.Detail = fmt.Sprintf("credentials are for account %s, configured account is %s",
			aws.ToString(out.Account), c.cfg.Account)
	default:
		report.Account = aws.ToString(out.Account)
		identity.Status, identity.Detail = StatusPass, aws.ToString(out.Arn)
	}
	report.Checks = append(report.Checks, identity)

	checks := []struct {
		name string
		run  func(context.Context, string) (Status, string)
	}{
		{"source bucket", c.bucket(c.cfg.SourceBucket)},
		{"artifact bucket", c.bucket(c.cfg.ArtifactBucket)},
		{"athena workgroup", c.workgroup},
		{"athena database", c.database},
		{"quicksight user", c.user},
	}

	results := make([]Check, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chk := range checks {
		g.Go(func() error {
			status, detail := chk.run(gctx, report.Account)
			results[i] = Check{Name: chk.name, Status: status, Detail: detail}
			c.log.Debug("preflight check",
				slog.String("check", chk.name),
				slog.String("status", string(status)))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Checks = append(report.Checks, results...)
	return report, nil
}

func (c *Checker) bucket(name string) func(context.Context, string) (Status, string) {
	return func(ctx context.Context, _ string) (Status, string) {
		if name == "" {
			return StatusSkip, "not configured"
		}
		if _, err := c.cfg.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
			return StatusFail, fmt.Sprintf("bucket %s: %v", name, err)
		}
		return StatusPass, name
	}
}

func (c *Checker) workgroup(ctx context.Context, _ string) (Status, string) {
	out, err := c.cfg.Athena.GetWorkGroup(ctx, &athena.GetWorkGroupInput{WorkGroup: aws.String(c.cfg.Workgroup)})
	if err != nil {
		return StatusFail, fmt.Sprintf("workgroup %s: %v", c.cfg.Workgroup, err)
	}
	if out.WorkGroup != nil && out.WorkGroup.State == athenatypes.WorkGroupStateDisabled {
		return StatusFail, fmt.Sprintf("workgroup %s is disabled", c.cfg.Workgroup)
	}
	return StatusPass, c.cfg.Workgroup
}

func (c *Checker) database(ctx context.Context, _ string) (Status, string) {
	_, err := c.cfg.Athena.GetDatabase(ctx, &athena.GetDatabaseInput{
		CatalogName:  aws.String(GlueCatalog),
		DatabaseName: aws.String(c.cfg.Database),
	})
	if err != nil {
		return StatusFail, fmt.Sprintf("database %s: %v", c.cfg.Database, err)
	}
	return StatusPass, c.cfg.Database
}

func (c *Checker) user(ctx context.Context, account string) (Status, string) {
	if account == "" {
		return StatusSkip, "account unknown"
	}
	out, err := c.cfg.QuickSight.DescribeUser(ctx, &quicksight.DescribeUserInput{
		AwsAccountId: aws.String(account),
		Namespace:    aws.String(QuickSightNamespace),
		UserName:     aws.String(c.cfg.QuickSightUser),
	})
	if err != nil {
		return StatusFail, fmt.Sprintf("user %s: %v", c.cfg.QuickSightUser, err)
	}
	if out.User == nil {
		return StatusFail, fmt.Sprintf("user %s not found", c.cfg.QuickSightUser)
	}
	switch out.User.Role {
	case qstypes.UserRoleAdmin, qstypes.UserRoleAuthor:
	default:
		return StatusFail, fmt.Sprintf("user %s has role %s; authoring analyses needs AUTHOR or ADMIN",
			c.cfg.QuickSightUser, out.User.Role)
	}
	if !out.User.Active {
		return StatusFail, fmt.Sprintf("user %s is not active", c.cfg.QuickSightUser)
	}
	return StatusPass, fmt.Sprintf("%s (%s)", c.cfg.QuickSightUser, out.User.Role)
}
