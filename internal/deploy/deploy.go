// Package deploy hands a synthesized template to CloudFormation.
package deploy

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
)

// DefaultMaxWait bounds how long Deploy waits for a stack operation.
const DefaultMaxWait = 60 * time.Minute

// CloudFormationAPI is the subset of the CloudFormation client used here.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, in *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// S3API uploads templates too large to pass inline.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	_ CloudFormationAPI = (*cloudformation.Client)(nil)
	_ S3API             = (*s3.Client)(nil)
)

// capabilities acknowledges the IAM resources and the serverless transform.
var capabilities = []cfntypes.Capability{
	cfntypes.CapabilityCapabilityIam,
	cfntypes.CapabilityCapabilityNamedIam,
	cfntypes.CapabilityCapabilityAutoExpand,
}

// Action is what Deploy did to the stack.
type Action string

// Deploy actions.
const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionNoChange Action = "no-change"
)

// Config configures a Deployer.
type Config struct {
	Logger         *slog.Logger
	CloudFormation CloudFormationAPI
	// S3 and ArtifactBucket are only needed for templates larger than
	// cfn.MaxBodySize.
	S3             S3API
	ArtifactBucket string
	Region         string
	StackName      string
	MaxWait        time.Duration
}

// Validate checks the config and fills defaults.
func (cfg *Config) Validate() error {
	if cfg.CloudFormation == nil {
		return errors.New("cloudformation client is required")
	}
	if cfg.StackName == "" {
		return errors.New("stack name is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	return nil
}

// Deployer creates or updates one stack.
type Deployer struct {
	log *slog.Logger
	cfg Config
}

// New returns a Deployer.
func New(cfg Config) (*Deployer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Deployer{log: cfg.Logger, cfg: cfg}, nil
}

// Result describes a finished deployment.
type Result struct {
	Action      Action
	StackID     string
	TemplateURL string
	Outputs     map[string]string
}

// Deploy creates the stack if it does not exist and updates it otherwise.
// An update with no changes succeeds with ActionNoChange.
func (d *Deployer) Deploy(ctx context.Context, tpl *cfn.Template) (*Result, error) {
	body, err := tpl.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	result := &Result{}
	var inline *string
	if len(body) > cfn.MaxBodySize {
		url, err := d.upload(ctx, body)
		if err != nil {
			return nil, err
		}
		result.TemplateURL = url
	} else {
		inline = aws.String(string(body))
	}

	existing, err := d.describe(ctx)
	if err != nil {
		return nil, err
	}

	name := aws.String(d.cfg.StackName)
	switch {
	case existing == nil:
		result.Action = ActionCreate
		d.log.Info("creating stack", slog.String("stack", d.cfg.StackName))
		out, err := d.cfg.CloudFormation.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    name,
			TemplateBody: inline,
			TemplateURL:  optional(result.TemplateURL),
			Capabilities: capabilities,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stack: %w", err)
		}
		result.StackID = aws.ToString(out.StackId)
		waiter := cloudformation.NewStackCreateCompleteWaiter(d.cfg.CloudFormation)
		if err := waiter.Wait(ctx, &cloudformation.DescribeStacksInput{StackName: name}, d.cfg.MaxWait); err != nil {
			return nil, fmt.Errorf("stack create did not complete: %w", err)
		}

	case existing.StackStatus == cfntypes.StackStatusRollbackComplete:
		return nil, fmt.Errorf("stack %s is in %s and must be deleted before it can be deployed",
			d.cfg.StackName, existing.StackStatus)

	default:
		result.StackID = aws.ToString(existing.StackId)
		d.log.Info("updating stack", slog.String("stack", d.cfg.StackName))
		_, err := d.cfg.CloudFormation.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:    name,
			TemplateBody: inline,
			TemplateURL:  optional(result.TemplateURL),
			Capabilities: capabilities,
		})
		if isNoUpdate(err) {
			d.log.Info("stack is up to date", slog.String("stack", d.cfg.StackName))
			result.Action = ActionNoChange
			result.Outputs = outputs(existing)
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update stack: %w", err)
		}
		result.Action = ActionUpdate
		waiter := cloudformation.NewStackUpdateCompleteWaiter(d.cfg.CloudFormation)
		if err := waiter.Wait(ctx, &cloudformation.DescribeStacksInput{StackName: name}, d.cfg.MaxWait); err != nil {
			return nil, fmt.Errorf("stack update did not complete: %w", err)
		}
	}

	final, err := d.describe(ctx)
	if err != nil {
		return nil, err
	}
	if final != nil {
		result.Outputs = outputs(final)
	}
	return result, nil
}

// describe returns the stack, or nil when it does not exist.
func (d *Deployer) describe(ctx context.Context) (*cfntypes.Stack, error) {
	out, err := d.cfg.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(d.cfg.StackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe stack: %w", err)
	}
	if len(out.Stacks) == 0 {
		return nil, nil
	}
	return &out.Stacks[0], nil
}

func (d *Deployer) upload(ctx context.Context, body []byte) (string, error) {
	if d.cfg.S3 == nil || d.cfg.ArtifactBucket == "" {
		return "", fmt.Errorf("template is %d bytes, over the %d byte inline limit; an artifact bucket is required",
			len(body), cfn.MaxBodySize)
	}
	sum := sha256.Sum256(body)
	key := fmt.Sprintf("%s/%s.json", d.cfg.StackName, hex.EncodeToString(sum[:8]))

	d.log.Debug("uploading template",
		slog.String("bucket", d.cfg.ArtifactBucket),
		slog.String("key", key),
		slog.Int("bytes", len(body)))
	if _, err := d.cfg.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.cfg.ArtifactBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("failed to upload template: %w", err)
	}

	host := d.cfg.ArtifactBucket + ".s3.amazonaws.com"
	if d.cfg.Region != "" {
		host = fmt.Sprintf("%s.s3.%s.amazonaws.com", d.cfg.ArtifactBucket, d.cfg.Region)
	}
	return "https://" + host + "/" + key, nil
}

func isNoUpdate(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}

func outputs(s *cfntypes.Stack) map[string]string {
	out := make(map[string]string, len(s.Outputs))
	for _, o := range s.Outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
