// Command view-materializer is the Lambda function behind the stack's view
// custom resource. It runs the Athena named queries listed in
// VIEW_QUERY_LEVELS wave by wave.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"

	"github.com/leapstack-labs/pinpoint-analytics/internal/logging"
	"github.com/leapstack-labs/pinpoint-analytics/internal/materialize"
)

func main() {
	logger := logging.NewJSON(os.Stdout, os.Getenv(materialize.EnvLogLevel))

	handler, err := newHandler(context.Background(), logger, os.Getenv)
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}
	lambda.Start(cfn.LambdaWrap(handler.Handle))
}

func newHandler(ctx context.Context, logger *slog.Logger, getenv func(string) string) (*materialize.CustomResource, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return buildHandler(logger, athena.NewFromConfig(awsCfg), getenv)
}

func buildHandler(logger *slog.Logger, client materialize.AthenaAPI, getenv func(string) string) (*materialize.CustomResource, error) {
	m, err := materialize.New(materialize.Config{
		Logger:    logger,
		Client:    client,
		Bucket:    getenv(materialize.EnvDataBucket),
		Workgroup: getenv(materialize.EnvWorkgroup),
	})
	if err != nil {
		return nil, err
	}
	return materialize.NewCustomResource(m, getenv(materialize.EnvQueryLevels)), nil
}
