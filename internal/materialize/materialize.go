// Package materialize creates Athena views by running their saved named
// queries in dependency waves.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
)

// DefaultPollInterval is the delay between query status checks.
const DefaultPollInterval = 2 * time.Second

// AthenaAPI is the subset of the Athena client the materializer uses.
type AthenaAPI interface {
	BatchGetNamedQuery(ctx context.Context, in *athena.BatchGetNamedQueryInput, optFns ...func(*athena.Options)) (*athena.BatchGetNamedQueryOutput, error)
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// Config configures a Materializer.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Client AthenaAPI
	// Bucket receives query results under OutputPrefix.
	Bucket string
	// Workgroup runs the queries. Empty uses the account default.
	Workgroup    string
	PollInterval time.Duration
}

// Validate checks the config and fills defaults.
func (cfg *Config) Validate() error {
	if cfg.Client == nil {
		return errors.New("athena client is required")
	}
	if cfg.Bucket == "" {
		return errors.New("data bucket is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return nil
}

// Materializer runs named queries wave by wave.
type Materializer struct {
	log *slog.Logger
	cfg Config
}

// New returns a Materializer.
func New(cfg Config) (*Materializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Materializer{log: cfg.Logger, cfg: cfg}, nil
}

// Result is the outcome of one query execution.
type Result struct {
	Name        string
	ExecutionID string
	State       types.QueryExecutionState
	Reason      string
}

// Run executes each wave of named query ids. Every query of a wave is started
// before any is awaited, and the next wave starts only after the whole wave
// succeeded.
func (m *Materializer) Run(ctx context.Context, levels [][]string) ([]Result, error) {
	var results []Result
	for i, ids := range levels {
		wave, err := m.runWave(ctx, ids)
		results = append(results, wave...)
		if err != nil {
			return results, fmt.Errorf("wave %d: %w", i, err)
		}
		m.log.Info("wave complete", slog.Int("wave", i), slog.Int("queries", len(wave)))
	}
	return results, nil
}

func (m *Materializer) runWave(ctx context.Context, ids []string) ([]Result, error) {
	out, err := m.cfg.Client.BatchGetNamedQuery(ctx, &athena.BatchGetNamedQueryInput{NamedQueryIds: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to get named queries: %w", err)
	}
	if len(out.UnprocessedNamedQueryIds) > 0 {
		var merr *multierror.Error
		for _, u := range out.UnprocessedNamedQueryIds {
			merr = multierror.Append(merr, fmt.Errorf("named query %s: %s",
				aws.ToString(u.NamedQueryId), aws.ToString(u.ErrorMessage)))
		}
		return nil, merr.ErrorOrNil()
	}

	queries := out.NamedQueries
	sort.Slice(queries, func(i, j int) bool {
		return aws.ToString(queries[i].Name) < aws.ToString(queries[j].Name)
	})

	results := make([]Result, 0, len(queries))
	for _, q := range queries {
		name := aws.ToString(q.Name)
		in := &athena.StartQueryExecutionInput{
			QueryString:           q.QueryString,
			QueryExecutionContext: &types.QueryExecutionContext{Database: q.Database},
			ResultConfiguration: &types.ResultConfiguration{
				OutputLocation: aws.String(fmt.Sprintf("s3://%s/%s", m.cfg.Bucket, OutputPrefix)),
			},
		}
		if m.cfg.Workgroup != "" {
			in.WorkGroup = aws.String(m.cfg.Workgroup)
		}
		started, err := m.cfg.Client.StartQueryExecution(ctx, in)
		if err != nil {
			return results, fmt.Errorf("failed to start %s: %w", name, err)
		}
		m.log.Debug("started query",
			slog.String("name", name),
			slog.String("execution_id", aws.ToString(started.QueryExecutionId)))
		results = append(results, Result{Name: name, ExecutionID: aws.ToString(started.QueryExecutionId)})
	}

	var merr *multierror.Error
	for i := range results {
		if err := m.wait(ctx, &results[i]); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return results, merr.ErrorOrNil()
}

// wait polls an execution until it reaches a terminal state.
func (m *Materializer) wait(ctx context.Context, r *Result) error {
	for {
		out, err := m.cfg.Client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(r.ExecutionID),
		})
		if err != nil {
			return fmt.Errorf("failed to get status of %s: %w", r.Name, err)
		}
		if out.QueryExecution != nil && out.QueryExecution.Status != nil {
			r.State = out.QueryExecution.Status.State
			r.Reason = aws.ToString(out.QueryExecution.Status.StateChangeReason)
		}

		switch r.State {
		case types.QueryExecutionStateSucceeded:
			m.log.Debug("query succeeded", slog.String("name", r.Name))
			return nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			m.log.Error("query did not succeed",
				slog.String("name", r.Name),
				slog.String("state", string(r.State)),
				slog.String("reason", r.Reason))
			return fmt.Errorf("%s %s: %s", r.Name, r.State, r.Reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.cfg.Clock.After(m.cfg.PollInterval):
		}
	}
}
