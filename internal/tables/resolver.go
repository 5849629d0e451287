// Package tables resolves transcript table references for stack construction.
//
// A deployment either owns its tables (freshly provisioned by the Data stack)
// or imports tables provisioned elsewhere. Imported tables need their stream
// ARN, which is looked up with a single DescribeTable call; when the lookup
// fails the resolver substitutes a statically formatted ARN and marks the
// reference as a fallback so callers and tests can tell the two apart.
package tables

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Stream timestamps observed on the historical deployment the import path
// was written against. A fallback ARN built from these is syntactically
// valid but almost certainly wrong for any other environment; the Fallback
// source tag exists so that is visible instead of silent.
const (
	NovaFallbackTimestamp  = "2025-06-07T12:39:44.826"
	DailyFallbackTimestamp = "2025-06-07T12:41:02.113"
)

// Source tags how a table reference was obtained.
type Source int

const (
	// SourceOwned marks a table the Data stack provisions itself.
	SourceOwned Source = iota
	// SourceResolved marks an imported table whose stream ARN came from a
	// successful DescribeTable call.
	SourceResolved
	// SourceFallback marks an imported table whose stream ARN was guessed
	// after the DescribeTable call failed.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceOwned:
		return "owned"
	case SourceResolved:
		return "resolved"
	case SourceFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Reference is a resolved table handle. Owned references have no stream ARN
// yet; the construct created for them exposes one at synth time.
type Reference struct {
	Name      string
	StreamARN string
	Source    Source
}

// Owned reports whether the Data stack should provision this table.
func (r Reference) Owned() bool { return r.Source == SourceOwned }

// DescribeTableAPI is the slice of the DynamoDB client the resolver needs.
type DescribeTableAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Resolver resolves table references against one account and region.
type Resolver struct {
	client  DescribeTableAPI
	account string
	region  string
	logger  *slog.Logger
}

// NewResolver builds a Resolver backed by a real DynamoDB client.
func NewResolver(ctx context.Context, account, region string, logger *slog.Logger) (*Resolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Resolver{
		client:  dynamodb.NewFromConfig(awsCfg),
		account: account,
		region:  region,
		logger:  logger,
	}, nil
}

// Resolve returns a Reference for the named table. With createNew set it
// never touches the network. Otherwise it issues exactly one DescribeTable
// call and degrades to a fallback ARN on any failure; an unconstructible
// fallback (missing account or region) is the only error case.
func (r *Resolver) Resolve(ctx context.Context, name string, createNew bool, fallbackTimestamp string) (Reference, error) {
	if name == "" {
		return Reference{}, fmt.Errorf("table name is required")
	}

	if createNew {
		return Reference{Name: name, Source: SourceOwned}, nil
	}

	out, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &name,
	})
	if err == nil && out.Table != nil && out.Table.LatestStreamArn != nil && *out.Table.LatestStreamArn != "" {
		r.logger.Info("resolved table stream", "table", name, "streamArn", *out.Table.LatestStreamArn)
		return Reference{Name: name, StreamARN: *out.Table.LatestStreamArn, Source: SourceResolved}, nil
	}

	if err != nil {
		r.logger.Warn("describe table failed, using fallback stream ARN", "table", name, "error", err)
	} else {
		r.logger.Warn("table has no stream, using fallback stream ARN", "table", name)
	}

	arn, err := r.fallbackStreamARN(name, fallbackTimestamp)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Name: name, StreamARN: arn, Source: SourceFallback}, nil
}

func (r *Resolver) fallbackStreamARN(name, timestamp string) (string, error) {
	if r.region == "" || r.account == "" {
		return "", fmt.Errorf("cannot build fallback stream ARN for %s: account and region are required", name)
	}
	if timestamp == "" {
		return "", fmt.Errorf("cannot build fallback stream ARN for %s: no fallback timestamp", name)
	}
	return fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s/stream/%s", r.region, r.account, name, timestamp), nil
}
