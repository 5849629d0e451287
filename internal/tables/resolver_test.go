package tables

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDB is a minimal mock of the DescribeTableAPI interface.
type mockDDB struct {
	describeTableFn func(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	calls           int
}

func (m *mockDDB) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.calls++
	if m.describeTableFn != nil {
		return m.describeTableFn(ctx, input, opts...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func testResolver(client DescribeTableAPI) *Resolver {
	return &Resolver{
		client:  client,
		account: "123456789012",
		region:  "us-east-1",
		logger:  slog.Default(),
	}
}

func TestResolveOwnedNeverCallsDescribe(t *testing.T) {
	mock := &mockDDB{}
	r := testResolver(mock)

	ref, err := r.Resolve(context.Background(), "SonicNovaTranscripts", true, NovaFallbackTimestamp)
	require.NoError(t, err)

	assert.Equal(t, SourceOwned, ref.Source)
	assert.True(t, ref.Owned())
	assert.Empty(t, ref.StreamARN)
	assert.Zero(t, mock.calls)
}

func TestResolveImportedSuccess(t *testing.T) {
	streamARN := "arn:aws:dynamodb:us-east-1:123456789012:table/Foo/stream/2026-01-15T08:00:00.000"
	mock := &mockDDB{
		describeTableFn: func(_ context.Context, input *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			assert.Equal(t, "Foo", *input.TableName)
			return &dynamodb.DescribeTableOutput{
				Table: &ddbtypes.TableDescription{
					TableName:       aws.String("Foo"),
					LatestStreamArn: aws.String(streamARN),
				},
			}, nil
		},
	}
	r := testResolver(mock)

	ref, err := r.Resolve(context.Background(), "Foo", false, NovaFallbackTimestamp)
	require.NoError(t, err)

	assert.Equal(t, SourceResolved, ref.Source)
	assert.Equal(t, streamARN, ref.StreamARN)
	assert.Equal(t, 1, mock.calls)
}

func TestResolveImportedFallbackOnError(t *testing.T) {
	mock := &mockDDB{
		describeTableFn: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, fmt.Errorf("AccessDeniedException")
		},
	}
	r := testResolver(mock)

	ref, err := r.Resolve(context.Background(), "Foo", false, NovaFallbackTimestamp)
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, ref.Source)
	assert.Equal(t,
		"arn:aws:dynamodb:us-east-1:123456789012:table/Foo/stream/2025-06-07T12:39:44.826",
		ref.StreamARN)
}

func TestResolveImportedFallbackOnMissingStream(t *testing.T) {
	mock := &mockDDB{
		describeTableFn: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{
				Table: &ddbtypes.TableDescription{TableName: aws.String("Foo")},
			}, nil
		},
	}
	r := testResolver(mock)

	ref, err := r.Resolve(context.Background(), "Foo", false, DailyFallbackTimestamp)
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, ref.Source)
	assert.Contains(t, ref.StreamARN, "/stream/"+DailyFallbackTimestamp)
}

func TestResolveFatalWhenFallbackUnconstructible(t *testing.T) {
	mock := &mockDDB{
		describeTableFn: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, fmt.Errorf("ResourceNotFoundException")
		},
	}
	r := &Resolver{client: mock, logger: slog.Default()} // no account/region

	_, err := r.Resolve(context.Background(), "Foo", false, NovaFallbackTimestamp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account and region are required")
}

func TestResolveEmptyName(t *testing.T) {
	r := testResolver(&mockDDB{})
	_, err := r.Resolve(context.Background(), "", false, NovaFallbackTimestamp)
	assert.Error(t, err)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "owned", SourceOwned.String())
	assert.Equal(t, "resolved", SourceResolved.String())
	assert.Equal(t, "fallback", SourceFallback.String())
}
