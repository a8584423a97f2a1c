// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// API is the subset of the CloudWatch Logs client the transport uses.
type API interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

var _ API = (*cloudwatchlogs.Client)(nil)

// Config selects the region, endpoint, and credentials for Load. Zero
// fields fall back to the SDK's default chain (environment, shared
// config, instance role).
type Config struct {
	Region string

	// Endpoint overrides the service URL, for LocalStack or a VPC
	// endpoint.
	Endpoint string

	// Static credentials. Used only when AccessKeyID is set.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Transport writes to CloudWatch Logs.
type Transport struct {
	api API
}

var _ transport.Transport = (*Transport)(nil)

// New wraps an existing client.
func New(api API) *Transport {
	return &Transport{api: api}
}

// Load builds a CloudWatch Logs client from the default AWS
// configuration chain with config's overrides applied.
func Load(ctx context.Context, config Config) (*Transport, error) {
	var loadOptions []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, config.SessionToken),
		))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	if awsConfig.Region == "" {
		return nil, errors.New("cloudwatch: no AWS region configured")
	}

	client := cloudwatchlogs.NewFromConfig(awsConfig, func(options *cloudwatchlogs.Options) {
		options.Retryer = aws.NopRetryer{}
		if config.Endpoint != "" {
			options.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	return New(client), nil
}

// EnsureDestination creates the group and the stream, tolerating
// either already existing. It reports whether the stream was created.
func (t *Transport) EnsureDestination(ctx context.Context, destination transport.Destination) (bool, error) {
	_, err := t.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(destination.Group),
	})
	if err != nil {
		if translated := translate(err); translated.Kind != transport.KindAlreadyExists {
			return false, fmt.Errorf("creating log group %s: %w", destination.Group, translated)
		}
	}

	_, err = t.api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(destination.Group),
		LogStreamName: aws.String(destination.Stream),
	})
	if err != nil {
		translated := translate(err)
		if translated.Kind == transport.KindAlreadyExists {
			return false, nil
		}
		return false, fmt.Errorf("creating log stream %s: %w", destination, translated)
	}
	return true, nil
}

// CurrentToken looks the stream up by name prefix and returns its
// upload sequence token. A stream that has never been written to has
// no token.
func (t *Transport) CurrentToken(ctx context.Context, destination transport.Destination) (string, error) {
	input := &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(destination.Group),
		LogStreamNamePrefix: aws.String(destination.Stream),
	}
	for {
		output, err := t.api.DescribeLogStreams(ctx, input)
		if err != nil {
			return "", fmt.Errorf("describing log streams in %s: %w", destination.Group, translate(err))
		}
		for _, stream := range output.LogStreams {
			if aws.ToString(stream.LogStreamName) == destination.Stream {
				return aws.ToString(stream.UploadSequenceToken), nil
			}
		}
		if aws.ToString(output.NextToken) == "" {
			break
		}
		input.NextToken = output.NextToken
	}
	return "", transport.Errorf(transport.KindNotFound, "log stream %s does not exist", destination)
}

// PutBatch writes records in order. A response listing rejected
// events is returned as a KindOther error whose ExpectedToken is the
// next sequence token, since the accepted part of the batch advanced
// the stream.
func (t *Transport) PutBatch(ctx context.Context, destination transport.Destination, records []logevent.Record, token string) (string, error) {
	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(destination.Group),
		LogStreamName: aws.String(destination.Stream),
		LogEvents:     inputEvents(records),
	}
	if token != "" {
		input.SequenceToken = aws.String(token)
	}

	output, err := t.api.PutLogEvents(ctx, input)
	if err != nil {
		return "", translate(err)
	}
	next := aws.ToString(output.NextSequenceToken)
	if rejected := describeRejected(output.RejectedLogEventsInfo); rejected != "" {
		return next, &transport.Error{
			Kind:          transport.KindOther,
			ExpectedToken: next,
			Err:           fmt.Errorf("%s rejected events: %s", destination, rejected),
		}
	}
	return next, nil
}

func inputEvents(records []logevent.Record) []types.InputLogEvent {
	events := make([]types.InputLogEvent, len(records))
	for index, record := range records {
		events[index] = types.InputLogEvent{
			Timestamp: aws.Int64(record.Timestamp),
			Message:   aws.String(string(record.Payload)),
		}
	}
	return events
}

func describeRejected(info *types.RejectedLogEventsInfo) string {
	if info == nil {
		return ""
	}
	var parts []string
	if info.TooNewLogEventStartIndex != nil {
		parts = append(parts, fmt.Sprintf("too new from index %d", *info.TooNewLogEventStartIndex))
	}
	if info.TooOldLogEventEndIndex != nil {
		parts = append(parts, fmt.Sprintf("too old through index %d", *info.TooOldLogEventEndIndex))
	}
	if info.ExpiredLogEventEndIndex != nil {
		parts = append(parts, fmt.Sprintf("expired through index %d", *info.ExpiredLogEventEndIndex))
	}
	return strings.Join(parts, ", ")
}
