// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cloudwatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/transport"
)

var destination = transport.Destination{Group: "/app/web", Stream: "host-1"}

// fakeAPI answers each call with the next scripted result for that
// operation and records what was sent.
type fakeAPI struct {
	mu sync.Mutex

	createGroupErrs  []error
	createStreamErrs []error
	describePages    []*cloudwatchlogs.DescribeLogStreamsOutput
	describeErr      error
	putOutputs       []*cloudwatchlogs.PutLogEventsOutput
	putErrs          []error

	describeInputs []cloudwatchlogs.DescribeLogStreamsInput
	putInputs      []cloudwatchlogs.PutLogEventsInput
}

func pop[T any](queue *[]T) (T, bool) {
	var zero T
	if len(*queue) == 0 {
		return zero, false
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head, true
}

// operationError wraps err the way the SDK does.
func operationError(operation string, err error) error {
	return &smithy.OperationError{ServiceID: "CloudWatch Logs", OperationName: operation, Err: err}
}

func (f *fakeAPI) CreateLogGroup(_ context.Context, _ *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, _ := pop(&f.createGroupErrs); err != nil {
		return nil, operationError("CreateLogGroup", err)
	}
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeAPI) CreateLogStream(_ context.Context, _ *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, _ := pop(&f.createStreamErrs); err != nil {
		return nil, operationError("CreateLogStream", err)
	}
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeAPI) DescribeLogStreams(_ context.Context, input *cloudwatchlogs.DescribeLogStreamsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeInputs = append(f.describeInputs, *input)
	if f.describeErr != nil {
		return nil, operationError("DescribeLogStreams", f.describeErr)
	}
	page, ok := pop(&f.describePages)
	if !ok {
		return &cloudwatchlogs.DescribeLogStreamsOutput{}, nil
	}
	return page, nil
}

func (f *fakeAPI) PutLogEvents(_ context.Context, input *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putInputs = append(f.putInputs, *input)
	if err, _ := pop(&f.putErrs); err != nil {
		return nil, operationError("PutLogEvents", err)
	}
	output, ok := pop(&f.putOutputs)
	if !ok {
		return &cloudwatchlogs.PutLogEventsOutput{NextSequenceToken: aws.String("next")}, nil
	}
	return output, nil
}

func TestEnsureDestination(t *testing.T) {
	t.Parallel()
	exists := &types.ResourceAlreadyExistsException{Message: aws.String("exists")}

	tests := []struct {
		name        string
		groupErrs   []error
		streamErrs  []error
		wantCreated bool
		wantKind    transport.Kind
		wantErr     bool
	}{
		{name: "fresh", wantCreated: true},
		{name: "group exists", groupErrs: []error{exists}, wantCreated: true},
		{name: "both exist", groupErrs: []error{exists}, streamErrs: []error{exists}},
		{
			name:      "group throttled",
			groupErrs: []error{&smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}},
			wantKind:  transport.KindThrottled,
			wantErr:   true,
		},
		{
			name:       "stream denied",
			streamErrs: []error{&smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}},
			wantKind:   transport.KindOther,
			wantErr:    true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			api := &fakeAPI{createGroupErrs: test.groupErrs, createStreamErrs: test.streamErrs}
			created, err := New(api).EnsureDestination(context.Background(), destination)
			if (err != nil) != test.wantErr {
				t.Fatalf("EnsureDestination error = %v, wantErr %v", err, test.wantErr)
			}
			if created != test.wantCreated {
				t.Errorf("created = %v, want %v", created, test.wantCreated)
			}
			if err != nil && transport.KindOf(err) != test.wantKind {
				t.Errorf("kind = %v, want %v", transport.KindOf(err), test.wantKind)
			}
		})
	}
}

func TestCurrentTokenFollowsPages(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{describePages: []*cloudwatchlogs.DescribeLogStreamsOutput{
		{
			LogStreams: []types.LogStream{{LogStreamName: aws.String("host-10"), UploadSequenceToken: aws.String("wrong")}},
			NextToken:  aws.String("page-2"),
		},
		{
			LogStreams: []types.LogStream{{LogStreamName: aws.String("host-1"), UploadSequenceToken: aws.String("4961")}},
		},
	}}
	token, err := New(api).CurrentToken(context.Background(), destination)
	if err != nil || token != "4961" {
		t.Fatalf("CurrentToken = %q, %v", token, err)
	}
	if len(api.describeInputs) != 2 || aws.ToString(api.describeInputs[1].NextToken) != "page-2" {
		t.Errorf("describe calls = %+v", api.describeInputs)
	}
	if aws.ToString(api.describeInputs[0].LogStreamNamePrefix) != "host-1" {
		t.Errorf("prefix = %q", aws.ToString(api.describeInputs[0].LogStreamNamePrefix))
	}
}

func TestCurrentTokenMissingStream(t *testing.T) {
	t.Parallel()
	_, err := New(&fakeAPI{}).CurrentToken(context.Background(), destination)
	if transport.KindOf(err) != transport.KindNotFound {
		t.Errorf("missing stream = %v, want not found", err)
	}

	api := &fakeAPI{describeErr: &types.ResourceNotFoundException{Message: aws.String("group")}}
	_, err = New(api).CurrentToken(context.Background(), destination)
	if transport.KindOf(err) != transport.KindNotFound {
		t.Errorf("missing group = %v, want not found", err)
	}
}

func TestPutBatchSendsEventsAndToken(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{putOutputs: []*cloudwatchlogs.PutLogEventsOutput{{NextSequenceToken: aws.String("t2")}}}
	at := time.UnixMilli(1_700_000_000_000)
	records := []logevent.Record{
		logevent.NewRecord(at, []byte("first")),
		logevent.NewRecord(at.Add(time.Second), []byte(`{"k":"v"}`)),
	}

	next, err := New(api).PutBatch(context.Background(), destination, records, "t1")
	if err != nil || next != "t2" {
		t.Fatalf("PutBatch = %q, %v", next, err)
	}
	input := api.putInputs[0]
	if aws.ToString(input.SequenceToken) != "t1" {
		t.Errorf("sequence token = %q", aws.ToString(input.SequenceToken))
	}
	if len(input.LogEvents) != 2 ||
		aws.ToString(input.LogEvents[1].Message) != `{"k":"v"}` ||
		aws.ToInt64(input.LogEvents[1].Timestamp) != at.Add(time.Second).UnixMilli() {
		t.Errorf("events = %+v", input.LogEvents)
	}

	if _, err := New(api).PutBatch(context.Background(), destination, records, ""); err != nil {
		t.Fatal(err)
	}
	if api.putInputs[1].SequenceToken != nil {
		t.Error("empty token should be omitted")
	}
}

func TestPutBatchErrorKinds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		kind     transport.Kind
		expected string
		class    transport.Class
	}{
		{
			name:     "stale token",
			err:      &types.InvalidSequenceTokenException{Message: aws.String("stale"), ExpectedSequenceToken: aws.String("77")},
			kind:     transport.KindInvalidToken,
			expected: "77",
			class:    transport.Retryable,
		},
		{
			name:     "duplicate",
			err:      &types.DataAlreadyAcceptedException{Message: aws.String("dup"), ExpectedSequenceToken: aws.String("78")},
			kind:     transport.KindAlreadyAccepted,
			expected: "78",
			class:    transport.Success,
		},
		{name: "not found", err: &types.ResourceNotFoundException{}, kind: transport.KindNotFound, class: transport.Retryable},
		{name: "unavailable", err: &types.ServiceUnavailableException{}, kind: transport.KindThrottled, class: transport.Retryable},
		{
			name:  "throttling code",
			err:   &smithy.GenericAPIError{Code: "ThrottlingException"},
			kind:  transport.KindThrottled,
			class: transport.Retryable,
		},
		{
			name:  "connection refused",
			err:   &smithyhttp.RequestSendError{Err: errors.New("dial tcp: connection refused")},
			kind:  transport.KindThrottled,
			class: transport.Retryable,
		},
		{
			name:  "invalid parameter",
			err:   &types.InvalidParameterException{Message: aws.String("bad")},
			kind:  transport.KindOther,
			class: transport.Fatal,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			api := &fakeAPI{putErrs: []error{test.err}}
			_, err := New(api).PutBatch(context.Background(), destination,
				[]logevent.Record{logevent.NewRecord(time.Now(), []byte("x"))}, "")
			if err == nil {
				t.Fatal("PutBatch succeeded")
			}
			if transport.KindOf(err) != test.kind {
				t.Errorf("kind = %v, want %v", transport.KindOf(err), test.kind)
			}
			expected, _ := transport.ExpectedTokenOf(err)
			if expected != test.expected {
				t.Errorf("expected token = %q, want %q", expected, test.expected)
			}
			if outcome := transport.Classify(err); outcome.Class != test.class {
				t.Errorf("class = %v, want %v", outcome.Class, test.class)
			}
		})
	}
}

func TestPutBatchRejectedEventsAreFatal(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{putOutputs: []*cloudwatchlogs.PutLogEventsOutput{{
		NextSequenceToken: aws.String("t9"),
		RejectedLogEventsInfo: &types.RejectedLogEventsInfo{
			TooOldLogEventEndIndex: aws.Int32(3),
		},
	}}}
	next, err := New(api).PutBatch(context.Background(), destination,
		[]logevent.Record{logevent.NewRecord(time.Now(), []byte("x"))}, "")
	if err == nil || !strings.Contains(err.Error(), "too old through index 3") {
		t.Fatalf("PutBatch error = %v", err)
	}
	if next != "t9" {
		t.Errorf("next = %q, want t9", next)
	}
	if expected, _ := transport.ExpectedTokenOf(err); expected != "t9" {
		t.Errorf("expected token = %q, want t9", expected)
	}
	if transport.Classify(err).Class != transport.Fatal {
		t.Errorf("rejected events should be fatal")
	}
}
