// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cloudwatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// TestLocalStack runs the transport against a LocalStack container.
// It skips when no container runtime is reachable.
func TestLocalStack(t *testing.T) {
	if testing.Short() {
		t.Skip("container test skipped in short mode")
	}
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker/container runtime unavailable: %v", r)
		}
	}()

	request := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.8",
		ExposedPorts: []string{"4566/tcp"},
		Env:          map[string]string{"SERVICES": "logs"},
		WaitingFor:   wait.ForHTTP("/_localstack/health").WithPort("4566/tcp").WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: request, Started: true})
	if err != nil {
		t.Skipf("docker/container runtime unavailable: %v", err)
	}
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatal(err)
	}

	shipper, err := Load(ctx, Config{
		Region:          "us-east-1",
		Endpoint:        fmt.Sprintf("http://%s:%s", host, port.Port()),
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	target := transport.Destination{Group: "/cwship/it", Stream: "stream-1"}

	created, err := shipper.EnsureDestination(ctx, target)
	if err != nil || !created {
		t.Fatalf("first EnsureDestination = %v, %v", created, err)
	}
	created, err = shipper.EnsureDestination(ctx, target)
	if err != nil || created {
		t.Fatalf("second EnsureDestination = %v, %v", created, err)
	}

	token, err := shipper.CurrentToken(ctx, target)
	if err != nil {
		t.Fatalf("CurrentToken: %v", err)
	}
	now := time.Now()
	records := []logevent.Record{
		logevent.NewRecord(now, []byte("alpha")),
		logevent.NewRecord(now.Add(time.Millisecond), []byte("beta")),
	}
	if _, err := shipper.PutBatch(ctx, target, records, token); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}

	client := shipper.api.(*cloudwatchlogs.Client)
	output, err := client.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(target.Group),
		LogStreamName: aws.String(target.Stream),
		StartFromHead: aws.Bool(true),
	})
	if err != nil {
		t.Fatalf("GetLogEvents: %v", err)
	}
	if len(output.Events) != 2 || aws.ToString(output.Events[1].Message) != "beta" {
		t.Errorf("stored events = %+v", output.Events)
	}

	missing := transport.Destination{Group: "/cwship/absent", Stream: "none"}
	if _, err := shipper.PutBatch(ctx, missing, records, ""); transport.KindOf(err) != transport.KindNotFound {
		t.Errorf("put to missing group = %v, want not found", err)
	}
}
