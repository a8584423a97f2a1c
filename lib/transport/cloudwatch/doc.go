// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cloudwatch implements [transport.Transport] against AWS
// CloudWatch Logs using aws-sdk-go-v2.
//
// Service errors are translated into [transport.Kind] values:
// ResourceAlreadyExistsException is absorbed by EnsureDestination,
// ResourceNotFoundException becomes KindNotFound,
// InvalidSequenceTokenException and DataAlreadyAcceptedException carry
// the service's expected token, and throttling or unavailability codes
// become KindThrottled. A PutLogEvents response that reports rejected
// events is a failure even though the call itself succeeded.
//
// The SDK's own retryer is disabled; the delivery worker owns retries
// so that backoff and token recovery happen in one place.
package cloudwatch
