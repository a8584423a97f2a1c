// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cloudwatch

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/bureau-foundation/cwship/lib/transport"
)

// throttlingCodes are API error codes that mean "slow down and try
// again".
var throttlingCodes = map[string]bool{
	"ThrottlingException":         true,
	"Throttling":                  true,
	"TooManyRequestsException":    true,
	"RequestLimitExceeded":        true,
	"ServiceUnavailableException": true,
	"ServiceUnavailable":          true,
	"InternalFailure":             true,
}

// translate classifies an SDK error. Modeled exceptions are matched by
// type; anything else that carries an API error code is matched by
// code. A request that never reached the service is throttling.
func translate(err error) *transport.Error {
	var (
		alreadyExists   *types.ResourceAlreadyExistsException
		notFound        *types.ResourceNotFoundException
		invalidToken    *types.InvalidSequenceTokenException
		alreadyAccepted *types.DataAlreadyAcceptedException
		unavailable     *types.ServiceUnavailableException
		sendError       *smithyhttp.RequestSendError
		apiError        smithy.APIError
	)
	switch {
	case errors.As(err, &alreadyExists):
		return &transport.Error{Kind: transport.KindAlreadyExists, Err: err}
	case errors.As(err, &notFound):
		return &transport.Error{Kind: transport.KindNotFound, Err: err}
	case errors.As(err, &invalidToken):
		return &transport.Error{
			Kind:          transport.KindInvalidToken,
			ExpectedToken: aws.ToString(invalidToken.ExpectedSequenceToken),
			Err:           err,
		}
	case errors.As(err, &alreadyAccepted):
		return &transport.Error{
			Kind:          transport.KindAlreadyAccepted,
			ExpectedToken: aws.ToString(alreadyAccepted.ExpectedSequenceToken),
			Err:           err,
		}
	case errors.As(err, &unavailable):
		return &transport.Error{Kind: transport.KindThrottled, Err: err}
	case errors.As(err, &apiError) && throttlingCodes[apiError.ErrorCode()]:
		return &transport.Error{Kind: transport.KindThrottled, Err: err}
	case errors.As(err, &sendError):
		return &transport.Error{Kind: transport.KindThrottled, Err: err}
	default:
		return &transport.Error{Kind: transport.KindOther, Err: err}
	}
}
