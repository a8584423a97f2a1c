// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/cwship/lib/codec"
	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseTimeout applies when the caller's context has no deadline.
const responseTimeout = readTimeout + DefaultBackendTimeout + writeTimeout

// Client is a Transport that forwards calls to a relay Server. Each
// call opens its own connection.
type Client struct {
	network     string
	address     string
	compression Compression
}

var _ transport.Transport = (*Client)(nil)

// NewClient returns a client for the relay at address. compression
// applies to put requests.
func NewClient(network, address string, compression Compression) (*Client, error) {
	if network != "unix" && network != "tcp" {
		return nil, fmt.Errorf("relay: network must be unix or tcp, got %q", network)
	}
	if address == "" {
		return nil, errors.New("relay: address is required")
	}
	return &Client{network: network, address: address, compression: compression}, nil
}

// EnsureDestination implements transport.Transport.
func (c *Client) EnsureDestination(ctx context.Context, destination transport.Destination) (bool, error) {
	reply, err := c.call(ctx, &request{
		Action: actionEnsure,
		Group:  destination.Group,
		Stream: destination.Stream,
	})
	if err != nil {
		return false, err
	}
	return reply.Created, nil
}

// CurrentToken implements transport.Transport.
func (c *Client) CurrentToken(ctx context.Context, destination transport.Destination) (string, error) {
	reply, err := c.call(ctx, &request{
		Action: actionToken,
		Group:  destination.Group,
		Stream: destination.Stream,
	})
	if err != nil {
		return "", err
	}
	return reply.Token, nil
}

// PutBatch implements transport.Transport.
func (c *Client) PutBatch(ctx context.Context, destination transport.Destination, records []logevent.Record, token string) (string, error) {
	outgoing, err := encodeEvents(records, c.compression)
	if err != nil {
		return "", transport.Errorf(transport.KindOther, "%v", err)
	}
	outgoing.Action = actionPut
	outgoing.Group = destination.Group
	outgoing.Stream = destination.Stream
	outgoing.Token = token

	reply, err := c.call(ctx, outgoing)
	if err != nil {
		return "", err
	}
	return reply.Token, nil
}

// call sends one request and reads its response. Connection problems
// are reported as throttling: the relay may be restarting, and the
// worker's backoff is the right response.
func (c *Client) call(ctx context.Context, outgoing *request) (*response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return nil, &transport.Error{Kind: transport.KindThrottled, Err: fmt.Errorf("connecting to relay %s: %w", c.address, err)}
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(responseTimeout)
	}
	conn.SetDeadline(deadline)

	if err := codec.NewEncoder(conn).Encode(outgoing); err != nil {
		return nil, &transport.Error{Kind: transport.KindThrottled, Err: fmt.Errorf("writing %s request: %w", outgoing.Action, err)}
	}
	if halfCloser, ok := conn.(interface{ CloseWrite() error }); ok {
		halfCloser.CloseWrite()
	}

	var reply response
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&reply); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("reading %s response: %w", outgoing.Action, ctx.Err())
		}
		return nil, &transport.Error{Kind: transport.KindThrottled, Err: fmt.Errorf("reading %s response: %w", outgoing.Action, err)}
	}

	if !reply.OK {
		return nil, &transport.Error{
			Kind:          transport.ParseKind(reply.Kind),
			ExpectedToken: reply.ExpectedToken,
			Err:           fmt.Errorf("relay %s: %s", outgoing.Action, reply.Error),
		}
	}
	return &reply, nil
}
