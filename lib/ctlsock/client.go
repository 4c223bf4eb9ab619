// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

package ctlsock

import (
	"context"
	"fmt"
	"net"

	"github.com/haiyewei/tgForwardbot/lib/codec"
)

// Call connects to the control socket, sends one request, and decodes
// the response. The request must marshal to a CBOR map containing an
// "action" field. The response Data field (if any) is decoded into
// result when result is non-nil.
//
// Returns an error for connection failures, protocol failures, and
// failure responses (ok: false).
func Call(ctx context.Context, socketPath string, request any, result any) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("request failed: %s", response.Error)
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}
