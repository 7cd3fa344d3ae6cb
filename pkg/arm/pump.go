// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package arm

import (
	"context"
	"errors"
	"io"
)

// ByteHandler receives bytes one at a time
type ByteHandler interface {
	HandleByte(b byte)
}

// Pump reads r and delivers every byte to h in order from the calling
// goroutine, which gives h the one-at-a-time delivery it relies on.
// It returns nil when r reaches io.EOF and ctx.Err() once ctx is done.
//
// Cancellation is checked between reads. A reader blocked in Read is not
// interrupted; close it to unblock Pump.
func Pump(ctx context.Context, r io.Reader, h ByteHandler) error {
	buf := make([]byte, 128)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			h.HandleByte(buf[i])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}
