package proxy

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var relayBuffers = newBufferPool(32 * 1024)

type closeWriter interface {
	CloseWrite() error
}

// CopyBidirectional relays data between client and dest until both
// directions are done, and returns the number of bytes copied from client
// to dest (sent) and from dest to client (received).
//
// When one direction reaches EOF the write side of its destination is shut
// down so the far end sees EOF too. When either direction fails, or ctx is
// canceled, both connections are unblocked and the relay ends. dest is
// closed on return; client is left to the caller.
func CopyBidirectional(ctx context.Context, client, dest net.Conn) (sent, received int64, err error) {
	defer dest.Close()

	g, gctx := errgroup.WithContext(ctx)

	var abortOnce sync.Once
	abort := func() {
		abortOnce.Do(func() {
			now := time.Now()
			_ = client.SetDeadline(now)
			_ = dest.SetDeadline(now)
		})
	}

	g.Go(func() error {
		var err error
		sent, err = copyHalf(dest, client)
		return err
	})

	g.Go(func() error {
		var err error
		received, err = copyHalf(client, dest)
		return err
	})

	// Unblock both copies if one fails or ctx is canceled.
	done := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			abort()
		case <-done:
		}
	}()

	err = g.Wait()
	close(done)

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return sent, received, err
}

func copyHalf(dst, src net.Conn) (int64, error) {
	buf := relayBuffers.Get()
	defer relayBuffers.Put(buf)

	n, err := io.CopyBuffer(dst, src, *buf)
	if err != nil {
		return n, err
	}

	if cw, ok := dst.(closeWriter); ok {
		_ = cw.CloseWrite()
	} else {
		_ = dst.Close()
	}
	return n, nil
}
