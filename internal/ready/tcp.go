package ready

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// TCP checks readiness by dialing a TCP connection.
//
// A port forwarder such as docker-proxy accepts connections even when
// nothing listens behind it, then hangs up. Hold > 0 waits that long for
// such a hang-up before declaring the port ready.
type TCP struct {
	Hold time.Duration
}

func (t TCP) Check(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: 200 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if t.Hold <= 0 {
		return nil
	}

	conn.SetReadDeadline(time.Now().Add(t.Hold))
	var buf [1]byte
	_, err = conn.Read(buf[:])
	var ne net.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ne) && ne.Timeout():
		return nil
	default:
		return fmt.Errorf("connection to %s closed by peer: %w", addr, err)
	}
}
