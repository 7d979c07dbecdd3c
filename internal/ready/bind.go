package ready

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// ErrLoopbackOnly means the server answers on loopback but not on any
// external interface: it is alive yet unreachable by the platform router.
var ErrLoopbackOnly = errors.New("server is bound to loopback only")

// ErrNotListening means nothing accepts connections on the port.
var ErrNotListening = errors.New("server is not listening")

// BindStatus classifies where a server accepts connections.
type BindStatus string

const (
	BindNone         BindStatus = "none"
	BindLoopbackOnly BindStatus = "loopback-only"
	BindExternal     BindStatus = "external"
)

// Err maps the status to nil, ErrLoopbackOnly or ErrNotListening.
func (s BindStatus) Err() error {
	switch s {
	case BindExternal:
		return nil
	case BindLoopbackOnly:
		return ErrLoopbackOnly
	}
	return ErrNotListening
}

// ProbeBind dials port on loopback and on each external host. When the
// namespace has no external interface a loopback answer is accepted.
func ProbeBind(ctx context.Context, port int, externalHosts []string) BindStatus {
	var probe TCP
	p := strconv.Itoa(port)

	for _, host := range externalHosts {
		if probe.Check(ctx, net.JoinHostPort(host, p)) == nil {
			return BindExternal
		}
	}
	if probe.Check(ctx, net.JoinHostPort("127.0.0.1", p)) == nil {
		if len(externalHosts) == 0 {
			return BindExternal
		}
		return BindLoopbackOnly
	}
	return BindNone
}

// ExternalHosts lists the non-loopback unicast addresses of this network namespace.
func ExternalHosts() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || !ipNet.IP.IsGlobalUnicast() {
			continue
		}
		hosts = append(hosts, ipNet.IP.String())
	}
	return hosts, nil
}
