package netmon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTPChecker is the production Checker: link state comes from the host's
// interfaces, reachability from a captive-portal-style probe URL. A link
// without a successful probe is reported as connected-but-unreachable.
type HTTPChecker struct {
	probeURL string
	client   *http.Client
}

// NewHTTPChecker creates a checker probing probeURL with the given timeout.
func NewHTTPChecker(probeURL string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		probeURL: probeURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// Check returns the current connectivity state. An error is returned only
// when the host's interfaces cannot be enumerated; probe failures are a
// normal unreachable result, not an error.
func (c *HTTPChecker) Check(ctx context.Context) (State, error) {
	linkType, connected, err := linkState()
	if err != nil {
		return State{}, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	state := State{Connected: connected, Type: linkType, CheckedAt: time.Now()}
	if !connected {
		state.Type = "none"
		return state, nil
	}

	state.Reachable = c.probe(ctx)
	return state, nil
}

// probe issues a GET against the probe URL; any 2xx or 3xx counts as
// internet-reachable.
func (c *HTTPChecker) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// linkState reports whether any non-loopback interface is up with an
// address, and a best-effort type name for it.
func linkState() (string, bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", false, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return ifaceType(iface.Name), true, nil
	}
	return "none", false, nil
}

func ifaceType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "wl"), strings.HasPrefix(lower, "wifi"):
		return "wifi"
	case strings.HasPrefix(lower, "en"), strings.HasPrefix(lower, "eth"):
		return "ethernet"
	case strings.HasPrefix(lower, "ww"), strings.HasPrefix(lower, "rmnet"):
		return "cellular"
	default:
		return "unknown"
	}
}
