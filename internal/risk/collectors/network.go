package collectors

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"ballotguard/internal/risk"
	"ballotguard/internal/risk/history"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/requestcontext"
)

// NetworkAnalyzer compares the request's origin with recent history: how many
// addresses and countries this voter used, and how many voters used this address.
type NetworkAnalyzer struct {
	history history.Store
	window  time.Duration
}

func NewNetworkAnalyzer(store history.Store, window time.Duration) *NetworkAnalyzer {
	return &NetworkAnalyzer{history: store, window: window}
}

func (a *NetworkAnalyzer) Name() risk.CollectorName { return risk.CollectorNetwork }

func (a *NetworkAnalyzer) Collect(ctx context.Context, voterID id.VoterID, evidence risk.Evidence) (risk.Signal, error) {
	ev := evidence.Network
	if ev == nil {
		return risk.Signal{}, nil
	}

	raw := ev.IP
	if raw == "" {
		raw = requestcontext.ClientIP(ctx)
	}

	var f finding
	if ev.Tor {
		f.add("tor_exit", 0.6)
	}
	if ev.Proxy || ev.VPN {
		f.add("anonymizing_proxy", 0.3)
	}

	if raw == "" {
		return f.signal(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		f.add("unparseable_ip", 0.2)
		return f.signal(), nil
	}
	ip := addr.Unmap().String()
	voter := voterID.String()

	ips, err := a.history.AddMember(ctx, history.Key("net", "voter", voter, "ips"), ip, a.window)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("network history: %w", err)
	}
	switch {
	case ips > 6:
		f.add("many_addresses", 0.6)
	case ips > 3:
		f.add("many_addresses", 0.3)
	}

	voters, err := a.history.AddMember(ctx, history.Key("net", "ip", ip, "voters"), voter, a.window)
	if err != nil {
		return risk.Signal{}, fmt.Errorf("network history: %w", err)
	}
	switch {
	case voters > 20:
		f.add("shared_address", 0.8)
	case voters > 5:
		f.add("shared_address", 0.4)
	}

	if country := strings.ToUpper(strings.TrimSpace(ev.Country)); country != "" {
		countries, err := a.history.AddMember(ctx, history.Key("net", "voter", voter, "countries"), country, a.window)
		if err != nil {
			return risk.Signal{}, fmt.Errorf("network history: %w", err)
		}
		if countries > 1 {
			f.add("country_changed", 0.5)
		}
	}

	return f.signal(), nil
}
