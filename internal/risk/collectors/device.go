package collectors

import (
	"context"
	"fmt"
	"time"

	"ballotguard/internal/risk"
	"ballotguard/internal/risk/device"
	"ballotguard/internal/risk/history"
	id "ballotguard/pkg/domain"
	"ballotguard/pkg/requestcontext"
)

// Fingerprinter derives a server-side device fingerprint from a User-Agent.
type Fingerprinter interface {
	ComputeFingerprint(userAgent string) string
}

// DeviceAnalyzer flags automation, incomplete device reports and devices
// shared by several voters.
type DeviceAnalyzer struct {
	fingerprints Fingerprinter
	history      history.Store
	window       time.Duration
}

func NewDeviceAnalyzer(fp Fingerprinter, store history.Store, window time.Duration) *DeviceAnalyzer {
	return &DeviceAnalyzer{fingerprints: fp, history: store, window: window}
}

func (a *DeviceAnalyzer) Name() risk.CollectorName { return risk.CollectorDevice }

func (a *DeviceAnalyzer) Collect(ctx context.Context, voterID id.VoterID, evidence risk.Evidence) (risk.Signal, error) {
	ev := evidence.Device
	if ev == nil {
		return risk.Signal{}, nil
	}

	userAgent := ev.UserAgent
	if userAgent == "" {
		userAgent = requestcontext.UserAgent(ctx)
	}

	var f finding
	if ev.Webdriver {
		f.add("webdriver_present", 0.8)
	}
	if device.IsBot(userAgent) {
		f.add("automation_user_agent", 0.9)
	}

	missing := 0
	for _, attr := range []string{ev.ScreenResolution, ev.Timezone, ev.Language, ev.Platform} {
		if attr == "" {
			missing++
		}
	}
	f.add("incomplete_device_report", 0.1*float64(missing))

	key := ev.Fingerprint
	if key == "" {
		key = requestcontext.DeviceFingerprint(ctx)
	}
	if key == "" {
		key = a.fingerprints.ComputeFingerprint(userAgent)
	}
	if key != "" {
		voters, err := a.history.AddMember(ctx, history.Key("device", key, "voters"), voterID.String(), a.window)
		if err != nil {
			return risk.Signal{}, fmt.Errorf("device history: %w", err)
		}
		f.add("shared_device", sharedDeviceSeverity(voters))
	}

	return f.signal(), nil
}

func sharedDeviceSeverity(voters int64) float64 {
	switch {
	case voters >= 5:
		return 0.9
	case voters >= 3:
		return 0.5
	case voters == 2:
		return 0.3
	default:
		return 0
	}
}
