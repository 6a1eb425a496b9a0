// Package risk scores how likely a vote request is fraudulent. Independent
// collectors each report a severity; the scorer fans out to them, reduces the
// results to one aggregate and recommends allow, challenge or block.
package risk

import (
	"time"

	id "ballotguard/pkg/domain"
)

// CollectorName identifies a signal source. It doubles as the weight key.
type CollectorName string

const (
	CollectorBiometric  CollectorName = "biometric"
	CollectorBehavioral CollectorName = "behavioral"
	CollectorDevice     CollectorName = "device"
	CollectorNetwork    CollectorName = "network"
)

// Recommendation is the scorer's verdict.
type Recommendation string

const (
	RecommendAllow     Recommendation = "allow"
	RecommendChallenge Recommendation = "challenge"
	RecommendBlock     Recommendation = "block"
)

func (r Recommendation) String() string { return string(r) }

// Signal is one collector's finding. Severity is within [0, 1].
type Signal struct {
	IsAnomalous bool
	Severity    float64
	Reasons     []string
}

// DeviceEvidence is what the client reports about its device. UserAgent is
// taken from the request when the client leaves it empty.
type DeviceEvidence struct {
	Fingerprint      string
	UserAgent        string
	ScreenResolution string
	Timezone         string
	Language         string
	Platform         string
	Webdriver        bool
}

// BehaviorEvidence is keystroke and navigation timing gathered on the ballot page.
type BehaviorEvidence struct {
	KeystrokeIntervalsMs []float64
	PointerEvents        int
	FormFillMs           int64
	Pasted               bool
}

// BiometricEvidence carries the scores produced by the external liveness and
// deepfake models. LivenessScore 1 means certainly live; DeepfakeScore 1
// means certainly synthetic. MatchScore is optional.
type BiometricEvidence struct {
	LivenessScore float64
	DeepfakeScore float64
	MatchScore    *float64
}

// NetworkEvidence describes where the request came from. IP is taken from
// the request when empty.
type NetworkEvidence struct {
	IP      string
	Country string
	Proxy   bool
	VPN     bool
	Tor     bool
}

// Evidence bundles optional inputs. A nil section means the collector has
// nothing to say and contributes zero.
type Evidence struct {
	Device    *DeviceEvidence
	Behavior  *BehaviorEvidence
	Biometric *BiometricEvidence
	Network   *NetworkEvidence
}

// Weights maps each collector to its contribution to the aggregate.
type Weights map[CollectorName]float64

// Thresholds bound the recommendation bands.
type Thresholds struct {
	Block        float64
	Challenge    float64
	ForcedBlock  float64
	FailureLevel float64
}

// Assessment is the scorer's output. It is never persisted directly; non-allow
// assessments are written to the security ledger.
type Assessment struct {
	VoterID        id.VoterID
	Scores         map[CollectorName]float64
	Signals        map[CollectorName]Signal
	Failures       []CollectorName
	AggregateRisk  float64
	Recommendation Recommendation
	Forced         bool
	AssessedAt     time.Time
}
