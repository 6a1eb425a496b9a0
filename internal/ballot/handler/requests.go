package handler

import (
	"math"
	"strings"

	"ballotguard/internal/risk"
	id "ballotguard/pkg/domain"
	dErrors "ballotguard/pkg/domain-errors"
)

const (
	maxChoiceLabelLength = 256
	maxKeystrokeSamples  = 2000
	maxEvidenceString    = 512
)

// CastVoteRequest is the HTTP request body for POST /votes.
type CastVoteRequest struct {
	ChoiceID    string           `json:"choice_id"`
	ChoiceLabel string           `json:"choice_label"`
	Evidence    *EvidenceRequest `json:"evidence,omitempty"`

	parsedChoiceID id.ChoiceID
}

type EvidenceRequest struct {
	Device    *DeviceEvidence    `json:"device,omitempty"`
	Behavior  *BehaviorEvidence  `json:"behavior,omitempty"`
	Biometric *BiometricEvidence `json:"biometric,omitempty"`
	Network   *NetworkEvidence   `json:"network,omitempty"`
}

type DeviceEvidence struct {
	Fingerprint      string `json:"fingerprint"`
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
	Webdriver        bool   `json:"webdriver"`
}

type BehaviorEvidence struct {
	KeystrokeIntervalsMs []float64 `json:"keystroke_intervals_ms"`
	PointerEvents        int       `json:"pointer_events"`
	FormFillMs           int64     `json:"form_fill_ms"`
	Pasted               bool      `json:"pasted"`
}

type BiometricEvidence struct {
	LivenessScore float64  `json:"liveness_score"`
	DeepfakeScore float64  `json:"deepfake_score"`
	MatchScore    *float64 `json:"match_score,omitempty"`
}

type NetworkEvidence struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Proxy   bool   `json:"proxy"`
	VPN     bool   `json:"vpn"`
	Tor     bool   `json:"tor"`
}

// Validate implements httputil.Validatable.
func (r *CastVoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ChoiceLabel = strings.TrimSpace(r.ChoiceLabel)
	if len(r.ChoiceLabel) > maxChoiceLabelLength {
		return dErrors.New(dErrors.CodeValidation, "choice_label must be at most 256 characters")
	}
	if strings.TrimSpace(r.ChoiceID) == "" {
		return dErrors.New(dErrors.CodeValidation, "choice_id is required")
	}
	choiceID, err := id.ParseChoiceID(r.ChoiceID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "choice_id is invalid")
	}
	r.parsedChoiceID = choiceID

	if r.Evidence != nil {
		if err := r.Evidence.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e *EvidenceRequest) validate() error {
	if d := e.Device; d != nil {
		for _, s := range []string{d.Fingerprint, d.UserAgent, d.ScreenResolution, d.Timezone, d.Language, d.Platform} {
			if len(s) > maxEvidenceString {
				return dErrors.New(dErrors.CodeValidation, "device evidence field too long")
			}
		}
	}
	if b := e.Behavior; b != nil {
		if len(b.KeystrokeIntervalsMs) > maxKeystrokeSamples {
			return dErrors.New(dErrors.CodeValidation, "too many keystroke samples")
		}
		for _, v := range b.KeystrokeIntervalsMs {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return dErrors.New(dErrors.CodeValidation, "keystroke intervals must be non-negative")
			}
		}
		if b.PointerEvents < 0 || b.FormFillMs < 0 {
			return dErrors.New(dErrors.CodeValidation, "behavior counters must be non-negative")
		}
	}
	if bio := e.Biometric; bio != nil {
		if !unit(bio.LivenessScore) || !unit(bio.DeepfakeScore) || (bio.MatchScore != nil && !unit(*bio.MatchScore)) {
			return dErrors.New(dErrors.CodeValidation, "biometric scores must be within [0, 1]")
		}
	}
	if n := e.Network; n != nil {
		if len(n.IP) > maxEvidenceString || len(n.Country) > maxEvidenceString {
			return dErrors.New(dErrors.CodeValidation, "network evidence field too long")
		}
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// ParsedChoiceID returns the validated choice.
func (r *CastVoteRequest) ParsedChoiceID() id.ChoiceID {
	return r.parsedChoiceID
}

// RiskEvidence converts the client evidence into collector inputs.
func (r *CastVoteRequest) RiskEvidence() risk.Evidence {
	var ev risk.Evidence
	if r.Evidence == nil {
		return ev
	}
	if d := r.Evidence.Device; d != nil {
		ev.Device = &risk.DeviceEvidence{
			Fingerprint:      d.Fingerprint,
			UserAgent:        d.UserAgent,
			ScreenResolution: d.ScreenResolution,
			Timezone:         d.Timezone,
			Language:         d.Language,
			Platform:         d.Platform,
			Webdriver:        d.Webdriver,
		}
	}
	if b := r.Evidence.Behavior; b != nil {
		ev.Behavior = &risk.BehaviorEvidence{
			KeystrokeIntervalsMs: b.KeystrokeIntervalsMs,
			PointerEvents:        b.PointerEvents,
			FormFillMs:           b.FormFillMs,
			Pasted:               b.Pasted,
		}
	}
	if bio := r.Evidence.Biometric; bio != nil {
		ev.Biometric = &risk.BiometricEvidence{
			LivenessScore: bio.LivenessScore,
			DeepfakeScore: bio.DeepfakeScore,
			MatchScore:    bio.MatchScore,
		}
	}
	if n := r.Evidence.Network; n != nil {
		ev.Network = &risk.NetworkEvidence{
			IP:      n.IP,
			Country: n.Country,
			Proxy:   n.Proxy,
			VPN:     n.VPN,
			Tor:     n.Tor,
		}
	}
	return ev
}

// VerifyReceiptRequest is the HTTP request body for POST /votes/verify.
type VerifyReceiptRequest struct {
	VoteID   string `json:"vote_id"`
	ChoiceID string `json:"choice_id"`
	Nonce    string `json:"nonce"`

	parsedVoteID   id.VoteID
	parsedChoiceID id.ChoiceID
}

func (r *VerifyReceiptRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	voteID, err := id.ParseVoteID(strings.TrimSpace(r.VoteID))
	if err != nil {
		return err
	}
	choiceID, err := id.ParseChoiceID(r.ChoiceID)
	if err != nil {
		return err
	}
	r.Nonce = strings.TrimSpace(r.Nonce)
	if r.Nonce == "" {
		return dErrors.New(dErrors.CodeValidation, "nonce is required")
	}
	r.parsedVoteID = voteID
	r.parsedChoiceID = choiceID
	return nil
}
