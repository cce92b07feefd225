package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GovernanceMode is the governance posture the engine applies to a sector/period.
type GovernanceMode string

const (
	ModeNormal GovernanceMode = "NORMAL"
	ModeStrict GovernanceMode = "STRICT"
)

// wireStrict is how the engine spells STRICT on the wire.
const wireStrict = "ESTRITO"

// ParseGovernanceMode accepts both the canonical and the wire spelling.
func ParseGovernanceMode(s string) (GovernanceMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NORMAL":
		return ModeNormal, nil
	case "STRICT", wireStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown governance mode %q", s)
	}
}

// Wire returns the engine spelling of the mode.
func (m GovernanceMode) Wire() string {
	if m == ModeStrict {
		return wireStrict
	}
	return string(ModeNormal)
}

func (m GovernanceMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Wire())
}

// UnmarshalJSON falls back to NORMAL for unknown values, matching the engine's
// own resolution of an unrecognised runtime mode.
func (m *GovernanceMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseGovernanceMode(s)
	if err != nil {
		parsed = ModeNormal
	}
	*m = parsed
	return nil
}

// Issue is a single preflight finding.
type Issue struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RecommendedAction string `json:"recommended_action"`
}

// PreflightVerdict is the engine's answer to a preflight check.
type PreflightVerdict struct {
	Mode             GovernanceMode `json:"mode"`
	Blockers         []Issue        `json:"blockers"`
	CriticalWarnings []Issue        `json:"critical_warnings"`
	CanProceed       bool           `json:"can_proceed"`
	AckRequired      bool           `json:"ack_required"`
}

var ErrInvalidVerdict = errors.New("invalid preflight verdict")

// Validate reports violations of the verdict invariants. Callers classify
// invalid verdicts conservatively instead of repairing them.
func (v PreflightVerdict) Validate() error {
	if len(v.Blockers) > 0 && v.CanProceed {
		return fmt.Errorf("%w: %d blockers but can_proceed=true", ErrInvalidVerdict, len(v.Blockers))
	}
	if v.AckRequired && !v.CanProceed {
		return fmt.Errorf("%w: ack_required without can_proceed", ErrInvalidVerdict)
	}
	return nil
}

// Blocked is true when the verdict forbids proceeding.
func (v PreflightVerdict) Blocked() bool {
	return len(v.Blockers) > 0 || !v.CanProceed
}

// FirstBlockerMessage returns the message of the first blocker, or "".
func (v PreflightVerdict) FirstBlockerMessage() string {
	if len(v.Blockers) == 0 {
		return ""
	}
	return v.Blockers[0].Message
}

// WarningCodes lists the codes of the critical warnings in order.
func (v PreflightVerdict) WarningCodes() []string {
	codes := make([]string, 0, len(v.CriticalWarnings))
	for _, w := range v.CriticalWarnings {
		codes = append(codes, w.Code)
	}
	return codes
}

// Clone returns a deep copy so held verdicts are never aliased.
func (v PreflightVerdict) Clone() PreflightVerdict {
	out := v
	out.Blockers = append([]Issue(nil), v.Blockers...)
	out.CriticalWarnings = append([]Issue(nil), v.CriticalWarnings...)
	return out
}
