// Package emv derives card facts (scheme, product type, issuer country,
// currency) from a parsed TLV set. Analysis is a pure function over the
// request's tree; it performs no I/O and stores no PAN beyond the masked
// form and BIN prefix.
package emv

import (
	"strings"

	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

// CardType is the product class derived from Application Usage Control.
type CardType string

const (
	TypeCredit   CardType = "Credit"
	TypeDebit    CardType = "Debit"
	TypePrepaid  CardType = "Prepaid"
	TypeBusiness CardType = "Business"
	TypeUnknown  CardType = "Unknown"
)

// CardInfo holds the analyzer output for one request.
type CardInfo struct {
	Brand Brand
	Type  CardType

	// PANMasked carries the last four digits only; the full PAN never
	// outlives the request that carried it.
	PANMasked string

	// BIN6 is the first six PAN digits, empty when no PAN was present.
	BIN6 string

	// AID is the application identifier, when present.
	AID []byte

	// IssuerCountry and Currency are 4-hex-digit uppercase numeric codes,
	// zero-padded regardless of raw byte length. Empty when absent.
	IssuerCountry string
	Currency      string

	// CountryLabel and CurrencyLabel are derived names used only for
	// logging and the response summary.
	CountryLabel  string
	CurrencyLabel string
}

// AUC first-byte tables, per product class. First match in declaration
// order wins; debit is tested before credit since several issuers set both
// domestic-cash and goods bits.
var (
	aucDebit    = map[byte]bool{0x08: true, 0x18: true, 0x28: true, 0x48: true}
	aucCredit   = map[byte]bool{0x00: true, 0x01: true, 0x02: true, 0x04: true, 0x40: true}
	aucPrepaid  = map[byte]bool{0x20: true, 0x21: true, 0x22: true, 0x24: true}
	aucBusiness = map[byte]bool{0x80: true, 0x81: true, 0x82: true, 0x84: true}
)

// corporateMarkers promote an Unknown product type to Business when the
// cardholder name carries one of them.
var corporateMarkers = []string{"CORP", "BUSINESS", "COMPANY", "LLC", " INC", " LTD", "GMBH", "S.A."}

// Analyze derives CardInfo from a TLV set. Elements are located with a
// depth-first search so data nested in read-record templates is found.
func Analyze(set tlv.Set) CardInfo {
	info := CardInfo{
		Brand: BrandUnknown,
		Type:  TypeUnknown,
	}

	pan := panDigits(set)
	if pan != "" {
		if len(pan) >= 6 {
			info.BIN6 = pan[:6]
		}
		if len(pan) >= 4 {
			info.PANMasked = "**** " + pan[len(pan)-4:]
		}
		info.Brand = brandFromPAN(pan)
	}

	if n := findAID(set); n != nil {
		info.AID = append([]byte(nil), n.Value...)
	}
	if pan == "" {
		info.Brand = brandFromAID(info.AID)
	}

	info.Type = cardType(set)

	if code := numericCode(set, tlv.TagIssuerCountry, tlv.TagTerminalCountry); code != "" {
		info.IssuerCountry = code
		info.CountryLabel = CountryLabel(code)
	}
	if code := numericCode(set, tlv.TagCurrency, tlv.TagCurrencyAlt); code != "" {
		info.Currency = code
		info.CurrencyLabel = CurrencyLabel(code)
	}

	return info
}

// panDigits extracts the numeric PAN prefix from tag 5A. The value is BCD;
// a trailing F nibble pads odd-length PANs and is stripped.
func panDigits(set tlv.Set) string {
	n := set.FindDeep(tlv.TagPAN)
	if n == nil || len(n.Value) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, b := range n.Value {
		hi, lo := b>>4, b&0x0F
		if hi > 9 {
			return sb.String()
		}
		sb.WriteByte('0' + hi)
		if lo > 9 {
			return sb.String()
		}
		sb.WriteByte('0' + lo)
	}
	return sb.String()
}

// findAID prefers tag 4F, falling back to the DF name in 84.
func findAID(set tlv.Set) *tlv.Node {
	if n := set.FindDeep(tlv.TagAID); n != nil {
		return n
	}
	return set.FindDeep(tlv.TagDFName)
}

func cardType(set tlv.Set) CardType {
	if n := set.FindDeep(tlv.TagAUC); n != nil && len(n.Value) > 0 {
		b := n.Value[0]
		switch {
		case aucDebit[b]:
			return TypeDebit
		case aucCredit[b]:
			return TypeCredit
		case aucPrepaid[b]:
			return TypePrepaid
		case aucBusiness[b]:
			return TypeBusiness
		}
	}
	// Name heuristic may only promote Unknown to Business.
	if n := set.FindDeep(tlv.TagCardholderName); n != nil {
		name := strings.ToUpper(string(n.Value))
		for _, marker := range corporateMarkers {
			if strings.Contains(name, marker) {
				return TypeBusiness
			}
		}
	}
	return TypeUnknown
}

// numericCode reads a numeric BCD code from the primary tag with a fallback,
// normalized to four uppercase hex digits by left zero-padding.
func numericCode(set tlv.Set, primary, fallback []byte) string {
	n := set.FindDeep(primary)
	if n == nil || len(n.Value) == 0 {
		n = set.FindDeep(fallback)
	}
	if n == nil || len(n.Value) == 0 {
		return ""
	}
	h := strings.ToUpper(hexString(n.Value))
	if len(h) >= 4 {
		return h[len(h)-4:]
	}
	return strings.Repeat("0", 4-len(h)) + h
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0F])
	}
	return string(out)
}
