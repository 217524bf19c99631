package emv

import "strings"

// Brand is the card scheme derived from the PAN BIN or, failing that, the
// application identifier.
type Brand string

const (
	BrandVisa       Brand = "Visa"
	BrandMastercard Brand = "Mastercard"
	BrandAmex       Brand = "Amex"
	BrandDiscover   Brand = "Discover"
	BrandJCB        Brand = "JCB"
	BrandUnionPay   Brand = "UnionPay"
	BrandDinersClub Brand = "DinersClub"
	BrandMaestro    Brand = "Maestro"
	BrandUnknown    Brand = "Unknown"
)

// binRule matches a PAN prefix, either literally or as an inclusive numeric
// range over the first len(lo) digits.
type binRule struct {
	lo string // prefix, or range start when hi is set
	hi string // range end, same width as lo
}

func (r binRule) matches(pan string) bool {
	width := len(r.lo)
	if len(pan) < width {
		return false
	}
	p := pan[:width]
	if r.hi == "" {
		return p == r.lo
	}
	// Digit strings of equal width compare correctly as strings.
	return p >= r.lo && p <= r.hi
}

// binTable is evaluated in declaration order; the first matching rule wins.
// The order is significant: Discover's 65 must be tested before Maestro and
// Mastercard ranges, Diners 36/38/39 before Mastercard, Mastercard 51-55
// before Visa's bare 4 never conflicts but UnionPay 62 must come last since
// Discover claims 622126-622925.
var binTable = []struct {
	brand Brand
	rules []binRule
}{
	{BrandAmex, []binRule{{lo: "34"}, {lo: "37"}}},
	{BrandDiscover, []binRule{
		{lo: "6011"},
		{lo: "644", hi: "649"},
		{lo: "65"},
		{lo: "622126", hi: "622925"},
	}},
	{BrandJCB, []binRule{{lo: "3528", hi: "3589"}}},
	{BrandMaestro, []binRule{{lo: "5018"}, {lo: "5020"}, {lo: "5038"}, {lo: "6304"}}},
	{BrandDinersClub, []binRule{
		{lo: "300", hi: "305"},
		{lo: "3095"},
		{lo: "36"},
		{lo: "38"},
		{lo: "39"},
	}},
	{BrandMastercard, []binRule{
		{lo: "51", hi: "55"},
		{lo: "2221", hi: "2720"},
	}},
	{BrandVisa, []binRule{{lo: "4"}}},
	{BrandUnionPay, []binRule{{lo: "62"}}},
}

// brandFromPAN resolves the scheme from the PAN digit string.
func brandFromPAN(pan string) Brand {
	if pan == "" {
		return BrandUnknown
	}
	for _, entry := range binTable {
		for _, r := range entry.rules {
			if r.matches(pan) {
				return entry.brand
			}
		}
	}
	return BrandUnknown
}

// aidTable maps AID hex prefixes to schemes. Checked only when no PAN is
// present. Longer prefixes are listed before shorter ones that would shadow
// them (Maestro before the generic Mastercard RID).
var aidTable = []struct {
	prefix string
	brand  Brand
}{
	{"A0000000043060", BrandMaestro},
	{"A000000003", BrandVisa},
	{"A000000004", BrandMastercard},
	{"A000000025", BrandAmex},
	{"A000000065", BrandJCB},
	{"A000000152", BrandDiscover},
	{"A000000333", BrandUnionPay},
}

// brandFromAID resolves the scheme from application identifier bytes.
func brandFromAID(aid []byte) Brand {
	if len(aid) == 0 {
		return BrandUnknown
	}
	h := strings.ToUpper(hexString(aid))
	for _, entry := range aidTable {
		if strings.HasPrefix(h, entry.prefix) {
			return entry.brand
		}
	}
	return BrandUnknown
}
