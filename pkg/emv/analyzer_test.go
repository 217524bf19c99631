package emv

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostfacexx/nfcmitm/pkg/tlv"
)

func parseHex(t *testing.T, s string) tlv.Set {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	set, err := tlv.Parse(b)
	require.NoError(t, err)
	return set
}

func TestAnalyze_VisaCredit(t *testing.T) {
	// 5A=4111111111111111, 9F07=00, 5F28=0840, 5F2A=0840
	set := parseHex(t, "5A0841111111111111119F0701005F280208405F2A020840")
	info := Analyze(set)

	assert.Equal(t, BrandVisa, info.Brand)
	assert.Equal(t, TypeCredit, info.Type)
	assert.Equal(t, "411111", info.BIN6)
	assert.Equal(t, "**** 1111", info.PANMasked)
	assert.Equal(t, "0840", info.IssuerCountry)
	assert.Equal(t, "United States", info.CountryLabel)
	assert.Equal(t, "USD", info.CurrencyLabel)
}

func TestAnalyze_MastercardDebit(t *testing.T) {
	set := parseHex(t, "5A0855555555555544449F070108")
	info := Analyze(set)

	assert.Equal(t, BrandMastercard, info.Brand)
	assert.Equal(t, TypeDebit, info.Type)
	assert.Equal(t, "**** 4444", info.PANMasked)
}

func TestAnalyze_OddLengthPANPadded(t *testing.T) {
	// 19-digit PAN padded with a trailing F nibble.
	set := parseHex(t, "5A0A6212345678901234567F")
	info := Analyze(set)

	assert.Equal(t, BrandUnionPay, info.Brand)
	assert.Equal(t, "621234", info.BIN6)
	assert.Equal(t, "**** 4567", info.PANMasked)
}

func TestAnalyze_BINOrder(t *testing.T) {
	cases := []struct {
		pan   string
		brand Brand
	}{
		{"340000000000000", BrandAmex},
		{"370000000000000", BrandAmex},
		{"6011000000000000", BrandDiscover},
		{"6445000000000000", BrandDiscover},
		{"6500000000000000", BrandDiscover},
		{"6221270000000000", BrandDiscover}, // inside 622126-622925
		{"6221250000000000", BrandUnionPay}, // just below the Discover range
		{"3530000000000000", BrandJCB},
		{"5018000000000000", BrandMaestro},
		{"5020000000000000", BrandMaestro},
		{"6304000000000000", BrandMaestro},
		{"3600000000000000", BrandDinersClub},
		{"3040000000000000", BrandDinersClub},
		{"3095000000000000", BrandDinersClub},
		{"5100000000000000", BrandMastercard},
		{"5500000000000000", BrandMastercard},
		{"2221000000000000", BrandMastercard},
		{"2720000000000000", BrandMastercard},
		{"4000000000000000", BrandVisa},
		{"6200000000000000", BrandUnionPay},
		{"9999000000000000", BrandUnknown},
		{"1234000000000000", BrandUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.brand, brandFromPAN(tc.pan), "pan %s", tc.pan)
	}
}

func TestAnalyze_AIDFallback(t *testing.T) {
	// No PAN; brand comes from the AID in 4F.
	set := parseHex(t, "4F07A0000000031010")
	info := Analyze(set)

	assert.Equal(t, BrandVisa, info.Brand)
	assert.Equal(t, "", info.BIN6)
	assert.Equal(t, []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}, info.AID)
}

func TestAnalyze_AIDMaestroBeforeMastercard(t *testing.T) {
	set := parseHex(t, "4F07A0000000043060")
	assert.Equal(t, BrandMaestro, Analyze(set).Brand)

	set = parseHex(t, "4F07A0000000041010")
	assert.Equal(t, BrandMastercard, Analyze(set).Brand)
}

func TestAnalyze_DFNameFallback(t *testing.T) {
	set := parseHex(t, "8407A0000000651010")
	assert.Equal(t, BrandJCB, Analyze(set).Brand)
}

func TestAnalyze_CardTypes(t *testing.T) {
	cases := []struct {
		auc byte
		typ CardType
	}{
		{0x08, TypeDebit},
		{0x48, TypeDebit},
		{0x00, TypeCredit},
		{0x40, TypeCredit},
		{0x20, TypePrepaid},
		{0x80, TypeBusiness},
		{0x33, TypeUnknown},
	}
	for _, tc := range cases {
		set := parseHex(t, "9F0701"+hex.EncodeToString([]byte{tc.auc}))
		assert.Equal(t, tc.typ, Analyze(set).Type, "auc %02X", tc.auc)
	}
}

func TestAnalyze_CorporateNamePromotesUnknownOnly(t *testing.T) {
	// No AUC, corporate cardholder name: promoted to Business.
	name := hex.EncodeToString([]byte("ACME CORP"))
	set := parseHex(t, "5F2009"+name)
	assert.Equal(t, TypeBusiness, Analyze(set).Type)

	// Debit AUC wins over the name heuristic.
	set = parseHex(t, "9F0701085F2009"+name)
	assert.Equal(t, TypeDebit, Analyze(set).Type)
}

func TestAnalyze_CodeNormalization(t *testing.T) {
	// Single-byte currency code is zero-padded to four hex digits.
	set := parseHex(t, "5F2A0178")
	info := Analyze(set)
	assert.Equal(t, "0078", info.Currency)
	assert.Equal(t, "Unknown", info.CurrencyLabel)

	// Fallback tag 9F51 is consulted when 5F2A is absent.
	set = parseHex(t, "9F51020978")
	info = Analyze(set)
	assert.Equal(t, "0978", info.Currency)
	assert.Equal(t, "EUR", info.CurrencyLabel)
}

func TestAnalyze_NestedTemplates(t *testing.T) {
	// PAN inside a 70 record template.
	set := parseHex(t, "700A5A084111111111111111")
	info := Analyze(set)
	assert.Equal(t, BrandVisa, info.Brand)
}
