package bypass

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostfacexx/nfcmitm/pkg/emv"
)

// TestStrategyTable_CVRConstants pins the per-row 9F10 values.
func TestStrategyTable_CVRConstants(t *testing.T) {
	cases := []struct {
		brand    emv.Brand
		cardType emv.CardType
		terminal TerminalKind
		cvr      string
	}{
		{emv.BrandVisa, emv.TypeDebit, TerminalPOS, "0110A00003220000000000000000000000FF"},
		{emv.BrandVisa, emv.TypeCredit, TerminalPOS, "0110A00001220000000000000000000000FF"},
		{emv.BrandVisa, emv.TypeBusiness, TerminalPOS, "0110A00005220000000000000000000000FF"},
		{emv.BrandVisa, emv.TypePrepaid, TerminalATM, "0110A00003220000000000000000000000FF"},
		{emv.BrandMastercard, emv.TypeDebit, TerminalPOS, "0110A00000220000000000000000000000FF"},
		{emv.BrandMastercard, emv.TypeCredit, TerminalPOS, "0110A00002220000000000000000000000FF"},
		{emv.BrandAmex, emv.TypeCredit, TerminalPOS, "0110A00007220000000000000000000000FF"},
		{emv.BrandAmex, emv.TypeBusiness, TerminalPOS, "0110A00006220000000000000000000000FF"},
		{emv.BrandDiscover, emv.TypeDebit, TerminalPOS, "0110A00008220000000000000000000000FF"},
		{emv.BrandJCB, emv.TypeCredit, TerminalPOS, "0110A00009220000000000000000000000FF"},
		{emv.BrandUnionPay, emv.TypeCredit, TerminalPOS, "0110A00010220000000000000000000000FF"},
		{emv.BrandUnknown, emv.TypeUnknown, TerminalPOS, "0110A00000220000000000000000000000FF"},
	}
	for _, tc := range cases {
		st := selectStrategy(tc.brand, tc.cardType, tc.terminal)
		got := strings.ToUpper(hex.EncodeToString(st.CVR))
		assert.Equal(t, tc.cvr, got, "%s/%s/%s", tc.brand, tc.cardType, tc.terminal)
	}
}

func TestStrategyTable_TerminalCaps(t *testing.T) {
	// POS rows carry 6068C8, the Visa ATM row 6000C8.
	st := selectStrategy(emv.BrandVisa, emv.TypeCredit, TerminalPOS)
	assert.Equal(t, "6068c8", hex.EncodeToString(st.TerminalCaps))

	st = selectStrategy(emv.BrandVisa, emv.TypeCredit, TerminalATM)
	assert.Equal(t, "6000c8", hex.EncodeToString(st.TerminalCaps))
}

func TestStrategyTable_PrimaryMethods(t *testing.T) {
	assert.Equal(t, "CDCVM", selectStrategy(emv.BrandVisa, emv.TypeDebit, TerminalPOS).Primary)
	assert.Equal(t, "signature", selectStrategy(emv.BrandVisa, emv.TypeCredit, TerminalPOS).Primary)
	assert.Equal(t, "no_cvm", selectStrategy(emv.BrandVisa, emv.TypeBusiness, TerminalPOS).Primary)
	assert.Equal(t, "online_auth", selectStrategy(emv.BrandUnionPay, emv.TypeDebit, TerminalPOS).Primary)
	assert.Equal(t, "generic", selectStrategy(emv.BrandMaestro, emv.TypeDebit, TerminalTransit).Primary)
}

func TestRows_CoversWholeTable(t *testing.T) {
	rows := Rows()
	require.Len(t, rows, 12)
	assert.Equal(t, "Visa", rows[0].Brand)
	last := rows[len(rows)-1]
	assert.Equal(t, "*", last.Brand)
	assert.Equal(t, "generic", last.Strategy.Primary)
}
