package nfcwire

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostfacexx/nfcmitm/pkg/mitm"
)

func TestExtractTLV_Precedence(t *testing.T) {
	// raw_tlv_hex wins over every later field.
	env, err := ParseEnvelope([]byte(`{
		"raw_tlv_hex": "9F070100",
		"tlv_hex": "9F070108",
		"tlv_bytes_b64": "nwcBCA=="
	}`))
	require.NoError(t, err)

	data, source, err := env.ExtractTLV()
	require.NoError(t, err)
	assert.Equal(t, "raw_tlv_hex", source)
	assert.Equal(t, []byte{0x9F, 0x07, 0x01, 0x00}, data)
}

func TestExtractTLV_EachField(t *testing.T) {
	want := []byte{0x9F, 0x07, 0x01, 0x00}
	cases := map[string]string{
		"raw_tlv_hex":   `{"raw_tlv_hex":"9F070100"}`,
		"raw_data":      `{"raw_data":"9F070100"}`,
		"tlv_hex":       `{"tlv_hex":"9F070100"}`,
		"tlv_bytes_b64": `{"tlv_bytes_b64":"` + "nwcBAA==" + `"}`,
	}
	for field, body := range cases {
		env, err := ParseEnvelope([]byte(body))
		require.NoError(t, err, field)
		data, source, err := env.ExtractTLV()
		require.NoError(t, err, field)
		assert.Equal(t, field, source)
		assert.Equal(t, want, data, field)
	}
}

func TestExtractTLV_TagValuePairs(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"tlv_data":"9F07:00|50:VISA"}`))
	require.NoError(t, err)

	data, source, err := env.ExtractTLV()
	require.NoError(t, err)
	assert.Equal(t, "tlv_data", source)

	// 9F07 value "00" is even-length hex; "VISA" is UTF-8.
	want := append([]byte{0x9F, 0x07, 0x01, 0x00}, append([]byte{0x50, 0x04}, []byte("VISA")...)...)
	assert.Equal(t, want, data)
}

func TestExtractTLV_Missing(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"device":"reader-1"}`))
	require.NoError(t, err)

	_, _, err = env.ExtractTLV()
	require.ErrorIs(t, err, ErrNoTLV)
}

func TestExtractTLV_BadHex(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"raw_tlv_hex":"ZZZZ"}`))
	require.NoError(t, err)

	_, _, err = env.ExtractTLV()
	require.Error(t, err)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`not json`))
	require.Error(t, err)
}

func TestTerminalType(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"terminal_type":"ATM","raw_tlv_hex":"9F070100"}`))
	require.NoError(t, err)
	assert.Equal(t, "ATM", env.TerminalType())

	env, err = ParseEnvelope([]byte(`{"raw_tlv_hex":"9F070100"}`))
	require.NoError(t, err)
	assert.Equal(t, "", env.TerminalType())
}

func TestBuildResponse_CarriesAncillaryFields(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
		"raw_tlv_hex": "9F070100",
		"device": "reader-1",
		"terminal_type": "POS"
	}`))
	require.NoError(t, err)

	modified := []byte{0x9F, 0x07, 0x01, 0x08}
	summary := mitm.Summary{
		AppliedEdits:       []mitm.AppliedEdit{{Op: "replace", Tag: "9F34", Name: "CVM Results", Value: "1F0300"}},
		SuccessProbability: 0.85,
	}

	raw, err := BuildResponse(env, "raw_tlv_hex", modified, summary)
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &out))

	// Consumed TLV field dropped, ancillary fields verbatim.
	assert.NotContains(t, out, "raw_tlv_hex")
	assert.JSONEq(t, `"reader-1"`, string(out["device"]))
	assert.JSONEq(t, `"POS"`, string(out["terminal_type"]))

	var tlvHex string
	require.NoError(t, json.Unmarshal(out["modified_tlv_hex"], &tlvHex))
	decoded, err := hex.DecodeString(tlvHex)
	require.NoError(t, err)
	assert.Equal(t, modified, decoded)

	var got mitm.Summary
	require.NoError(t, json.Unmarshal(out["mitm"], &got))
	require.Len(t, got.AppliedEdits, 1)
	assert.Equal(t, "9F34", got.AppliedEdits[0].Tag)
	assert.InDelta(t, 0.85, got.SuccessProbability, 1e-9)
}
