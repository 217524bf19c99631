package nfcwire

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ghostfacexx/nfcmitm/pkg/mitm"
)

// Envelope is the NFC_DATA inner body: a JSON object carrying the TLV bytes
// in one of several encodings plus ancillary fields preserved verbatim in
// responses.
type Envelope map[string]json.RawMessage

// ErrNoTLV is returned when none of the recognized fields carries TLV data.
var ErrNoTLV = errors.New("nfcwire: envelope carries no TLV data")

// tlvFields is the extraction precedence; the first present field wins.
var tlvFields = []string{"raw_tlv_hex", "raw_data", "tlv_hex", "tlv_bytes_b64", "tlv_data"}

// ParseEnvelope decodes the inner JSON body of an NFC_DATA payload.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("nfcwire: malformed envelope: %w", err)
	}
	return env, nil
}

// TerminalType returns the ancillary terminal_type field, empty when absent.
func (e Envelope) TerminalType() string {
	raw, ok := e["terminal_type"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// ExtractTLV pulls the TLV bytes out of the envelope following the field
// precedence. The returned source names the field that matched.
func (e Envelope) ExtractTLV() (data []byte, source string, err error) {
	for _, field := range tlvFields {
		raw, ok := e[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			continue
		}

		switch field {
		case "tlv_bytes_b64":
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, field, fmt.Errorf("nfcwire: %s: %w", field, err)
			}
			return b, field, nil
		case "tlv_data":
			b, err := decodeTagValuePairs(s)
			if err != nil {
				return nil, field, err
			}
			return b, field, nil
		default:
			b, err := hex.DecodeString(s)
			if err != nil {
				return nil, field, fmt.Errorf("nfcwire: %s: %w", field, err)
			}
			return b, field, nil
		}
	}
	return nil, "", ErrNoTLV
}

// decodeTagValuePairs parses the TAG:VALUE|TAG:VALUE form. VALUE is hex when
// it is even-length hex, otherwise UTF-8 carried as-is. Each pair becomes a
// primitive element with a short-form length.
func decodeTagValuePairs(s string) ([]byte, error) {
	var out []byte
	for _, pair := range strings.Split(s, "|") {
		if pair == "" {
			continue
		}
		tagStr, valStr, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("nfcwire: tlv_data pair %q missing separator", pair)
		}
		tag, err := hex.DecodeString(tagStr)
		if err != nil || len(tag) == 0 {
			return nil, fmt.Errorf("nfcwire: tlv_data tag %q is not hex", tagStr)
		}

		var value []byte
		if isEvenHex(valStr) {
			value, _ = hex.DecodeString(valStr)
		} else {
			value = []byte(valStr)
		}
		if len(value) > 0xFF {
			return nil, fmt.Errorf("nfcwire: tlv_data value for %s too long", strings.ToUpper(tagStr))
		}

		out = append(out, tag...)
		if len(value) < 0x80 {
			out = append(out, byte(len(value)))
		} else {
			out = append(out, 0x81, byte(len(value)))
		}
		out = append(out, value...)
	}
	if len(out) == 0 {
		return nil, ErrNoTLV
	}
	return out, nil
}

func isEvenHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// BuildResponse produces the response envelope: every ancillary field of the
// request carried verbatim, the consumed TLV field dropped, plus
// modified_tlv_hex and the mitm summary.
func BuildResponse(request Envelope, consumedField string, modifiedTLV []byte, summary mitm.Summary) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(request)+2)
	for k, v := range request {
		if k == consumedField {
			continue
		}
		out[k] = v
	}

	tlvHex, err := json.Marshal(strings.ToUpper(hex.EncodeToString(modifiedTLV)))
	if err != nil {
		return nil, err
	}
	out["modified_tlv_hex"] = tlvHex

	mitmObj, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	out["mitm"] = mitmObj

	return json.Marshal(out)
}
