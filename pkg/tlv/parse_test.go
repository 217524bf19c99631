package tlv

import (
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestParse_Primitive(t *testing.T) {
	set, err := Parse(mustHex(t, "9F3303606808"))
	require.NoError(t, err)
	require.Len(t, set, 1)

	n := set[0]
	assert.Equal(t, "9F33", n.TagHex())
	assert.Equal(t, FormPrimitive, n.Form())
	assert.Equal(t, ClassContext, n.Class())
	assert.Equal(t, mustHex(t, "606808"), n.Value)
}

func TestParse_MultipleTopLevel(t *testing.T) {
	set, err := Parse(mustHex(t, "5A0841111111111111119F070100"))
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "5A", set[0].TagHex())
	assert.Equal(t, "9F07", set[1].TagHex())
	assert.Equal(t, []byte{0x00}, set[1].Value)
}

func TestParse_Constructed(t *testing.T) {
	// 6F template holding 84 (DF name) and A5 holding 50 (label).
	data := mustHex(t, "6F118407A0000000031010A506500456495341")
	set, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, set, 1)

	fci := set[0]
	require.True(t, fci.Constructed())
	require.Len(t, fci.Children, 2)
	assert.Equal(t, "84", fci.Children[0].TagHex())

	a5 := fci.Children[1]
	require.True(t, a5.Constructed())
	require.Len(t, a5.Children, 1)
	assert.Equal(t, []byte("VISA"), a5.Children[0].Value)
}

func TestParse_LongFormLength(t *testing.T) {
	value := make([]byte, 0x90)
	data := append(mustHex(t, "5F208190"), value...)
	set, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Len(t, set[0].Value, 0x90)
}

func TestParse_Truncated(t *testing.T) {
	_, err := Parse(mustHex(t, "5A081122"))
	require.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestParse_TruncatedMidLength(t *testing.T) {
	// Long-form prefix declaring two length bytes, only one present.
	_, err := Parse(mustHex(t, "5A8201"))
	require.ErrorIs(t, err, ErrTruncatedBuffer)
}

func TestParse_OverlongLength(t *testing.T) {
	_, err := Parse(mustHex(t, "5A850000000001AA"))
	require.ErrorIs(t, err, ErrOverlongLength)
}

func TestParse_EmptyTagByte(t *testing.T) {
	_, err := Parse(mustHex(t, "00015A"))
	require.ErrorIs(t, err, ErrEmptyTagByte)
}

func TestParse_LenientConstructedChild(t *testing.T) {
	// E3 is constructed but its value starts with a zero tag byte, which
	// cannot parse as nested TLV. The node must survive as an opaque
	// primitive carrying the raw bytes.
	data := mustHex(t, "E30300AABB")
	set, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, set, 1)

	n := set[0]
	assert.Equal(t, FormConstructed, n.Form())
	assert.True(t, n.Opaque())
	assert.False(t, n.Constructed())
	assert.Equal(t, mustHex(t, "00AABB"), n.Value)

	// And the opaque node round-trips byte-exact.
	assert.Equal(t, data, set.Serialize())
}

func TestParse_StrictOuterStream(t *testing.T) {
	// The same malformation at the top level fails the whole parse.
	_, err := Parse(mustHex(t, "00AABB"))
	require.Error(t, err)
}

func TestFind_FirstOccurrence(t *testing.T) {
	set, err := Parse(mustHex(t, "9F330160"+"9F330261FF"))
	require.NoError(t, err)

	n := set.Find(TagTerminalCaps)
	require.NotNil(t, n)
	assert.Equal(t, []byte{0x60}, n.Value)

	assert.Nil(t, set.Find(TagPAN))
}

func TestFindDeep_Nested(t *testing.T) {
	set, err := Parse(mustHex(t, "77085A06411111111111"))
	require.NoError(t, err)

	require.Nil(t, set.Find(TagPAN), "PAN is nested, not top-level")
	n := set.FindDeep(TagPAN)
	require.NotNil(t, n)
	assert.Equal(t, mustHex(t, "411111111111"), n.Value)
}

func TestClone_Independent(t *testing.T) {
	set, err := Parse(mustHex(t, "6F048402AABB"))
	require.NoError(t, err)

	clone := set.Clone()
	clone[0].Children[0].Value[0] = 0xFF

	if diff := cmp.Diff(mustHex(t, "AABB"), set[0].Children[0].Value); diff != "" {
		t.Errorf("clone mutated original (-want +got):\n%s", diff)
	}
}
