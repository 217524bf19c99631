package tlv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize_RoundTripExact(t *testing.T) {
	cases := map[string]string{
		"primitive":       "9F3303606808",
		"two elements":    "5A0841111111111111119F070100",
		"nested template": "6F118407A0000000031010A506500456495341",
		"empty value":     "9F0700",
	}

	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			data := mustHex(t, h)
			set, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, data, set.Serialize())
		})
	}
}

func TestSerialize_PreservesRedundantLengthForm(t *testing.T) {
	// A conforming-but-redundant long-form length (0x81 0x03 where 0x03
	// suffices) must survive untouched while the node is unmodified.
	data := mustHex(t, "5A8103112233")
	set, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, data, set.Serialize())
}

func TestSerialize_ModifiedNodeUsesShortestForm(t *testing.T) {
	set, err := Parse(mustHex(t, "5A8103112233"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Replace(TagPAN, mustHex(t, "445566"))})
	assert.Equal(t, mustHex(t, "5A03445566"), out.Serialize())
}

func TestSerialize_LogicalEquivalenceAfterNormalization(t *testing.T) {
	// Re-parsing the serialization of a modified tree yields the same
	// logical set.
	set, err := Parse(mustHex(t, "6F118407A0000000031010A506500456495341"))
	require.NoError(t, err)

	reparsed, err := Parse(set.Serialize())
	require.NoError(t, err)

	if diff := cmp.Diff(set, reparsed, cmp.AllowUnexported(Node{})); diff != "" {
		t.Errorf("round trip changed logical set (-want +got):\n%s", diff)
	}
}

func TestEncodeLength_Forms(t *testing.T) {
	assert.Equal(t, []byte{0x00}, encodeLength(0))
	assert.Equal(t, []byte{0x7F}, encodeLength(0x7F))
	assert.Equal(t, []byte{0x81, 0x80}, encodeLength(0x80))
	assert.Equal(t, []byte{0x81, 0xFF}, encodeLength(0xFF))
	assert.Equal(t, []byte{0x82, 0x01, 0x00}, encodeLength(0x100))
	assert.Equal(t, []byte{0x82, 0xFF, 0xFF}, encodeLength(0xFFFF))
	assert.Equal(t, []byte{0x83, 0x01, 0x00, 0x00}, encodeLength(0x10000))
}

func TestSerialize_ConstructedReencodesParentLength(t *testing.T) {
	// Replacing a child via a rebuilt tree: parent length must track the
	// new content size. Built by hand since Apply works on top level only.
	set, err := Parse(mustHex(t, "6F048402AABB"))
	require.NoError(t, err)

	child := &set[0].Children[0]
	child.Value = mustHex(t, "AABBCCDD")
	child.markDirty()
	set[0].markDirty()

	assert.Equal(t, mustHex(t, "6F068404AABBCCDD"), set.Serialize())
}
