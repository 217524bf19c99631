package tlv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_ReplaceExisting(t *testing.T) {
	set, err := Parse(mustHex(t, "9F340342031E9F330160"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Replace(TagCVMResults, mustHex(t, "1F0300"))})

	n := out.Find(TagCVMResults)
	require.NotNil(t, n)
	assert.Equal(t, mustHex(t, "1F0300"), n.Value)

	// Original set is untouched.
	assert.Equal(t, mustHex(t, "42031E"), set.Find(TagCVMResults).Value)
}

func TestApply_ReplaceInsertsWhenAbsent(t *testing.T) {
	set, err := Parse(mustHex(t, "9F330160"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Replace(TagTVR, mustHex(t, "8000000000"))})
	require.Len(t, out, 2)
	assert.Equal(t, "95", out[1].TagHex())
	assert.Equal(t, mustHex(t, "8000000000"), out[1].Value)
}

func TestApply_ReplaceFirstOccurrenceOnly(t *testing.T) {
	set, err := Parse(mustHex(t, "9F3301609F330161"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Replace(TagTerminalCaps, []byte{0xFF})})
	assert.Equal(t, []byte{0xFF}, out[0].Value)
	assert.Equal(t, []byte{0x61}, out[1].Value)
}

func TestApply_Remove(t *testing.T) {
	set, err := Parse(mustHex(t, "9F3301605A021122"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Remove(TagTerminalCaps)})
	require.Len(t, out, 1)
	assert.Equal(t, "5A", out[0].TagHex())

	// Removing an absent tag is a no-op.
	out = out.Apply([]Edit{Remove(TagTerminalCaps)})
	assert.Len(t, out, 1)
}

func TestApply_InsertBefore(t *testing.T) {
	set, err := Parse(mustHex(t, "9F3301605A021122"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Insert(TagTVR, mustHex(t, "8000000000"), TagPAN)})
	require.Len(t, out, 3)
	assert.Equal(t, "9F33", out[0].TagHex())
	assert.Equal(t, "95", out[1].TagHex())
	assert.Equal(t, "5A", out[2].TagHex())
}

func TestApply_InsertAtEndWhenPositionMissing(t *testing.T) {
	set, err := Parse(mustHex(t, "9F330160"))
	require.NoError(t, err)

	out := set.Apply([]Edit{Insert(TagTVR, []byte{0x80}, TagPAN)})
	require.Len(t, out, 2)
	assert.Equal(t, "95", out[1].TagHex())
}

func TestApply_OrderMatters(t *testing.T) {
	set, err := Parse(mustHex(t, "9F330160"))
	require.NoError(t, err)

	// Edit i+1 sees the output of edit i: the second replace wins.
	out := set.Apply([]Edit{
		Replace(TagTerminalCaps, []byte{0x01}),
		Replace(TagTerminalCaps, []byte{0x02}),
	})
	assert.Equal(t, []byte{0x02}, out.Find(TagTerminalCaps).Value)
}

func TestApply_ReplacePlanIdempotent(t *testing.T) {
	set, err := Parse(mustHex(t, "5A0841111111111111119F0701009F330160"))
	require.NoError(t, err)

	plan := []Edit{
		Replace(TagCVMResults, mustHex(t, "1F0300")),
		Replace(TagCTQ, mustHex(t, "0000")),
		Replace(TagTerminalCaps, mustHex(t, "6068C8")),
		Replace(TagTVR, mustHex(t, "8000000000")),
	}

	once := set.Apply(plan)
	twice := once.Apply(plan)

	if diff := cmp.Diff(once, twice, cmp.AllowUnexported(Node{})); diff != "" {
		t.Errorf("replace plan not idempotent (-once +twice):\n%s", diff)
	}
	assert.Equal(t, once.Serialize(), twice.Serialize())
}

func TestApply_ReplaceUnderConstructedTagStaysRaw(t *testing.T) {
	set := Set{}
	out := set.Apply([]Edit{Replace(MustID("E1"), mustHex(t, "0102"))})
	require.Len(t, out, 1)
	assert.True(t, out[0].Opaque())
	assert.Equal(t, mustHex(t, "E1020102"), out.Serialize())
}
