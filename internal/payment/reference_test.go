package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferences_RoundTrip(t *testing.T) {
	refs := NewReferences("")
	at := time.UnixMilli(1717171717171)

	for _, id := range []uint{1, 7, 42, 1234567, 4294967295} {
		ref := refs.Build(id, at)
		got, err := refs.Parse(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, id, got)
	}
}

func TestReferences_Format(t *testing.T) {
	refs := NewReferences("MDZ")
	assert.Equal(t, "MDZ-15-1700000000000", refs.Build(15, time.UnixMilli(1700000000000)))
}

func TestReferences_TimestampNotUsedForCorrelation(t *testing.T) {
	refs := NewReferences("MDZ")

	a, err := refs.Parse("MDZ-99-1")
	require.NoError(t, err)
	b, err := refs.Parse("MDZ-99-1800000000000")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReferences_ParseRejects(t *testing.T) {
	refs := NewReferences("MDZ")
	bad := []string{
		"",
		"MDZ--1700000000000",
		"MDZ-abc-1700000000000",
		"MDZ-12",
		"MDZ-12-",
		"XYZ-12-1700000000000",
		"MDZ-12-1700000000000-extra",
		" MDZ-12-1700000000000",
		"MDZ-0-1700000000000",
		"MDZ-99999999999999999999999-1",
	}
	for _, ref := range bad {
		_, err := refs.Parse(ref)
		assert.Error(t, err, ref)
	}
}

func TestReferences_CustomPrefix(t *testing.T) {
	refs := NewReferences("TOPUP")
	id, err := refs.Parse("TOPUP-8-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, uint(8), id)

	_, err = refs.Parse("MDZ-8-1700000000000")
	assert.Error(t, err)
}
