package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"book2book/internal/lob"
)

func TestParseRightToLeftSplit(t *testing.T) {
	var p Parser
	line := "2024-01-01T00:00:00\tXYZ\tA2\t199.0\t50"

	got, err := p.Parse(line)
	require.NoError(t, err)
	require.Equal(t, "XYZ", got.Instr)
	require.Equal(t, "2024-01-01T00:00:00", string(got.Prefix))
	require.Equal(t, lob.SideAsk, got.Quote.Side)
	require.Equal(t, lob.Lvl2, got.Quote.Flav)
}

func TestParseClearVerb(t *testing.T) {
	var p Parser
	got, err := p.Parse("t0\tXYZ\tC\tnan\t0")
	require.NoError(t, err)
	require.Equal(t, lob.SideClear, got.Quote.Side)
}

func TestParseDeleteVerb(t *testing.T) {
	var p Parser
	got, err := p.Parse("t0\tXYZ\tT\t198.0\t10")
	require.NoError(t, err)
	require.Equal(t, lob.SideDelete, got.Quote.Side)
}

func TestParseRejectsTooFewFields(t *testing.T) {
	var p Parser
	_, err := p.Parse("A2\t199.0")
	require.Error(t, err)
}

func TestParseRejectsUnknownSideChar(t *testing.T) {
	var p Parser
	_, err := p.Parse("t0\tXYZ\tZ2\t199.0\t50")
	require.Error(t, err)
}

func TestParseNaNPriceSentinel(t *testing.T) {
	var p Parser
	got, err := p.Parse("t0\tXYZ\tB1\tnan\t0")
	require.NoError(t, err)
	require.True(t, got.Quote.Price.IsNaN())
}

func TestParseTSFractionalDigits(t *testing.T) {
	ts, err := ParseTS("1.500")
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000_000), uint64(ts))

	_, err = ParseTS("1.50")
	require.Error(t, err)
}
