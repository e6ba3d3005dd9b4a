package stream

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAlignedTop1EmitsFinalCombinedState(t *testing.T) {
	reg := NewRegistry(nil, false)
	o := NewOrchestrator(reg, Config{View: ViewAligned1})

	input := "XYZ\tB2\t197.0\t100\n" +
		"XYZ\tA2\t199.0\t50\n"

	var out bytes.Buffer
	require.NoError(t, o.Run(bytes.NewBufferString(input), &out, nil))

	require.Contains(t, out.String(), "c1\t197.0\t199.0\t100\t50\n")
}

func TestAlignedTop1DedupesRepeatedState(t *testing.T) {
	reg := NewRegistry(nil, false)
	o := NewOrchestrator(reg, Config{View: ViewAligned1})

	input := "XYZ\tB2\t197.0\t100\n" +
		"XYZ\tB3\t197.0\t0\n" // a zero L3 delta leaves the top unchanged

	var out bytes.Buffer
	require.NoError(t, o.Run(bytes.NewBufferString(input), &out, nil))

	lines := bytes.Count(out.Bytes(), []byte("\n"))
	require.Equal(t, 1, lines, "a no-op update must not re-emit an unchanged aligned view")
}

func TestRawL2UnwindEmitsZeroThenReal(t *testing.T) {
	reg := NewRegistry(nil, false)
	o := NewOrchestrator(reg, Config{View: ViewRaw2})

	input := "XYZ\tA2\t198.0\t50\n" +
		"XYZ\tA1\t199.0\t50\n"

	var out bytes.Buffer
	require.NoError(t, o.Run(bytes.NewBufferString(input), &out, nil))

	got := out.String()
	require.Contains(t, got, "A2\t198.0\t0\n")
	require.Contains(t, got, "A2\t199.0\t50\n")
}

func TestClearVerbEmitsZeroForEveryLevel(t *testing.T) {
	reg := NewRegistry(nil, false)
	o := NewOrchestrator(reg, Config{View: ViewRaw2})

	input := "XYZ\tB2\t197.0\t100\n" +
		"XYZ\tA2\t198.0\t50\n" +
		"XYZ\tC\tnan\t0\n"

	var out bytes.Buffer
	require.NoError(t, o.Run(bytes.NewBufferString(input), &out, nil))

	got := out.String()
	require.Contains(t, got, "B2\t197.0\t0\n")
	require.Contains(t, got, "A2\t198.0\t0\n")
}

func TestConsolidatedViewEmitsOneAlignedLine(t *testing.T) {
	reg := NewRegistry(nil, false)
	o := NewOrchestrator(reg, Config{View: ViewConsolQ, ConsolQty: decimal.RequireFromString("100")})

	input := "XYZ\tA2\t199.0\t200\n" +
		"XYZ\tB2\t197.0\t200\n"

	var out bytes.Buffer
	require.NoError(t, o.Run(bytes.NewBufferString(input), &out, nil))

	got := out.String()
	require.Contains(t, got, "c1\t197.0\t199.0\t100.0\t100.0\n")
}

func TestUnknownInstrumentDropsWithoutRegistry(t *testing.T) {
	reg := NewRegistry([]string{"XYZ"}, false)
	o := NewOrchestrator(reg, Config{View: ViewAligned1})

	var dropped []string
	var out bytes.Buffer
	err := o.Run(bytes.NewBufferString("OTHER\tA2\t199.0\t50\n"), &out, func(reason string) {
		dropped = append(dropped, reason)
	})
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	require.Empty(t, out.String())
}
