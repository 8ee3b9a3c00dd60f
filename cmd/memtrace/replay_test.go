package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cznic/memar"
	"github.com/cznic/memar/internal/trace"
)

func newTestArena(t *testing.T, v memar.Variant, n int) *memar.Arena {
	t.Helper()
	a, err := memar.NewArena(make([]byte, n), v)
	require.NoError(t, err)
	return a
}

func TestReplayBasicScript(t *testing.T) {
	for _, v := range []memar.Variant{memar.SL, memar.RBP, memar.RBD, memar.RBS, memar.RBT} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := newTestArena(t, v, 1<<16)
			ops := []trace.Op{
				{Kind: 'a', ID: 1, Bytes: 64, Line: 1},
				{Kind: 'a', ID: 2, Bytes: 128, Line: 2},
				{Kind: 'r', ID: 1, Bytes: 32, Line: 3},
				{Kind: 'f', ID: 2, Line: 4},
				{Kind: 'a', ID: 3, Bytes: 256, Line: 5},
				{Kind: 'f', ID: 1, Line: 6},
				{Kind: 'f', ID: 3, Line: 7},
			}

			live, err := replay(a, ops, false, false)
			require.NoError(t, err)
			require.Empty(t, live)
			require.True(t, a.Validate(nil))
			require.Greater(t, a.Capacity(), int64(0))
		})
	}
}

func TestReplayFailsOnUnknownID(t *testing.T) {
	a := newTestArena(t, memar.RBP, 1<<12)
	ops := []trace.Op{{Kind: 'f', ID: 99, Line: 1}}
	_, err := replay(a, ops, false, false)
	require.Error(t, err)
}

func TestReplayFailsOnOversizeRequest(t *testing.T) {
	a := newTestArena(t, memar.SL, 1<<10)
	ops := []trace.Op{{Kind: 'a', ID: 1, Bytes: 1 << 20, Line: 1}}
	_, err := replay(a, ops, false, false)
	require.Error(t, err)
}

func TestReplayFromParsedScript(t *testing.T) {
	a := newTestArena(t, memar.RBS, 1<<16)
	script := "a 1 40\na 2 80\nf 1\nr 2 200\nf 2\n"
	ops, err := trace.Parse(strings.NewReader(script))
	require.NoError(t, err)

	live, err := replay(a, ops, false, false)
	require.NoError(t, err)
	require.Empty(t, live)
}
