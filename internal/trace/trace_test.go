package trace

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	src := "" +
		"# comment\n" +
		"\n" +
		"a 1 64\n" +
		"r 1 128\n" +
		"f 1\n"

	ops, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []Op{
		{Kind: 'a', ID: 1, Bytes: 64, Line: 3},
		{Kind: 'r', ID: 1, Bytes: 128, Line: 4},
		{Kind: 'f', ID: 1, Line: 5},
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops, want %d", len(ops), len(want))
	}
	for i := range ops {
		if ops[i] != want[i] {
			t.Fatalf("op %d = %+v, want %+v", i, ops[i], want[i])
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"a 1\n",   // missing BYTES
		"r 1 x\n", // non-numeric BYTES
		"f\n",     // missing ID
		"x 1 2\n", // unknown opcode
	}
	for _, c := range cases {
		if _, err := Parse(strings.NewReader(c)); err == nil {
			t.Fatalf("expected error parsing %q", c)
		}
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	ops := []Op{
		{Kind: 'a', ID: 1, Bytes: 10},
		{Kind: 'a', ID: 2, Bytes: 20},
		{Kind: 'r', ID: 1, Bytes: 15},
		{Kind: 'f', ID: 2},
	}

	var buf bytes.Buffer
	if err := Write(&buf, ops); err != nil {
		t.Fatal(err)
	}

	got, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(got), len(ops))
	}
	for i := range ops {
		if got[i].Kind != ops[i].Kind || got[i].ID != ops[i].ID || got[i].Bytes != ops[i].Bytes {
			t.Fatalf("op %d = %+v, want %+v", i, got[i], ops[i])
		}
	}
}

func TestSaveLoadRoundTripSmall(t *testing.T) {
	ops := []Op{{Kind: 'a', ID: 1, Bytes: 32}, {Kind: 'f', ID: 1}}

	var buf bytes.Buffer
	if err := Save(&buf, ops); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes()[0] != tagRaw {
		t.Fatalf("small script should stay uncompressed, got tag %d", buf.Bytes()[0])
	}

	got, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(got), len(ops))
	}
}

func TestSaveLoadRoundTripLargeCompressible(t *testing.T) {
	// a long run of near-identical lines compresses well past compressMin.
	ops := make([]Op, 0, 500)
	for i := 0; i < 500; i++ {
		ops = append(ops, Op{Kind: 'a', ID: i, Bytes: 64})
	}

	var buf bytes.Buffer
	if err := Save(&buf, ops); err != nil {
		t.Fatal(err)
	}
	if buf.Bytes()[0] != tagSnappy {
		t.Fatalf("large repetitive script should compress, got tag %d", buf.Bytes()[0])
	}

	got, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(got), len(ops))
	}
	for i := range ops {
		if got[i].Kind != ops[i].Kind || got[i].ID != ops[i].ID || got[i].Bytes != ops[i].Bytes {
			t.Fatalf("op %d = %+v, want %+v", i, got[i], ops[i])
		}
	}
}

func TestGenerateProducesBalancedScript(t *testing.T) {
	ops := Generate(200, 16, 8, 256)
	live := map[int]bool{}
	for _, op := range ops {
		switch op.Kind {
		case 'a':
			live[op.ID] = true
		case 'r':
			if !live[op.ID] {
				t.Fatalf("reallocate of unknown ID %d", op.ID)
			}
		case 'f':
			if !live[op.ID] {
				t.Fatalf("release of unknown ID %d", op.ID)
			}
			delete(live, op.ID)
		default:
			t.Fatalf("unknown opcode %q", op.Kind)
		}
	}
	if len(live) != 0 {
		t.Fatalf("%d IDs left unreleased at end of generated script", len(live))
	}
}
