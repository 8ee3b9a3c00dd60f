// Package trace parses and generates the §6 request-script format:
//
//	a ID BYTES   allocate BYTES, remember the result under ID
//	r ID BYTES   reallocate ID's pointer to BYTES
//	f ID         release ID's pointer
//
// Blank lines and lines starting with '#' are comments. Files may optionally
// be snappy-compressed on disk; Load and Save follow the same "compress,
// fall back to raw if it doesn't shrink" policy lldb's makeUsedBlock uses for
// block content, tagged with a one-byte magic prefix instead of lldb's
// in-band tail tag since a trace file has no header/footer of its own.
package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

// Op is one parsed line of a request script.
type Op struct {
	Kind  byte // 'a', 'r', or 'f'
	ID    int
	Bytes int // unused for 'f'
	Line  int // 1-based source line, for error reporting
}

const (
	tagRaw      byte = 0
	tagSnappy   byte = 1
	compressMin      = 256 // don't bother compressing scripts this small
)

// Parse reads a request script from r, in the manner of bufio.Scanner-based
// line parsers elsewhere in the pack.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		op, err := parseFields(fields, lineNo)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

func parseFields(fields []string, lineNo int) (Op, error) {
	if len(fields) == 0 {
		return Op{}, fmt.Errorf("trace:%d: empty line reached parseFields", lineNo)
	}

	switch fields[0] {
	case "a":
		if len(fields) != 3 {
			return Op{}, fmt.Errorf("trace:%d: want 'a ID BYTES'", lineNo)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Op{}, fmt.Errorf("trace:%d: bad ID: %v", lineNo, err)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return Op{}, fmt.Errorf("trace:%d: bad BYTES: %v", lineNo, err)
		}
		return Op{Kind: 'a', ID: id, Bytes: n, Line: lineNo}, nil

	case "r":
		if len(fields) != 3 {
			return Op{}, fmt.Errorf("trace:%d: want 'r ID BYTES'", lineNo)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Op{}, fmt.Errorf("trace:%d: bad ID: %v", lineNo, err)
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return Op{}, fmt.Errorf("trace:%d: bad BYTES: %v", lineNo, err)
		}
		return Op{Kind: 'r', ID: id, Bytes: n, Line: lineNo}, nil

	case "f":
		if len(fields) != 2 {
			return Op{}, fmt.Errorf("trace:%d: want 'f ID'", lineNo)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return Op{}, fmt.Errorf("trace:%d: bad ID: %v", lineNo, err)
		}
		return Op{Kind: 'f', ID: id, Line: lineNo}, nil

	default:
		return Op{}, fmt.Errorf("trace:%d: unknown opcode %q", lineNo, fields[0])
	}
}

// Write serializes ops back to the text form Parse accepts.
func Write(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	for _, op := range ops {
		var err error
		switch op.Kind {
		case 'a':
			_, err = fmt.Fprintf(bw, "a %d %d\n", op.ID, op.Bytes)
		case 'r':
			_, err = fmt.Fprintf(bw, "r %d %d\n", op.ID, op.Bytes)
		case 'f':
			_, err = fmt.Fprintf(bw, "f %d\n", op.ID)
		default:
			err = fmt.Errorf("trace: unknown opcode %q", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a trace file that may or may not be snappy-compressed,
// identified by the one-byte tag Save prefixes it with.
func Load(r io.Reader) ([]Op, error) {
	br := bufio.NewReader(r)
	tag, err := br.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	switch tag {
	case tagRaw:
		return Parse(br)
	case tagSnappy:
		rest, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		raw, err := snappy.Decode(nil, rest)
		if err != nil {
			return nil, fmt.Errorf("trace: snappy decode: %w", err)
		}
		return Parse(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("trace: unrecognized file tag %#x", tag)
	}
}

// Save writes ops as text, snappy-compressing the result when compression
// actually shrinks it (mirrors makeUsedBlock's "rqAtoms2 < rqAtoms" check),
// falling back to the raw form otherwise. Either form is prefixed with a
// one-byte tag Load dispatches on.
func Save(w io.Writer, ops []Op) error {
	var buf bytes.Buffer
	if err := Write(&buf, ops); err != nil {
		return err
	}
	raw := buf.Bytes()

	if len(raw) <= compressMin {
		return writeTagged(w, tagRaw, raw)
	}

	z := snappy.Encode(nil, raw)
	if len(z) < len(raw) {
		return writeTagged(w, tagSnappy, z)
	}
	return writeTagged(w, tagRaw, raw)
}

func writeTagged(w io.Writer, tag byte, payload []byte) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Generate fabricates a deterministic benchmark script of n operations for
// reproducible traces (harness-side load generation, not part of the core):
// allocate new IDs (sizes stepping cyclically through [minBytes, maxBytes))
// while fewer than window IDs are live; once window IDs are live, each step
// whose index is a multiple of three reallocates a live ID and every other
// step frees the oldest live ID. IDs still live at the end are freed.
func Generate(n, window, minBytes, maxBytes int) []Op {
	if window < 1 {
		window = 1
	}
	span := maxBytes - minBytes
	if span < 1 {
		span = 1
	}

	var ops []Op
	var live []int
	nextID := 0
	for i := 0; i < n; i++ {
		switch {
		case len(live) < window:
			id := nextID
			nextID++
			sz := minBytes + (i*7)%span
			ops = append(ops, Op{Kind: 'a', ID: id, Bytes: sz})
			live = append(live, id)

		case i%3 == 0:
			id := live[i%len(live)]
			sz := minBytes + (i*13)%span
			ops = append(ops, Op{Kind: 'r', ID: id, Bytes: sz})

		default:
			id := live[0]
			live = live[1:]
			ops = append(ops, Op{Kind: 'f', ID: id})
		}
	}

	for _, id := range live {
		ops = append(ops, Op{Kind: 'f', ID: id})
	}
	return ops
}
