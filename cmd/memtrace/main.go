// Command memtrace is the §6 "correctness program": it replays a request
// script against a fresh Arena, validating after every line, and exits zero
// only if the script completes with no structural violation. It is a
// single-verb flag-based binary (no subcommands), unlike cmd/peaks.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cznic/fileutil"

	"github.com/cznic/memar"
	"github.com/cznic/memar/internal/pp"
	"github.com/cznic/memar/internal/trace"
)

var (
	flagVariant  = flag.String("variant", "rbp", "free-block index: sl, rbp, rbd, rbs, rbt")
	flagBytes    = flag.Int("bytes", 1<<20, "arena region size in bytes")
	flagMmap     = flag.String("mmap", "", "back the arena with this file via mmap instead of process memory")
	flagQuiet    = flag.Bool("quiet", false, "suppress the per-line progress dump on success")
	flagDumpOnly = flag.Bool("dump-on-fail", true, "print a heap/index dump when validation fails")
)

func parseVariant(s string) (memar.Variant, error) {
	switch s {
	case "sl":
		return memar.SL, nil
	case "rbp":
		return memar.RBP, nil
	case "rbd":
		return memar.RBD, nil
	case "rbs":
		return memar.RBS, nil
	case "rbt":
		return memar.RBT, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

// backingRegion returns the []byte the Arena will be Init'd over: either an
// anonymous process-memory buffer, or, when -mmap names a file, a region
// mapped over it with fileutil.Mmap so the "caller-provided contiguous byte
// region" contract is exercised against real OS-backed memory rather than a
// make([]byte, …) slice.
func backingRegion(n int) ([]byte, func(), error) {
	if *flagMmap == "" {
		return make([]byte, n), func() {}, nil
	}

	f, err := os.OpenFile(*flagMmap, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Truncate(int64(n)); err != nil {
		f.Close()
		return nil, nil, err
	}

	region, err := fileutil.Mmap(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return region, func() { f.Close() }, nil
}

func run() error {
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: memtrace [flags] SCRIPT")
	}

	v, err := parseVariant(*flagVariant)
	if err != nil {
		return err
	}
	if *flagBytes < memar.MinHeapBytes(v) {
		return fmt.Errorf("-bytes %d too small for %s", *flagBytes, v)
	}

	region, cleanup, err := backingRegion(*flagBytes)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := memar.NewArena(region, v)
	if err != nil {
		return err
	}

	scriptFile, err := os.Open(flag.Arg(0))
	if err != nil {
		return err
	}
	defer scriptFile.Close()

	ops, err := trace.Parse(scriptFile)
	if err != nil {
		return err
	}

	live, err := replay(a, ops, !*flagQuiet, *flagDumpOnly)
	if err != nil {
		return err
	}

	fmt.Printf("PASS: %d operations, %d live blocks, capacity %d\n", len(ops), len(live), a.Capacity())
	return nil
}

// replay applies ops to a in order, validating after every line, in the
// manner of §6's "exit nonzero on first failing script" discipline. It
// returns the map of still-live IDs on success, or the first error
// encountered (either a failed operation or a failed Validate), so both
// main and the package's tests share one code path.
func replay(a *memar.Arena, ops []trace.Op, progress, dumpOnFail bool) (map[int]int, error) {
	live := map[int]int{}
	for _, op := range ops {
		var opErr error
		switch op.Kind {
		case 'a':
			addr := a.Allocate(op.Bytes)
			if addr == memar.NullAddr {
				opErr = fmt.Errorf("allocate(%d) failed", op.Bytes)
			} else {
				live[op.ID] = addr
			}
		case 'r':
			addr, ok := live[op.ID]
			if !ok {
				opErr = fmt.Errorf("reallocate unknown ID %d", op.ID)
				break
			}
			newAddr := a.Reallocate(addr, op.Bytes)
			if newAddr == memar.NullAddr {
				opErr = fmt.Errorf("reallocate(%d, %d) failed", op.ID, op.Bytes)
			} else {
				live[op.ID] = newAddr
			}
		case 'f':
			addr, ok := live[op.ID]
			if !ok {
				opErr = fmt.Errorf("release unknown ID %d", op.ID)
				break
			}
			a.Release(addr)
			delete(live, op.ID)
		}

		if opErr != nil {
			return nil, fmt.Errorf("line %d: %w", op.Line, opErr)
		}

		var violations []error
		if !a.Validate(func(e error) bool { violations = append(violations, e); return true }) {
			if dumpOnFail {
				pp.Detect(os.Stderr).Dump(os.Stderr, a)
			}
			for _, v := range violations {
				fmt.Fprintln(os.Stderr, v)
			}
			return nil, fmt.Errorf("line %d: validation failed after %c %d", op.Line, op.Kind, op.ID)
		}

		if progress {
			fmt.Printf("line %d ok (%c %d)\n", op.Line, op.Kind, op.ID)
		}
	}
	return live, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
