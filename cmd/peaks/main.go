// Command peaks is the §4.6 diagnostic tool: it builds an Arena of a chosen
// variant and size, optionally replays a request script against it, and
// prints a colorized dump of the resulting heap and free-block index. It is
// built the way direktiv-vorteil's cmd/vorteil CLI is: a cobra root command
// with persistent logging flags and one subcommand per verb.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cznic/memar"
	"github.com/cznic/memar/internal/pp"
	"github.com/cznic/memar/internal/trace"
)

var (
	flagVariant string
	flagBytes   int
	flagVerbose bool
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "peaks",
	Short: "diagnostic pretty printer and script runner for a memar Arena",
}

func commandInit() {
	rootCmd.PersistentFlags().StringVarP(&flagVariant, "variant", "V", "rbp", "free-block index: sl, rbp, rbd, rbs, rbt")
	rootCmd.PersistentFlags().IntVarP(&flagBytes, "bytes", "b", 1<<20, "arena region size in bytes")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable ANSI coloring in dumps")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logrus.SetLevel(logrus.InfoLevel)
		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
}

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
		return 0, fmt.Errorf("unknown variant %q (want sl, rbp, rbd, rbs, or rbt)", s)
	}
}

func newArena() (*memar.Arena, error) {
	v, err := parseVariant(flagVariant)
	if err != nil {
		return nil, err
	}
	min := memar.MinHeapBytes(v)
	if flagBytes < min {
		return nil, fmt.Errorf("--bytes %d too small for %s: need at least %d", flagBytes, v, min)
	}
	return memar.NewArena(make([]byte, flagBytes), v)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "validate --variant/--bytes and print the resulting arena layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArena()
		if err != nil {
			return err
		}
		logrus.Infof("initialized %s arena: %d bytes, max request %d", a.Variant(), flagBytes, a.MaxRequestSize())
		p := pp.Detect(os.Stdout)
		p.Color = p.Color && !flagNoColor
		p.Dump(os.Stdout, a)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "replay a §6 request script against a fresh arena, validating after every line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArena()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		ops, err := trace.Parse(f)
		if err != nil {
			return err
		}

		live := map[int]int{} // ID -> client address
		for _, op := range ops {
			if err := applyOp(a, live, op); err != nil {
				return err
			}
			if !a.Validate(func(e error) bool { logrus.Errorf("%v", e); return true }) {
				return fmt.Errorf("validation failed at script line %d (%c %d)", op.Line, op.Kind, op.ID)
			}
		}

		logrus.Infof("replayed %d operations, %d live blocks remain", len(ops), len(live))
		p := pp.Detect(os.Stdout)
		p.Color = p.Color && !flagNoColor
		p.DumpStats(os.Stdout, a)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump SCRIPT",
	Short: "replay a script and print the full heap/index dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArena()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		ops, err := trace.Parse(f)
		if err != nil {
			return err
		}

		live := map[int]int{}
		for _, op := range ops {
			if err := applyOp(a, live, op); err != nil {
				return err
			}
		}

		p := pp.Detect(os.Stdout)
		p.Color = p.Color && !flagNoColor
		p.Verbose = flagVerbose
		p.Dump(os.Stdout, a)
		return nil
	},
}

// applyOp mutates live according to one trace.Op, in the manner of the
// harness described in §6: allocate/reallocate/release remember and replace
// pointers keyed by the script's locally-unique integer IDs.
func applyOp(a *memar.Arena, live map[int]int, op trace.Op) error {
	switch op.Kind {
	case 'a':
		addr := a.Allocate(op.Bytes)
		if addr == memar.NullAddr {
			return fmt.Errorf("line %d: allocate(%d) failed", op.Line, op.Bytes)
		}
		live[op.ID] = addr

	case 'r':
		addr, ok := live[op.ID]
		if !ok {
			return fmt.Errorf("line %d: reallocate unknown ID %d", op.Line, op.ID)
		}
		newAddr := a.Reallocate(addr, op.Bytes)
		if newAddr == memar.NullAddr {
			return fmt.Errorf("line %d: reallocate(%d, %d) failed", op.Line, op.ID, op.Bytes)
		}
		live[op.ID] = newAddr

	case 'f':
		addr, ok := live[op.ID]
		if !ok {
			return fmt.Errorf("line %d: release unknown ID %d", op.Line, op.ID)
		}
		a.Release(addr)
		delete(live, op.ID)

	default:
		return fmt.Errorf("line %d: unknown opcode %q", op.Line, op.Kind)
	}
	return nil
}

func main() {
	commandInit()
	if err := rootCmd.Execute(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}
