package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/joshuapare/spanalloc/alloc"
)

var (
	runOps     int
	runSeed    uint64
	runMaxSize uint64
	runLive    int
	runVerify  bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runOps, "ops", 1000, "Number of random operations after the reference sequence")
	cmd.Flags().Uint64Var(&runSeed, "seed", 1, "Seed for the random mix")
	cmd.Flags().Uint64Var(&runMaxSize, "max-size", 16384, "Largest request size in the random mix")
	cmd.Flags().IntVar(&runLive, "live", 64, "Number of blocks kept live during the random mix")
	cmd.Flags().BoolVar(&runVerify, "verify", true, "Check span, page heap and free list consistency after the workload")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run an allocation workload and print statistics",
		Long: `The run command drives a fresh allocator through the reference sequence
(allocate 4097 bytes, release it, allocate 2 and 3 bytes) followed by a
random mix of malloc, calloc, realloc and free over a window of live
blocks. Every block's contents are checked before it is released.

Example:
  spanctl run
  spanctl run --ops 100000 --max-size 65536 --index linear
  spanctl run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun()
		},
	}
}

// RunReport is the JSON form of the run output.
type RunReport struct {
	Ops      int         `json:"ops"`
	Seed     uint64      `json:"seed"`
	Failures int         `json:"failures"`
	Verified bool        `json:"verified"`
	Stats    alloc.Stats `json:"stats"`
}

type block struct {
	addr uintptr
	size uintptr
	seed byte
}

func runRun() error {
	if runLive <= 0 {
		return errors.New("--live must be positive")
	}
	if runMaxSize == 0 {
		return errors.New("--max-size must be positive")
	}
	opts, err := allocatorOptions()
	if err != nil {
		return err
	}
	a, err := alloc.New(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := referenceSequence(a); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(runSeed, runSeed^0x9e3779b97f4a7c15))
	live := make([]block, runLive)
	failures := 0
	for i := range runOps {
		slot := &live[rng.IntN(len(live))]
		size := uintptr(rng.Uint64N(runMaxSize) + 1)
		seed := byte(i)

		switch rng.IntN(4) {
		case 0:
			if err := release(a, *slot); err != nil {
				return err
			}
			*slot = block{}
			continue
		case 1:
			if err := release(a, *slot); err != nil {
				return err
			}
			*slot = block{addr: a.Calloc(1, size), size: size, seed: seed}
			if slot.addr != 0 {
				for _, b := range a.Bytes(slot.addr, size) {
					if b != 0 {
						return fmt.Errorf("calloc %d bytes at %#x: memory not zeroed", size, slot.addr)
					}
				}
			}
		case 2:
			if slot.addr == 0 {
				*slot = block{addr: a.Malloc(size), size: size, seed: seed}
				break
			}
			if err := check(a, *slot); err != nil {
				return err
			}
			q := a.Realloc(slot.addr, size)
			if q == 0 {
				// The old block is kept.
				failures++
				continue
			}
			moved := block{addr: q, size: min(slot.size, size), seed: slot.seed}
			if err := check(a, moved); err != nil {
				return fmt.Errorf("after realloc: %w", err)
			}
			*slot = block{addr: q, size: size, seed: seed}
		default:
			if err := release(a, *slot); err != nil {
				return err
			}
			*slot = block{addr: a.Malloc(size), size: size, seed: seed}
		}

		if slot.addr == 0 {
			failures++
			*slot = block{}
			continue
		}
		fill(a, *slot)
	}
	for _, b := range live {
		if err := release(a, b); err != nil {
			return err
		}
	}

	report := RunReport{Ops: runOps, Seed: runSeed, Failures: failures, Stats: a.Stats()}
	if runVerify {
		if err := a.Verify(); err != nil {
			return fmt.Errorf("allocator state is inconsistent: %w", err)
		}
		report.Verified = true
		printVerbose("verify: ok\n")
	}
	if jsonOut {
		return printJSON(report)
	}
	printReport(report)
	return nil
}

// referenceSequence allocates 4097 bytes, releases them, then allocates 2 and 3 bytes.
func referenceSequence(a *alloc.Allocator) error {
	big := a.Malloc(4097)
	printVerbose("malloc(4097) = %#x\n", big)
	if big == 0 {
		return errors.New("reference sequence: malloc(4097) failed")
	}
	a.Free(big)
	printVerbose("free(%#x)\n", big)

	p := a.Malloc(2)
	printVerbose("malloc(2) = %#x\n", p)
	q := a.Malloc(3)
	printVerbose("malloc(3) = %#x\n", q)
	if p == 0 || q == 0 || p == q {
		return fmt.Errorf("reference sequence: malloc(2) = %#x, malloc(3) = %#x", p, q)
	}
	a.Free(p)
	a.Free(q)
	return nil
}

func fill(a *alloc.Allocator, b block) {
	buf := a.Bytes(b.addr, b.size)
	for i := range buf {
		buf[i] = b.seed + byte(i)
	}
}

func check(a *alloc.Allocator, b block) error {
	buf := a.Bytes(b.addr, b.size)
	for i, got := range buf {
		if want := b.seed + byte(i); got != want {
			return fmt.Errorf("block %#x (%d bytes): byte %d is %#x, want %#x", b.addr, b.size, i, got, want)
		}
	}
	return nil
}

func release(a *alloc.Allocator, b block) error {
	if b.addr == 0 {
		return nil
	}
	if err := check(a, b); err != nil {
		return err
	}
	a.Free(b.addr)
	return nil
}

func printReport(r RunReport) {
	st := r.Stats
	printInfo("Workload: %d ops, seed %d, %d failed allocations\n", r.Ops, r.Seed, r.Failures)
	printInfo("Allocator: %s, page size %d, %s index\n", st.State, st.PageSize, st.Index)
	printInfo("Calls: malloc %d, free %d, calloc %d, realloc %d\n",
		st.Mallocs, st.Frees, st.Callocs, st.Reallocs)
	printInfo("Page source: %d spans, %d pages, %d bytes mapped, %d map failures\n",
		st.Source.Spans, st.Source.Pages, st.Source.BytesMapped, st.Source.MapFailures)
	printInfo("Span index: %d / %d pages, %d span IDs\n", st.IndexPages, st.IndexCap, st.SpanIDs)
	printInfo("Page heap: %d hits, %d misses, %d free spans (%d pages)\n",
		st.Heap.Hits, st.Heap.Misses, st.Heap.FreeSpans, st.Heap.FreePages)
	printInfo("Small objects: %d fast, %d slow, %d spans carved, %d free objects\n",
		st.Small.FastPath, st.Small.SlowPath, st.Small.SpansCarved, st.Small.FreeObjects)
}
