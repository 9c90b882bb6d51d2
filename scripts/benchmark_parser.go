package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Implementations compared by the report. Benchmarks are expected to be named
// Benchmark<Operation>/<impl>/<size>-<procs>, as in alloc/compare_bench_test.go.
const (
	implSpan   = "spanalloc"
	implGoHeap = "goheap"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Size        string
	Impl        string // implSpan or implGoHeap
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult pairs the two implementations for one operation and size.
type ComparisonResult struct {
	Operation    string
	Size         string
	SpanNs       float64
	GoHeapNs     float64
	Speedup      float64 // GoHeapNs / SpanNs
	SpanMem      int64
	GoHeapMem    int64
	SpanAllocs   int64
	GoHeapAllocs int64
	SpanOnly     bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

// Usage:
//
//	go test ./alloc -run '^$' -bench Compare -benchmem | go run ./scripts -output BENCH.md
func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	comparisons := generateComparisons(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Generated %d comparisons\n", len(comparisons))
	}

	report := generateMarkdownReport(comparisons, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkCompareMallocFree/spanalloc/256B-8    1000000    45.1 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+B/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// go test -json wraps each line in an event.
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err == nil {
			if output, ok := event["Output"].(string); ok {
				line = output
			}
		}

		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		name := matches[1]
		operation, impl, size := splitName(name)
		if operation == "" {
			continue
		}

		iterations, _ := strconv.Atoi(matches[2])
		nsPerOp, _ := strconv.ParseFloat(matches[3], 64)
		var bytesPerOp, allocsPerOp int64
		if matches[4] != "" {
			bytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			allocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		results = append(results, BenchmarkResult{
			Name:        name,
			Operation:   operation,
			Size:        size,
			Impl:        impl,
			Iterations:  iterations,
			NsPerOp:     nsPerOp,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	return results
}

// splitName breaks Benchmark<Op>/<impl>/<size>-<procs> apart. Benchmarks
// without an implementation element are attributed to the allocator.
func splitName(name string) (operation, impl, size string) {
	parts := strings.Split(strings.TrimPrefix(name, "Benchmark"), "/")
	operation = strings.TrimPrefix(parts[0], "Compare")

	last := parts[len(parts)-1]
	if i := strings.LastIndex(last, "-"); i > 0 {
		if _, err := strconv.Atoi(last[i+1:]); err == nil {
			last = last[:i]
		}
	}
	if len(parts) == 1 {
		// No sub-benchmarks: strip the -procs suffix from the operation.
		return last, implSpan, ""
	}

	parts[len(parts)-1] = last
	switch parts[1] {
	case implSpan, implGoHeap:
		impl = parts[1]
		size = strings.Join(parts[2:], "/")
	default:
		impl = implSpan
		size = strings.Join(parts[1:], "/")
	}
	return operation, impl, size
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	type key struct {
		operation string
		size      string
	}

	grouped := make(map[key]map[string]BenchmarkResult)
	for _, result := range results {
		k := key{result.Operation, result.Size}
		if grouped[k] == nil {
			grouped[k] = make(map[string]BenchmarkResult)
		}
		grouped[k][result.Impl] = result
	}

	var comparisons []ComparisonResult
	for k, impls := range grouped {
		span, hasSpan := impls[implSpan]
		goheap, hasGoHeap := impls[implGoHeap]
		if !hasSpan {
			continue
		}

		comp := ComparisonResult{
			Operation:  k.operation,
			Size:       k.size,
			SpanNs:     span.NsPerOp,
			SpanMem:    span.BytesPerOp,
			SpanAllocs: span.AllocsPerOp,
			SpanOnly:   !hasGoHeap,
		}
		if hasGoHeap {
			comp.GoHeapNs = goheap.NsPerOp
			comp.GoHeapMem = goheap.BytesPerOp
			comp.GoHeapAllocs = goheap.AllocsPerOp
			if span.NsPerOp > 0 {
				comp.Speedup = goheap.NsPerOp / span.NsPerOp
			}
		}
		comparisons = append(comparisons, comp)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].Operation != comparisons[j].Operation {
			return comparisons[i].Operation < comparisons[j].Operation
		}
		return sizeOrder(comparisons[i].Size) < sizeOrder(comparisons[j].Size)
	})

	return comparisons
}

// sizeOrder turns "256B" or "16384B" into a sort key; other labels sort last.
func sizeOrder(size string) int64 {
	n, err := strconv.ParseInt(strings.TrimSuffix(size, "B"), 10, 64)
	if err != nil {
		return 1 << 62
	}
	return n
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Allocator Benchmark Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format("2006-01-02 15:04:05")))

	spanFaster, goheapFaster, spanOnly := 0, 0, 0
	totalSpeedup := 0.0
	for _, comp := range comparisons {
		switch {
		case comp.SpanOnly:
			spanOnly++
			continue
		case comp.Speedup > 1.0:
			spanFaster++
		case comp.Speedup < 1.0:
			goheapFaster++
		}
		totalSpeedup += comp.Speedup
	}

	paired := len(comparisons) - spanOnly
	avgSpeedup := 0.0
	if paired > 0 {
		avgSpeedup = totalSpeedup / float64(paired)
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total benchmarks**: %d\n", len(comparisons)))
	sb.WriteString(fmt.Sprintf("- **Comparable** (both implementations): %d\n", paired))
	sb.WriteString(fmt.Sprintf("  - spanalloc faster: %d (%s)\n", spanFaster, percent(spanFaster, paired)))
	sb.WriteString(fmt.Sprintf("  - Go heap faster: %d (%s)\n", goheapFaster, percent(goheapFaster, paired)))
	sb.WriteString(fmt.Sprintf("  - Average speedup: **%.2fx**\n", avgSpeedup))
	sb.WriteString(fmt.Sprintf("- **spanalloc only**: %d\n\n", spanOnly))

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Operation | Size | spanalloc (ns/op) | Go heap (ns/op) | Speedup | Memory (B/op) | Allocs |\n")
	sb.WriteString("|-----------|------|-------------------|-----------------|---------|---------------|--------|\n")

	for _, comp := range comparisons {
		if comp.SpanOnly {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | *N/A* | *spanalloc only* | %s | %s |\n",
				comp.Operation,
				comp.Size,
				formatNumber(comp.SpanNs),
				formatBytes(comp.SpanMem),
				formatNumber(float64(comp.SpanAllocs)),
			))
			continue
		}

		indicator, style := "✓", "**"
		if comp.Speedup < 1.0 {
			indicator, style = "✗", ""
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s%.2fx%s %s | %s vs %s | %s vs %s |\n",
			comp.Operation,
			comp.Size,
			formatNumber(comp.SpanNs),
			formatNumber(comp.GoHeapNs),
			style,
			comp.Speedup,
			style,
			indicator,
			formatBytes(comp.SpanMem),
			formatBytes(comp.GoHeapMem),
			formatNumber(float64(comp.SpanAllocs)),
			formatNumber(float64(comp.GoHeapAllocs)),
		))
	}
	sb.WriteString("\n")

	sb.WriteString("## By Size Tier\n\n")
	tiers := categorizeSizes(comparisons)
	for _, tier := range []string{"Small (<= 2048B)", "Large (> 2048B)", "Other"} {
		comps := tiers[tier]
		sum, count := 0.0, 0
		for _, comp := range comps {
			if !comp.SpanOnly {
				sum += comp.Speedup
				count++
			}
		}
		if count == 0 {
			continue
		}
		avg := sum / float64(count)
		status := "✓"
		if avg < 1.0 {
			status = "✗"
		}
		sb.WriteString(fmt.Sprintf("- %s **%s**: %.2fx average speedup\n", status, tier, avg))
	}
	sb.WriteString("\n")

	sb.WriteString("## Notes\n\n")
	sb.WriteString("- **Speedup > 1.0**: spanalloc is faster ✓\n")
	sb.WriteString("- **Speedup < 1.0**: the Go heap is faster ✗\n")
	sb.WriteString("- **Memory / Allocs**: Go heap usage per op; spanalloc blocks live off-heap\n")
	sb.WriteString("- Go heap timings exclude deferred GC work that spanalloc does not incur\n")

	return sb.String()
}

func categorizeSizes(comparisons []ComparisonResult) map[string][]ComparisonResult {
	tiers := make(map[string][]ComparisonResult)
	for _, comp := range comparisons {
		tier := "Other"
		if n := sizeOrder(comp.Size); n < 1<<62 {
			tier = "Large (> 2048B)"
			if n <= 2048 {
				tier = "Small (<= 2048B)"
			}
		}
		tiers[tier] = append(tiers[tier], comp)
	}
	return tiers
}

func percent(n, of int) string {
	if of == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(of)*100)
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}

func formatBytes(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%.2fMB", float64(b)/(1024*1024))
	} else if b >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(b)/1024)
	}
	return fmt.Sprintf("%dB", b)
}
