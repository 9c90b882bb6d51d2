// Package verify checks the structural invariants of the allocator engine.
//
// It walks every span the page source has obtained, every free span on the
// page heap and every object on the small-object free lists, and checks them
// against the span index and metadata table. It is meant for tests, debugging
// tools and `spanctl run`; a walk costs time proportional to the number of
// free objects.
//
// # Quick Start
//
//	if err := verify.AllInvariants(src, heap, lists); err != nil {
//	    fmt.Printf("heap corrupt: %v\n", err)
//	}
//
// # ValidationError
//
// Every check returns a *ValidationError on failure:
//
//	type ValidationError struct {
//	    Type    string                 // "Span", "PageHeap" or "FreeList"
//	    Message string                 // Human-readable description
//	    Addr    uintptr                // Offending address (0 if N/A)
//	    Details map[string]interface{} // Additional context
//	}
//
// # Checks
//
// Spans:
//   - Every span is registered under its own ID on its first and last page
//   - Metadata agrees with the span on page count and start address
//   - The page after a span does not carry its ID
//   - Small-object spans carry a valid header
//   - The index holds exactly the pages of the spans
//
// PageHeap:
//   - Every free span starts a registered large span of the bucket's page count
//   - Bucket lengths match the heap's counts (a longer list means a cycle)
//
// FreeLists:
//   - Every free object lies on an object boundary inside a small-object span
//     of its class
//   - List lengths match the per-class counts
package verify
