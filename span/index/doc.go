// Package index maps page-aligned addresses to span identifiers and holds the
// per-span metadata table.
//
// # Overview
//
// Every page the allocator obtains from the OS is registered here under the
// identifier of the span it belongs to. The pages of one span are registered
// together, in ascending address order, and spans never interleave. That is what
// lets FirstPage recover the start of a span from any page inside it by walking
// backwards until the neighbouring page belongs to a different span.
//
// # Implementations
//
// Radix: the default. Page numbers are split into a root key and a leaf slot;
// leaves are fixed arrays of 1024 identifiers allocated on first use. Lookup is
// O(1) and address range is bounded only by the configured page budget.
//
// Table: a fixed-capacity linear table of (address, identifier) entries. Lookup
// is an O(n) scan. Freed runs of entries are reused before the table grows.
// Kept for small deployments and as a reference for the contract above.
//
// Both enforce a page budget (DefaultMaxPages, 4 GiB with 4 KiB pages). Running
// past it is a resource-exhaustion condition reported as ErrFull.
//
// # Thread Safety
//
// Nothing in this package is safe for concurrent use. The alloc package
// serialises access.
package index
