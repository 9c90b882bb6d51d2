package verify

import (
	"errors"
	"fmt"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/span/central"
	"github.com/joshuapare/spanalloc/span/pageheap"
	"github.com/joshuapare/spanalloc/span/pagesource"
)

// ValidationError represents an invariant violation.
type ValidationError struct {
	Type    string
	Message string
	Addr    uintptr
	Details map[string]interface{}
}

func (e *ValidationError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s at %#x: %s", e.Type, e.Addr, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AllInvariants runs every check and returns all violations joined.
func AllInvariants(src *pagesource.Source, heap *pageheap.Heap, lists *central.Lists) error {
	return errors.Join(
		Spans(src, lists),
		PageHeap(heap),
		FreeLists(src, lists),
	)
}

// Spans checks every span obtained by src against the index and metadata.
func Spans(src *pagesource.Source, lists *central.Lists) error {
	idx, metas, ps := src.Index(), src.Metas(), src.PageSize()
	spans := src.Spans()

	var pages uintptr
	for _, sp := range spans {
		pages += sp.Pages

		id, ok := idx.Lookup(sp.Addr)
		if !ok || id != sp.ID {
			return &ValidationError{
				Type:    "Span",
				Message: "first page not registered under the span's ID",
				Addr:    sp.Addr,
				Details: map[string]interface{}{"id": sp.ID, "found": id},
			}
		}
		meta := metas.Get(id)
		if meta == nil || meta.Pages != sp.Pages || meta.Start != sp.Addr {
			return &ValidationError{
				Type:    "Span",
				Message: "metadata disagrees with the span",
				Addr:    sp.Addr,
				Details: map[string]interface{}{"id": id, "pages": sp.Pages, "meta": meta},
			}
		}

		last := sp.Addr + (sp.Pages-1)*ps
		if first, ok := idx.FirstPage(last); !ok || first != sp.Addr {
			return &ValidationError{
				Type:    "Span",
				Message: fmt.Sprintf("last page resolves to %#x", first),
				Addr:    sp.Addr,
			}
		}
		if next, ok := idx.Lookup(last + ps); ok && next == id {
			return &ValidationError{
				Type:    "Span",
				Message: "page after the span carries its ID",
				Addr:    sp.Addr,
			}
		}

		if meta.Small {
			if _, _, err := lists.SpanHeader(sp.Addr + central.HeaderSize); err != nil {
				return &ValidationError{
					Type:    "Span",
					Message: err.Error(),
					Addr:    sp.Addr,
					Details: map[string]interface{}{"header": central.ReadHeader(sp.Addr)},
				}
			}
		}
	}

	if pages != idx.Len() {
		return &ValidationError{
			Type:    "Span",
			Message: fmt.Sprintf("index holds %d pages, spans cover %d", idx.Len(), pages),
		}
	}
	if metas.Len() != len(spans) {
		return &ValidationError{
			Type:    "Span",
			Message: fmt.Sprintf("%d span IDs minted for %d spans", metas.Len(), len(spans)),
		}
	}
	return nil
}

// PageHeap checks every free span on heap.
func PageHeap(heap *pageheap.Heap) error {
	src := heap.Source()
	idx, metas := src.Index(), src.Metas()

	for n := 1; n < heap.BucketCount(); n++ {
		pages := uintptr(n)
		want := heap.FreeSpans(pages)
		count := 0
		var verr *ValidationError

		heap.Each(pages, func(addr uintptr) bool {
			count++
			if count > want {
				verr = &ValidationError{
					Type:    "PageHeap",
					Message: fmt.Sprintf("bucket %d longer than its count %d", pages, want),
					Addr:    addr,
				}
				return false
			}
			id, ok := idx.Lookup(addr)
			if !ok {
				verr = &ValidationError{Type: "PageHeap", Message: "free span not registered", Addr: addr}
				return false
			}
			meta := metas.Get(id)
			switch {
			case meta.Start != addr:
				verr = &ValidationError{Type: "PageHeap", Message: "free span does not start a span", Addr: addr}
			case meta.Small:
				verr = &ValidationError{Type: "PageHeap", Message: "small-object span on the page heap", Addr: addr}
			case meta.Pages != pages:
				verr = &ValidationError{
					Type:    "PageHeap",
					Message: fmt.Sprintf("%d-page span in bucket %d", meta.Pages, pages),
					Addr:    addr,
				}
			}
			return verr == nil
		})

		if verr != nil {
			return verr
		}
		if count != want {
			return &ValidationError{
				Type:    "PageHeap",
				Message: fmt.Sprintf("bucket %d holds %d spans, count is %d", pages, count, want),
			}
		}
	}
	return nil
}

// FreeLists checks every object on the small-object free lists.
func FreeLists(src *pagesource.Source, lists *central.Lists) error {
	idx, metas, ps := src.Index(), src.Metas(), src.PageSize()
	cat := lists.Catalog()

	for class := range cat.NumClasses() {
		want := lists.FreeObjects(class)
		classSize := cat.ClassSize(class)
		count := 0
		var verr *ValidationError

		lists.Each(class, func(ptr uintptr) bool {
			count++
			if count > want {
				verr = &ValidationError{
					Type:    "FreeList",
					Message: fmt.Sprintf("class %d list longer than its count %d", class, want),
					Addr:    ptr,
				}
				return false
			}
			h, first, err := lists.SpanHeader(ptr)
			if err != nil {
				verr = &ValidationError{Type: "FreeList", Message: err.Error(), Addr: ptr}
				return false
			}
			id, _ := idx.Lookup(first)
			meta := metas.Get(id)
			switch {
			case !meta.Small:
				verr = &ValidationError{Type: "FreeList", Message: "object in a large span", Addr: ptr}
			case h.Class != uintptr(class):
				verr = &ValidationError{
					Type:    "FreeList",
					Message: fmt.Sprintf("object of class %d on list %d", h.Class, class),
					Addr:    ptr,
				}
			case ptr < first+central.HeaderSize || (ptr-first-central.HeaderSize)%classSize != 0:
				verr = &ValidationError{Type: "FreeList", Message: "object not on a boundary", Addr: ptr}
			default:
				if _, err := buf.CheckRange(first, meta.Pages*ps, ptr, classSize); err != nil {
					verr = &ValidationError{Type: "FreeList", Message: "object outside its span: " + err.Error(), Addr: ptr}
				}
			}
			return verr == nil
		})

		if verr != nil {
			verr.Details = map[string]interface{}{"class": class, "class_size": classSize}
			return verr
		}
		if count != want {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("class %d list holds %d objects, count is %d", class, count, want),
			}
		}
	}
	return nil
}
