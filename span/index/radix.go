package index

import "math/bits"

const (
	leafBits = 10
	leafLen  = 1 << leafBits
	leafMask = leafLen - 1
)

type leaf struct {
	ids  [leafLen]SpanID
	live int
}

// Radix is a two-level page-number index: the high bits of a page number
// select a leaf, the low leafBits select the slot inside it.
type Radix struct {
	shift uint
	root  map[uintptr]*leaf
	pages uintptr
	max   uintptr
}

// NewRadix creates a radix index with a budget of maxPages pages.
func NewRadix(pageSize, maxPages uintptr) (*Radix, error) {
	if err := checkPageSize(pageSize); err != nil {
		return nil, err
	}
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	return &Radix{
		shift: uint(bits.TrailingZeros64(uint64(pageSize))),
		root:  make(map[uintptr]*leaf),
		max:   maxPages,
	}, nil
}

// Reserve implements Index.
func (r *Radix) Reserve(pages uintptr) (Slot, error) {
	if pages == 0 || r.pages+pages > r.max || r.pages+pages < r.pages {
		return Slot{}, ErrFull
	}
	return Slot{pos: -1, pages: pages}, nil
}

// Commit implements Index.
func (r *Radix) Commit(slot Slot, addr uintptr, id SpanID) {
	pn := addr >> r.shift
	for i := uintptr(0); i < slot.pages; i++ {
		r.set(pn+i, id)
	}
}

// Unregister implements Index.
func (r *Radix) Unregister(addr, pages uintptr) {
	pn := addr >> r.shift
	for i := uintptr(0); i < pages; i++ {
		r.set(pn+i, 0)
	}
}

func (r *Radix) set(pn uintptr, id SpanID) {
	key := pn >> leafBits
	l := r.root[key]
	if l == nil {
		if id == 0 {
			return
		}
		l = new(leaf)
		r.root[key] = l
	}
	slot := &l.ids[pn&leafMask]
	switch {
	case *slot == 0 && id != 0:
		l.live++
		r.pages++
	case *slot != 0 && id == 0:
		l.live--
		r.pages--
	}
	*slot = id
	if l.live == 0 {
		delete(r.root, key)
	}
}

func (r *Radix) get(pn uintptr) SpanID {
	l := r.root[pn>>leafBits]
	if l == nil {
		return 0
	}
	return l.ids[pn&leafMask]
}

// Lookup implements Index.
func (r *Radix) Lookup(page uintptr) (SpanID, bool) {
	if page&(1<<r.shift-1) != 0 {
		return 0, false
	}
	id := r.get(page >> r.shift)
	return id, id != 0
}

// FirstPage implements Index.
func (r *Radix) FirstPage(page uintptr) (uintptr, bool) {
	id, ok := r.Lookup(page)
	if !ok {
		return 0, false
	}
	pn := page >> r.shift
	for pn > 0 && r.get(pn-1) == id {
		pn--
	}
	return pn << r.shift, true
}

// Len implements Index.
func (r *Radix) Len() uintptr { return r.pages }

// Cap implements Index.
func (r *Radix) Cap() uintptr { return r.max }
