package index

// entry is one page of the linear table. id == 0 marks an unused slot.
type entry struct {
	addr uintptr
	id   SpanID
}

// Table is the fixed-capacity linear index. Entries for one span are
// contiguous; unused runs left by Unregister are reused first.
type Table struct {
	pageSize uintptr
	entries  []entry // grows up to max entries, never shrinks
	max      int
	used     uintptr
}

// NewTable creates a linear table holding at most maxPages entries.
func NewTable(pageSize, maxPages uintptr) (*Table, error) {
	if err := checkPageSize(pageSize); err != nil {
		return nil, err
	}
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	return &Table{
		pageSize: pageSize,
		entries:  make([]entry, 0, min(maxPages, 4096)),
		max:      int(maxPages),
	}, nil
}

// Reserve implements Index.
func (t *Table) Reserve(pages uintptr) (Slot, error) {
	n := int(pages)
	if n <= 0 {
		return Slot{}, ErrFull
	}
	if pos := t.freeRun(n); pos >= 0 {
		return Slot{pos: pos, pages: pages}, nil
	}
	if len(t.entries)+n > t.max {
		return Slot{}, ErrFull
	}
	return Slot{pos: len(t.entries), pages: pages}, nil
}

// freeRun returns the start of the first run of n unused entries, or -1.
func (t *Table) freeRun(n int) int {
	run := 0
	for i := range t.entries {
		if t.entries[i].id != 0 {
			run = 0
			continue
		}
		run++
		if run == n {
			return i - n + 1
		}
	}
	return -1
}

// Commit implements Index.
func (t *Table) Commit(slot Slot, addr uintptr, id SpanID) {
	n := int(slot.pages)
	if end := slot.pos + n; end > len(t.entries) {
		t.entries = append(t.entries, make([]entry, end-len(t.entries))...)
	}
	for i := range n {
		t.entries[slot.pos+i] = entry{addr: addr + uintptr(i)*t.pageSize, id: id}
	}
	t.used += slot.pages
}

// Unregister implements Index.
func (t *Table) Unregister(addr, pages uintptr) {
	i := t.find(addr)
	if i < 0 {
		return
	}
	for n := uintptr(0); n < pages && i < len(t.entries); n, i = n+1, i+1 {
		if t.entries[i].id != 0 {
			t.used--
		}
		t.entries[i] = entry{}
	}
}

// Lookup implements Index.
func (t *Table) Lookup(page uintptr) (SpanID, bool) {
	i := t.find(page)
	if i < 0 {
		return 0, false
	}
	return t.entries[i].id, true
}

// FirstPage implements Index.
func (t *Table) FirstPage(page uintptr) (uintptr, bool) {
	i := t.find(page)
	if i < 0 {
		return 0, false
	}
	id := t.entries[i].id
	for i > 0 && t.entries[i-1].id == id {
		i--
	}
	return t.entries[i].addr, true
}

// find scans for the live entry of page.
func (t *Table) find(page uintptr) int {
	for i := range t.entries {
		if t.entries[i].id != 0 && t.entries[i].addr == page {
			return i
		}
	}
	return -1
}

// Len implements Index.
func (t *Table) Len() uintptr { return t.used }

// Cap implements Index.
func (t *Table) Cap() uintptr { return uintptr(t.max) }

// Entries returns the number of table slots in use or left unused by
// Unregister, i.e. the high-water mark of the table.
func (t *Table) Entries() int { return len(t.entries) }
