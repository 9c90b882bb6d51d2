package index

// Meta is the metadata of one span.
type Meta struct {
	Pages uintptr // > 0 for every live span
	Small bool    // carved into small objects; set once at carve time
	Start uintptr // first page, for diagnostics
}

// MetaTable holds span metadata indexed by SpanID and mints identifiers.
// Identifiers are handed out in increasing order and never recycled.
type MetaTable struct {
	metas []Meta // metas[0] is the unused zero identifier
	limit SpanID
}

// NewMetaTable creates an empty table.
func NewMetaTable() *MetaTable {
	return &MetaTable{
		metas: make([]Meta, 1, 256),
		limit: MaxSpanID,
	}
}

// SetLimit caps the identifiers the table will mint.
func (t *MetaTable) SetLimit(limit SpanID) { t.limit = limit }

// Exhausted reports whether Mint would fail.
func (t *MetaTable) Exhausted() bool {
	return SpanID(len(t.metas)-1) >= t.limit
}

// Mint assigns the next identifier to m.
func (t *MetaTable) Mint(m Meta) (SpanID, error) {
	if t.Exhausted() {
		return 0, ErrSpanIDsExhausted
	}
	t.metas = append(t.metas, m)
	return SpanID(len(t.metas) - 1), nil
}

// Get returns the metadata of id, or nil for the zero or an unknown identifier.
func (t *MetaTable) Get(id SpanID) *Meta {
	if id == 0 || int(id) >= len(t.metas) {
		return nil
	}
	return &t.metas[id]
}

// Len returns the number of identifiers minted so far.
func (t *MetaTable) Len() int { return len(t.metas) - 1 }
