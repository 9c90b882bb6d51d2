// Package sizeclass maps requested byte sizes onto the fixed set of small-object
// size classes and decides how many pages back a span of each class.
//
// Classes come from three contiguous tiers, each a run of equally spaced class
// sizes. The default configuration is:
//
//	Tier    Granularity  Classes  Covers
//	tiny         8          16       1 -  128 bytes
//	small       16          32     129 -  640 bytes
//	medium      32          44     641 - 2048 bytes
//
// for 92 classes and a small-object threshold of 2048 bytes. Anything larger goes
// to the page heap as a whole span. The values are tuning constants and are not
// stable across versions.
package sizeclass

import (
	"errors"
	"fmt"
)

// ErrBadConfig indicates a tier layout that cannot form contiguous classes.
var ErrBadConfig = errors.New("sizeclass: invalid configuration")

// Config defines the three tiers of the size-class table.
type Config struct {
	// Name for this configuration (for benchmarking and the CLI)
	Name string

	TinySize   uintptr // Granularity of the tiny tier
	TinyNum    int     // Number of tiny classes
	SmallSize  uintptr // Granularity of the small tier
	SmallNum   int     // Number of small classes
	MediumSize uintptr // Granularity of the medium tier
	MediumNum  int     // Number of medium classes

	// Target is the number of objects a freshly carved span should hold, roughly.
	Target uintptr
}

// Predefined configurations.
var (
	// Default: 8-byte steps to 128, 16-byte steps to 640, 32-byte steps to 2048.
	ConfigDefault = Config{
		Name:       "Default",
		TinySize:   8,
		TinyNum:    16,
		SmallSize:  16,
		SmallNum:   32,
		MediumSize: 32,
		MediumNum:  44,
		Target:     128,
	}

	// Fine: tighter packing, more classes, threshold 4096.
	ConfigFine = Config{
		Name:       "Fine",
		TinySize:   8,
		TinyNum:    32,
		SmallSize:  16,
		SmallNum:   48,
		MediumSize: 64,
		MediumNum:  48,
		Target:     128,
	}

	// Coarse: fewer classes, faster carving, more internal fragmentation.
	ConfigCoarse = Config{
		Name:       "Coarse",
		TinySize:   16,
		TinyNum:    8,
		SmallSize:  32,
		SmallNum:   12,
		MediumSize: 128,
		MediumNum:  12,
		Target:     64,
	}

	// DefaultConfig is used when none is specified.
	DefaultConfig = ConfigDefault
)

// Validate checks that the tiers chain into contiguous, word-aligned classes.
func (c Config) Validate() error {
	switch {
	case c.TinySize == 0 || c.SmallSize == 0 || c.MediumSize == 0:
		return fmt.Errorf("%w: zero granularity", ErrBadConfig)
	case c.TinyNum <= 0 || c.SmallNum <= 0 || c.MediumNum <= 0:
		return fmt.Errorf("%w: every tier needs at least one class", ErrBadConfig)
	case c.TinySize%8 != 0 || c.SmallSize%8 != 0 || c.MediumSize%8 != 0:
		return fmt.Errorf("%w: granularity must be a multiple of 8", ErrBadConfig)
	case c.TinySize > c.SmallSize || c.SmallSize > c.MediumSize:
		return fmt.Errorf("%w: tiers must not get finer", ErrBadConfig)
	case c.tinyCap()%c.SmallSize != 0:
		return fmt.Errorf("%w: tiny tier capacity %d not a multiple of %d", ErrBadConfig, c.tinyCap(), c.SmallSize)
	case c.smallCap()%c.MediumSize != 0:
		return fmt.Errorf("%w: small tier capacity %d not a multiple of %d", ErrBadConfig, c.smallCap(), c.MediumSize)
	case c.Target == 0:
		return fmt.Errorf("%w: zero target object count", ErrBadConfig)
	}
	return nil
}

// tinyCap is the largest size served by the tiny tier.
func (c Config) tinyCap() uintptr { return c.TinySize * uintptr(c.TinyNum) }

// smallCap is the largest size served by the tiny and small tiers together.
func (c Config) smallCap() uintptr { return c.tinyCap() + c.SmallSize*uintptr(c.SmallNum) }

// Catalog answers size-class questions for one Config. It is immutable and safe
// for concurrent use.
type Catalog struct {
	config     Config
	tinyCap    uintptr
	smallCap   uintptr
	threshold  uintptr
	numClasses int
}

// New builds a catalog from cfg.
func New(cfg Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Catalog{
		config:     cfg,
		tinyCap:    cfg.tinyCap(),
		smallCap:   cfg.smallCap(),
		threshold:  cfg.smallCap() + cfg.MediumSize*uintptr(cfg.MediumNum),
		numClasses: cfg.TinyNum + cfg.SmallNum + cfg.MediumNum,
	}, nil
}

// MustNew is New for package-level tables built from predefined configs.
func MustNew(cfg Config) *Catalog {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Default is the catalog for DefaultConfig.
var Default = MustNew(DefaultConfig)

// Config returns the configuration the catalog was built from.
func (c *Catalog) Config() Config { return c.config }

// Threshold is the largest size served as a small object.
func (c *Catalog) Threshold() uintptr { return c.threshold }

// NumClasses returns the number of size classes.
func (c *Catalog) NumClasses() int { return c.numClasses }

// UnitSize returns the granularity of the tiny tier, the class size of class 0.
func (c *Catalog) UnitSize() uintptr { return c.config.TinySize }

// IsSmall reports whether size is served from the small-object lists.
func (c *Catalog) IsSmall(size uintptr) bool {
	return size > 0 && size <= c.threshold
}

// ClassForSize returns the index of the smallest class whose class size is >= size.
// Returns -1 for 0 and for sizes above Threshold.
func (c *Catalog) ClassForSize(size uintptr) int {
	if !c.IsSmall(size) {
		return -1
	}
	cfg := &c.config
	if size <= c.tinyCap {
		return int((size - 1) / cfg.TinySize)
	}
	if size <= c.smallCap {
		return cfg.TinyNum + int((size-c.tinyCap-1)/cfg.SmallSize)
	}
	return cfg.TinyNum + cfg.SmallNum + int((size-c.smallCap-1)/cfg.MediumSize)
}

// ClassSizeForSize returns the rounded allocation size for size, or 0 when size
// is not a small-object size.
func (c *Catalog) ClassSizeForSize(size uintptr) uintptr {
	if !c.IsSmall(size) {
		return 0
	}
	g := c.granularity(size)
	return ((size-1)/g + 1) * g
}

// ClassSize returns the class size of class, or 0 if class is out of range.
func (c *Catalog) ClassSize(class int) uintptr {
	cfg := &c.config
	switch {
	case class < 0 || class >= c.numClasses:
		return 0
	case class < cfg.TinyNum:
		return uintptr(class+1) * cfg.TinySize
	case class < cfg.TinyNum+cfg.SmallNum:
		return c.tinyCap + uintptr(class-cfg.TinyNum+1)*cfg.SmallSize
	default:
		return c.smallCap + uintptr(class-cfg.TinyNum-cfg.SmallNum+1)*cfg.MediumSize
	}
}

// SpanPagesForClassSize returns how many pages a span needs to hold roughly
// Target objects of classSize bytes.
func (c *Catalog) SpanPagesForClassSize(classSize, pageSize uintptr) uintptr {
	return (classSize*c.config.Target-1)/pageSize + 1
}

// Class describes one row of the table.
type Class struct {
	Index     int
	Size      uintptr
	SpanPages uintptr
	Objects   uintptr // objects per carved span, after the span header
}

// Classes lists every class for the given page size and span header size.
func (c *Catalog) Classes(pageSize, headerSize uintptr) []Class {
	out := make([]Class, 0, c.numClasses)
	for i := range c.numClasses {
		size := c.ClassSize(i)
		pages := c.SpanPagesForClassSize(size, pageSize)
		out = append(out, Class{
			Index:     i,
			Size:      size,
			SpanPages: pages,
			Objects:   (pages*pageSize - headerSize) / size,
		})
	}
	return out
}

// String returns the configuration name.
func (c *Catalog) String() string {
	return c.config.Name
}

func (c *Catalog) granularity(size uintptr) uintptr {
	switch {
	case size <= c.tinyCap:
		return c.config.TinySize
	case size <= c.smallCap:
		return c.config.SmallSize
	default:
		return c.config.MediumSize
	}
}
