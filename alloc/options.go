package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/spanalloc/internal/buf"
	"github.com/joshuapare/spanalloc/internal/sysmem"
	"github.com/joshuapare/spanalloc/span/index"
	"github.com/joshuapare/spanalloc/span/sizeclass"
)

// IndexKind selects the span index implementation.
type IndexKind = index.Kind

const (
	// IndexRadix is a two-level page-number table. Lookups cost two loads
	// regardless of how many spans are live.
	IndexRadix = index.KindRadix

	// IndexLinear is a fixed-capacity table of (page, span) entries searched
	// linearly. Lookups cost O(registered pages).
	IndexLinear = index.KindLinear
)

// Options configures an Allocator.
type Options struct {
	// PageSize is the allocation page size. It must be a power of two and a
	// multiple of the OS page size.
	// Default: the OS page size
	PageSize uintptr

	// MaxPages bounds the pages the span index will register.
	// Default: index.DefaultMaxPages
	MaxPages uintptr

	// Index selects the span index implementation.
	// Default: IndexRadix
	Index IndexKind

	// SizeClasses defines the small-object classes.
	// Default: sizeclass.DefaultConfig
	SizeClasses sizeclass.Config

	// Fallback serves every request once EnterFallback is called.
	// Default: a GoHeap
	Fallback Fallback

	// Logger receives debug events. Default: the package logger from
	// internal/diag, which discards output unless SPANALLOC_LOG is set.
	Logger *slog.Logger

	// FatalHandler is called with every invariant violation. If it returns,
	// the entry point panics with the *FatalError.
	// Default: write the error to stderr and exit with status 1
	FatalHandler func(*FatalError)

	// CheckDoubleFree verifies on every release that the block is not already
	// free. The check walks the class free list.
	// Default: false
	CheckDoubleFree bool

	// Unlocked disables the allocator mutex.
	// Default: false
	Unlocked bool
}

// DefaultOptions returns the options used when New is called without any.
func DefaultOptions() *Options {
	return &Options{
		PageSize:    sysmem.PageSize(),
		MaxPages:    index.DefaultMaxPages,
		Index:       IndexRadix,
		SizeClasses: sizeclass.DefaultConfig,
	}
}

// Option modifies Options.
type Option func(*Options)

// WithPageSize sets the allocation page size.
func WithPageSize(n uintptr) Option {
	return func(o *Options) { o.PageSize = n }
}

// WithMaxPages bounds the number of pages the allocator will ever map.
func WithMaxPages(n uintptr) Option {
	return func(o *Options) { o.MaxPages = n }
}

// WithIndex selects the span index implementation.
func WithIndex(kind IndexKind) Option {
	return func(o *Options) { o.Index = kind }
}

// WithSizeClasses replaces the size-class configuration.
func WithSizeClasses(cfg sizeclass.Config) Option {
	return func(o *Options) { o.SizeClasses = cfg }
}

// WithFallback sets the allocator used after EnterFallback.
func WithFallback(f Fallback) Option {
	return func(o *Options) { o.Fallback = f }
}

// WithLogger sets the logger for allocation events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithFatalHandler replaces the fatal-error handler.
func WithFatalHandler(fn func(*FatalError)) Option {
	return func(o *Options) { o.FatalHandler = fn }
}

// WithDoubleFreeCheck enables double-release and misalignment detection.
func WithDoubleFreeCheck() Option {
	return func(o *Options) { o.CheckDoubleFree = true }
}

// WithoutLocking removes the allocator mutex.
func WithoutLocking() Option {
	return func(o *Options) { o.Unlocked = true }
}

func (o *Options) validate() (*sizeclass.Catalog, error) {
	osPage := sysmem.PageSize()
	if !buf.IsPowerOfTwo(o.PageSize) || o.PageSize < osPage {
		return nil, fmt.Errorf("%w: page size %d must be a power of two >= %d", ErrBadOption, o.PageSize, osPage)
	}
	if o.MaxPages == 0 {
		return nil, fmt.Errorf("%w: max pages must be positive", ErrBadOption)
	}
	switch o.Index {
	case IndexRadix, IndexLinear:
	default:
		return nil, fmt.Errorf("%w: unknown index %q", ErrBadOption, o.Index)
	}
	cat, err := sizeclass.New(o.SizeClasses)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadOption, err)
	}
	return cat, nil
}
