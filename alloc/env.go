package alloc

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joshuapare/spanalloc/internal/diag"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvPageSize        = "SPANALLOC_PAGE_SIZE"
	EnvMaxPages        = "SPANALLOC_MAX_PAGES"
	EnvIndex           = "SPANALLOC_INDEX"
	EnvCheckDoubleFree = "SPANALLOC_CHECK_DOUBLE_FREE"
	EnvLog             = diag.EnvLog
)

// OptionsFromEnv builds options from SPANALLOC_* environment variables. Unset
// variables contribute nothing; malformed ones are reported.
func OptionsFromEnv() ([]Option, error) {
	var opts []Option

	if v, ok := lookupEnv(EnvPageSize); ok {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %w", ErrBadOption, EnvPageSize, v, err)
		}
		opts = append(opts, WithPageSize(uintptr(n)))
	}
	if v, ok := lookupEnv(EnvMaxPages); ok {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %w", ErrBadOption, EnvMaxPages, v, err)
		}
		opts = append(opts, WithMaxPages(uintptr(n)))
	}
	if v, ok := lookupEnv(EnvIndex); ok {
		kind := IndexKind(strings.ToLower(v))
		if kind != IndexRadix && kind != IndexLinear {
			return nil, fmt.Errorf("%w: %s=%q", ErrBadOption, EnvIndex, v)
		}
		opts = append(opts, WithIndex(kind))
	}
	if v, ok := lookupEnv(EnvCheckDoubleFree); ok {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %w", ErrBadOption, EnvCheckDoubleFree, v, err)
		}
		if on {
			opts = append(opts, WithDoubleFreeCheck())
		}
	}
	if _, ok := lookupEnv(EnvLog); ok {
		opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	return opts, nil
}

func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}
