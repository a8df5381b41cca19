package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/layout"
)

// ModuleName is the import module guests link against.
const ModuleName = "wasm-bridge:model"

// Guest exports the host looks for.
const (
	ExportMemory          = "memory"
	ExportAlloc           = "alloc"
	ExportOnDataChanged   = "on-data-changed"
	ExportOnUpdateRequest = "on-update-request"
)

const defaultScratchSize = 256

// Config holds configuration for host creation
type Config struct {
	// Logger receives host diagnostics. Defaults to Logger().
	Logger *zap.Logger

	// FrameworkVersion selects the layout profile mirror types are verified
	// against. Empty means the newest profile.
	FrameworkVersion string

	// MemoryLimitPages sets the maximum memory per guest in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// ScratchOffset is guest memory the host may use for override arguments
	// when the guest exports no allocator. 0 disables the fallback.
	ScratchOffset uint32

	// ScratchSize is the size of the scratch region. 0 means 256 bytes.
	ScratchSize uint32
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = Logger()
	}
	if c.ScratchOffset != 0 {
		aligned := layout.AlignTo(c.ScratchOffset, 8)
		if c.ScratchSize == 0 {
			c.ScratchSize = defaultScratchSize
		}
		// Keep the region inside what the caller reserved.
		if skip := aligned - c.ScratchOffset; skip < c.ScratchSize {
			c.ScratchSize -= skip
		} else {
			c.ScratchSize = 0
		}
		c.ScratchOffset = aligned
	}
	return c
}
