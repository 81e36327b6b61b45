package device

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ProdMoon/go-vmm/internal/types"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			config: Config{Frames: 64, SwapSectors: 64 * types.SectorsPerPage, StackLimitBytes: types.DefaultStackLimit},
		},
		{
			name:   "zero swap is allowed",
			config: Config{Frames: 8, SwapSectors: 0, StackLimitBytes: types.PageSize},
		},
		{
			name:    "zero frames",
			config:  Config{Frames: 0, SwapSectors: 8, StackLimitBytes: types.DefaultStackLimit},
			wantErr: true,
		},
		{
			name:    "negative swap sectors",
			config:  Config{Frames: 8, SwapSectors: -8, StackLimitBytes: types.DefaultStackLimit},
			wantErr: true,
		},
		{
			name:    "partial swap page",
			config:  Config{Frames: 8, SwapSectors: types.SectorsPerPage + 1, StackLimitBytes: types.DefaultStackLimit},
			wantErr: true,
		},
		{
			name:    "zero stack limit",
			config:  Config{Frames: 8, SwapSectors: 8 * types.SectorsPerPage, StackLimitBytes: 0},
			wantErr: true,
		},
		{
			name:    "unaligned stack limit",
			config:  Config{Frames: 8, SwapSectors: 8 * types.SectorsPerPage, StackLimitBytes: types.PageSize + 100},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
