package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ProdMoon/go-vmm/internal/device"
	"github.com/ProdMoon/go-vmm/internal/types"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the effective configuration and swap geometry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := device.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		swapBytes := cfg.SwapSectors * types.SectorSize
		fmt.Fprintf(os.Stdout, "Page size:        %d bytes\n", types.PageSize)
		fmt.Fprintf(os.Stdout, "Sector size:      %d bytes\n", types.SectorSize)
		fmt.Fprintf(os.Stdout, "Frames:           %d (%d bytes)\n", cfg.Frames, cfg.Frames*types.PageSize)
		fmt.Fprintf(os.Stdout, "Swap sectors:     %d (%d slots, %d bytes)\n",
			cfg.SwapSectors, swapBytes/types.PageSize, swapBytes)
		if cfg.SwapPath != "" {
			fmt.Fprintf(os.Stdout, "Swap image:       %s\n", cfg.SwapPath)
		} else {
			fmt.Fprintf(os.Stdout, "Swap image:       (in-memory)\n")
		}
		fmt.Fprintf(os.Stdout, "Stack limit:      %d bytes\n", cfg.StackLimitBytes)
		fmt.Fprintf(os.Stdout, "User stack top:   %#x\n", uint64(types.UserStackTop))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
