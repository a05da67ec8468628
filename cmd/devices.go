package main

import (
	"fmt"

	"github.com/cwbudde/rotatebatch/internal/rotate/device"
	"github.com/cwbudde/rotatebatch/internal/rotate/gpu"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available accelerator platforms and devices",
	RunE:  runDevices,

	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	fmt.Println("Supported backends:")
	for _, b := range device.SupportedBackends() {
		fmt.Printf("  - %s\n", b)
	}
	fmt.Println()

	platforms, err := gpu.EnumeratePlatforms()
	if err != nil {
		fmt.Printf("OpenCL: %v\n", err)
		return nil
	}
	if len(platforms) == 0 {
		fmt.Println("OpenCL: no platforms found")
		return nil
	}

	for _, platform := range platforms {
		fmt.Printf("Platform: %s (%s, %s)\n", platform.Name, platform.Vendor, platform.Version)
		for _, dev := range platform.Devices {
			fmt.Printf("  Device: %s\n", dev.Name)
			fmt.Printf("    Vendor: %s\n", dev.Vendor)
			fmt.Printf("    Type: %s\n", dev.Type)
			fmt.Printf("    Compute units: %d\n", dev.MaxComputeUnits)
			fmt.Printf("    Global memory: %d MiB\n", dev.GlobalMemBytes/(1024*1024))
		}
	}

	return nil
}
