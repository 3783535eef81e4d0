package main

import (
	"fmt"

	"github.com/normanking/cortexlipsync/internal/audio"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List microphone capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audio.ListDevices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(devices) == 0 {
			fmt.Fprintln(out, "No capture devices found")
			return nil
		}
		for _, d := range devices {
			fmt.Fprintln(out, d.String())
		}
		return nil
	},
}
