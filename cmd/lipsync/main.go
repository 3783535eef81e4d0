// Command lipsync hosts the lip-sync engine: it drives an avatar from the
// microphone or a procedural speech pattern and streams frames to renderers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lipsync",
	Short: "Procedural lip-sync and viseme blending for rigged avatars",
	Long: `lipsync animates the mouth of a rigged glTF avatar from either a live
microphone envelope or a procedural speech pattern, adds head and torso
micro-motion, and streams every frame to browser renderers over WebSocket.

Configuration:
  1. --config flag (explicit path)
  2. $HOME/.cortexlipsync/config.yaml
  3. ./config.yaml (current directory)

Environment Variables:
  CORTEXLIPSYNC_<SECTION>_<KEY>, e.g. CORTEXLIPSYNC_LIPSYNC_MIC_GAIN=2`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cortexlipsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
