package main

import (
	"fmt"

	"github.com/normanking/cortexlipsync/internal/config"
	"github.com/normanking/cortexlipsync/internal/rig"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <model.glb>",
	Short: "Resolve an avatar's lip-sync controls and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	r, err := rig.LoadGLTF(args[0])
	if err != nil {
		return err
	}
	capability := rig.Resolve(r, rig.NewMatcher(cfg.Lipsync.MouthMorphCandidates, cfg.Lipsync.JawBoneNames))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model: %s\n", args[0])
	fmt.Fprintf(out, "Tier:  %s\n", capability.Tier())

	slots := capability.Slots()
	fmt.Fprintf(out, "\nMorph slots (%d, %d canonical):\n", len(slots), capability.CanonicalCount())
	for _, s := range slots {
		drive := s.Viseme.String()
		if s.Heuristic {
			drive = "openness"
		}
		fmt.Fprintf(out, "  %-24s #%-3d %-24s -> %s\n", s.MeshName, s.Channel, s.ChannelName, drive)
	}

	fmt.Fprintln(out, "\nBones:")
	for _, b := range []struct {
		role string
		ref  *rig.BoneRef
	}{
		{"jaw", capability.Jaw()},
		{"head", capability.Head()},
		{"torso", capability.Torso()},
	} {
		name := "-"
		if b.ref != nil {
			name = b.ref.Name
		}
		fmt.Fprintf(out, "  %-6s %s\n", b.role, name)
	}
	return nil
}
