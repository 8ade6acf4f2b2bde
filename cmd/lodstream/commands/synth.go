package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/viant/lodstream/format/mipchain"
	"github.com/viant/lodstream/format/pop"
)

var (
	synthKind string
	synthSize int
	synthOut  string
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic container",
	Long: `Write a synthetic container to any afs location:
  pop       a grid mesh with one row of quads per level
  mipchain  an rgba8 checkerboard with a full mip chain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if synthOut == "" {
			return fmt.Errorf("output location is required, use -o flag")
		}
		if synthSize <= 0 {
			return fmt.Errorf("size must be > 0, got %d", synthSize)
		}
		var data []byte
		var err error
		switch synthKind {
		case "pop":
			data, err = pop.Encode(pop.GridHeader("grid", synthSize), pop.Grid(synthSize))
		case "mipchain":
			data, err = mipchain.Encode(synthSize, synthSize, mipchain.RGBA8, mipchain.Checker(synthSize))
		default:
			return fmt.Errorf("unknown kind: %s, expected pop or mipchain", synthKind)
		}
		if err != nil {
			return err
		}
		if err = afs.New().Upload(cmd.Context(), synthOut, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to write %s: %w", synthOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s container (%d bytes) to %s\n", synthKind, len(data), synthOut)
		return nil
	},
}

func init() {
	synthCmd.Flags().StringVar(&synthKind, "kind", "pop", "container kind: pop|mipchain")
	synthCmd.Flags().IntVar(&synthSize, "size", 8, "levels of the mesh, or texture width")
	synthCmd.Flags().StringVarP(&synthOut, "out", "o", "", "output location")
	rootCmd.AddCommand(synthCmd)
}
