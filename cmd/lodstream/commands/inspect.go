package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/viant/lodstream"
	"github.com/viant/lodstream/format/mipchain"
	"github.com/viant/lodstream/format/pop"
	"github.com/viant/lodstream/parser"
)

type inspection struct {
	Source           string           `yaml:"source"`
	Format           string           `yaml:"format"`
	Extension        string           `yaml:"extension"`
	Version          uint8            `yaml:"version"`
	FormatHeaderSize uint32           `yaml:"formatHeaderSize"`
	Name             string           `yaml:"name,omitempty"`
	MaxLod           int              `yaml:"maxLod"`
	Mesh             *pop.Header      `yaml:"mesh,omitempty"`
	Texture          *mipchain.Header `yaml:"texture,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect URL",
	Short: "Print the container and format headers of an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger, err := newLogger()
		if err != nil {
			return err
		}
		config, err := loadConfig(ctx, logger)
		if err != nil {
			return err
		}
		srv, err := lodstream.New(lodstream.WithConfig(config), lodstream.WithLogger(logger))
		if err != nil {
			return err
		}
		defer srv.Shutdown()
		// a required level below the first one reads the headers only
		asset, err := srv.Open(ctx, args[0], parser.WithRequiredLod(-1))
		if err != nil {
			return err
		}
		defer srv.Close(ctx, asset.ID)

		header := asset.Parser.Header()
		ret := &inspection{
			Source:           asset.Source,
			Format:           asset.Format,
			Extension:        fmt.Sprintf("%#04x", header.Extension),
			Version:          header.Version,
			FormatHeaderSize: header.FormatHeaderSize,
			Name:             asset.Name,
			MaxLod:           asset.Parser.MaxLod(),
		}
		switch format := asset.Parser.Format().(type) {
		case *pop.Format:
			h := format.Header()
			ret.Mesh = &h
		case *mipchain.Format:
			h := format.Header()
			ret.Texture = &h
		}
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		if err = encoder.Encode(ret); err != nil {
			return err
		}
		return encoder.Close()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
