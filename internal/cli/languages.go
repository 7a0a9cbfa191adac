package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"empathos.app/relay/internal/model"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the languages a reply can be translated to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, l := range model.Languages {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}
