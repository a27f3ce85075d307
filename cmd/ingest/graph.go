package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

func graphCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the registered recipes and their action chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			recipes := a.recipes.Recipes()

			switch strings.ToLower(format) {
			case "dot":
				out, err := pipeline.RenderDOT(recipes)
				if err != nil {
					return fmt.Errorf("render dot: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(recipes))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// renderText produces the human-readable summary, one block per recipe in
// classification order.
func renderText(recipes []pipeline.Recipe) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recipes: %d\n", len(recipes))

	maxNameLen := 6 // minimum "recipe"
	for _, r := range recipes {
		if len(r.Name()) > maxNameLen {
			maxNameLen = len(r.Name())
		}
	}

	for _, r := range recipes {
		fmt.Fprintf(&sb, "\n  %-*s  %s\n", maxNameLen, r.Name(), strings.Join(r.Suffixes(), " "))

		chain := pipeline.Chain(r)
		maxFromLen := 4
		for _, e := range chain {
			if len(e.From) > maxFromLen {
				maxFromLen = len(e.From)
			}
		}
		for _, e := range chain {
			fmt.Fprintf(&sb, "    %-*s  →  %s\n", maxFromLen, e.From, e.To)
		}
		if len(chain) == 0 {
			fmt.Fprintf(&sb, "    %s\n", pipeline.LoadKind)
		}
	}
	return sb.String()
}
