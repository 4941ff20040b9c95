package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
)

func newAgentsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the registered persona agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			agents := multiagent.DefaultRegistry().Agents()
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(agents)
			}
			for _, a := range agents {
				fmt.Fprintf(w, "%s %-9s %-28s %s (%s)\n", a.Icon, a.Key, a.ID, a.Name, a.Role)
				fmt.Fprintf(w, "    %s\n", strings.Join(a.Specialties, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
