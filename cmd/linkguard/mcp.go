package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/guard"
)

// NewMCPCmd creates the mcp command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve linkguard tools over MCP on stdio",
		Long: `Mcp exposes linkguard_classify, linkguard_set_feature and linkguard_status to an
MCP client. Flags written here reach a running session through the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			ctl := &guard.Control{Store: st, Classifier: e.classifier(), Logger: e.logger}
			return ctl.ServeMCP(ctx, getVersion())
		},
	}
}
