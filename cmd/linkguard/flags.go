package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/guard"
)

// NewFlagsCmd creates the flags command.
func NewFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Show or change feature flags",
		Long: `Flags reads and writes the feature switches in the store. A running
"linkguard run" session picks changes up within the store poll interval.`,
		Args: cobra.NoArgs,
		RunE: runFlagsList,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List features and their state",
		Args:  cobra.NoArgs,
		RunE:  runFlagsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "set <feature> on|off",
		Short:     "Switch a feature on or off",
		Args:      cobra.ExactArgs(2),
		ValidArgs: featureNames(),
		RunE:      runFlagsSet,
	})
	return cmd
}

func featureNames() []string {
	out := make([]string, len(guard.Catalogue))
	for i, f := range guard.Catalogue {
		out[i] = f.Name
	}
	return out
}

func runFlagsList(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	values, err := st.Get(cmd.Context(), guard.Flags()...)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tFLAG\tSTATE")
	for _, f := range guard.Catalogue {
		state := "off"
		if on, _ := values[f.Flag].(bool); on {
			state = "on"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Flag, state)
	}
	return w.Flush()
}

func runFlagsSet(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	f, err := guard.Lookup(args[0])
	if err != nil {
		return err
	}
	var on bool
	switch args[1] {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("state must be on or off, got %q", args[1])
	}

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SetBool(cmd.Context(), f.Flag, on); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", f.Name, args[1])
	return nil
}
