package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/verdict"
)

// NewClassifyCmd creates the classify command.
func NewClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify one URL or piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}
	cmd.Flags().Bool("json", false, "Print the verdict as JSON")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	v, err := e.classifier().Classify(ctx, strings.Join(args, " "))
	if err != nil {
		e.logger.Debug("classify: failed", "error", err)
		return errors.New(classify.Message(err))
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	d := verdict.Describe(v.Classification)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s confidence)\n%s\n", d.Title, v.Percent(), d.Description)
	return nil
}
