package main

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/spf13/cobra"
)

func newPickCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "pick <xpath> [file]",
		Short:        "Print the subtrees matching an XPath expression",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPick(cmd, args)
		},
	}
}

func runPick(cmd *cobra.Command, args []string) error {
	expr, err := xpath.Compile(args[0])
	if err != nil {
		return fmt.Errorf("compile xpath %q: %w", args[0], err)
	}

	input, err := openInput(cmd, args[1:])
	if err != nil {
		return err
	}
	defer input.Close()

	doc, err := xmlquery.Parse(input)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	for _, node := range xmlquery.QuerySelectorAll(doc, expr) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), node.OutputXML(true)); err != nil {
			return err
		}
	}

	return nil
}
