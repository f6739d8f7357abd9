package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
	"recast/internal/semantic"
)

var (
	encapsulatePath     string
	encapsulateLine     int
	encapsulateProperty string
	encapsulatePreview  bool
	encapsulateFormat   string
)

var encapsulateCmd = &cobra.Command{
	Use:   "encapsulate <field>",
	Short: "Turn a field into a property",
	Long: `Turn a field into a property and rewrite references outside the
declaring type to go through the accessor. References inside the
declaring type keep using the backing field.

The property name defaults to the field name in PascalCase with any
underscore prefix stripped; --property overrides it.

Examples:
  recast encapsulate _balance
  recast encapsulate count --property ItemCount --preview`,
	Args: cobra.ExactArgs(1),
	Run:  runEncapsulate,
}

func init() {
	encapsulateCmd.Flags().StringVar(&encapsulatePath, "path", "", "Narrow by declaring file")
	encapsulateCmd.Flags().IntVar(&encapsulateLine, "line", 0, "Narrow by declaration line")
	encapsulateCmd.Flags().StringVar(&encapsulateProperty, "property", "", "Property name (default: PascalCase of the field name)")
	encapsulateCmd.Flags().BoolVar(&encapsulatePreview, "preview", false, "Show diffs without writing files")
	encapsulateCmd.Flags().StringVar(&encapsulateFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(encapsulateCmd)
}

func runEncapsulate(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(encapsulateFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Encapsulate(ctx, engine.EncapsulateParams{
		Target: semantic.Selector{
			Name: args[0],
			Kind: semantic.KindField,
			Path: encapsulatePath,
			Line: encapsulateLine,
		},
		PropertyName: encapsulateProperty,
		Preview:      encapsulatePreview,
	})
	emitResult(eng, res, encapsulateFormat)

	logger.Debug("Encapsulate completed", map[string]interface{}{
		"field":    args[0],
		"preview":  encapsulatePreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
