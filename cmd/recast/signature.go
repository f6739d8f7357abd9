package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
	"recast/internal/semantic"
	"recast/internal/transform"
)

var (
	signatureAdds    []string
	signatureRemoves []string
	signatureRenames []string
	signatureMoves   []string
	signaturePath    string
	signatureLine    int
	signaturePreview bool
	signatureFormat  string
)

var signatureCmd = &cobra.Command{
	Use:   "signature <method>",
	Short: "Change a method signature and rewrite call sites",
	Long: `Change a method's parameter list and rewrite every call site. Arguments
of retained parameters are carried over; added parameters are filled
from the supplied default expression. Overloaded methods are refused.

Positions are zero-based. Each flag may be repeated.

Examples:
  recast signature Process --add "retries:int=3"
  recast signature Process --add "cancel:CancellationToken@0" --preview
  recast signature Process --remove legacyFlag --rename ctx=context
  recast signature Process --move timeout@1`,
	Args: cobra.ExactArgs(1),
	Run:  runSignature,
}

func init() {
	signatureCmd.Flags().StringArrayVar(&signatureAdds, "add", nil, "Add a parameter: name:type, name:type=default, or name:type@position")
	signatureCmd.Flags().StringArrayVar(&signatureRemoves, "remove", nil, "Remove a parameter by name")
	signatureCmd.Flags().StringArrayVar(&signatureRenames, "rename", nil, "Rename a parameter: old=new")
	signatureCmd.Flags().StringArrayVar(&signatureMoves, "move", nil, "Reposition a parameter: name@position")
	signatureCmd.Flags().StringVar(&signaturePath, "path", "", "Narrow by declaring file")
	signatureCmd.Flags().IntVar(&signatureLine, "line", 0, "Narrow by declaration line")
	signatureCmd.Flags().BoolVar(&signaturePreview, "preview", false, "Show diffs without writing files")
	signatureCmd.Flags().StringVar(&signatureFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(signatureCmd)
}

func runSignature(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(signatureFormat)

	changes, err := collectParamChanges()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.ChangeSignature(ctx, engine.SignatureParams{
		Target: semantic.Selector{
			Name: args[0],
			Kind: semantic.KindMethod,
			Path: signaturePath,
			Line: signatureLine,
		},
		Changes: changes,
		Preview: signaturePreview,
	})
	emitResult(eng, res, signatureFormat)

	logger.Debug("Signature change completed", map[string]interface{}{
		"method":   args[0],
		"changes":  len(changes),
		"preview":  signaturePreview,
		"duration": time.Since(start).Milliseconds(),
	})
}

// collectParamChanges translates the flag specs into parameter changes.
// A rename and a move naming the same parameter fold into one change.
func collectParamChanges() ([]transform.ParamChange, error) {
	var changes []transform.ParamChange

	for _, spec := range signatureAdds {
		ch, err := parseAddSpec(spec)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}

	mods := make(map[string]*transform.ParamChange)
	var order []string
	modFor := func(name string) *transform.ParamChange {
		if ch, ok := mods[name]; ok {
			return ch
		}
		ch := &transform.ParamChange{Name: name}
		mods[name] = ch
		order = append(order, name)
		return ch
	}

	for _, spec := range signatureRenames {
		old, newName, ok := strings.Cut(spec, "=")
		if !ok || old == "" || newName == "" {
			return nil, fmt.Errorf("invalid --rename %q (use old=new)", spec)
		}
		modFor(old).NewName = newName
	}
	for _, spec := range signatureMoves {
		name, posStr, ok := strings.Cut(spec, "@")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --move %q (use name@position)", spec)
		}
		pos, err := strconv.Atoi(posStr)
		if err != nil || pos < 0 {
			return nil, fmt.Errorf("invalid --move %q: position must be a non-negative number", spec)
		}
		p := pos
		modFor(name).Position = &p
	}
	for _, name := range order {
		changes = append(changes, *mods[name])
	}

	for _, name := range signatureRemoves {
		changes = append(changes, transform.ParamChange{Name: name, Remove: true})
	}

	return changes, nil
}

// parseAddSpec parses one --add value: name:type, optionally followed
// by =default and/or @position.
func parseAddSpec(spec string) (transform.ParamChange, error) {
	name, rest, ok := strings.Cut(spec, ":")
	if !ok || name == "" || rest == "" {
		return transform.ParamChange{}, fmt.Errorf("invalid --add %q (use name:type, name:type=default, or name:type@position)", spec)
	}
	ch := transform.ParamChange{Name: strings.TrimSpace(name), Add: true}

	// a trailing @N selects the position; digits only, so default
	// expressions containing @ are left alone
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		if pos, err := strconv.Atoi(rest[at+1:]); err == nil && pos >= 0 {
			ch.Position = &pos
			rest = rest[:at]
		}
	}

	typeText, def, hasDefault := strings.Cut(rest, "=")
	ch.Type = strings.TrimSpace(typeText)
	if hasDefault {
		ch.Default = strings.TrimSpace(def)
	}
	if ch.Type == "" {
		return transform.ParamChange{}, fmt.Errorf("invalid --add %q: missing type", spec)
	}
	return ch, nil
}
