package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"recast/internal/engine"
	"recast/internal/envelope"
	recasterr "recast/internal/errors"
	"recast/internal/operation"
	"recast/internal/scipexport"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// emitResult prints one operation result in the requested format and
// exits non-zero when the operation failed. JSON output is the full
// response envelope; human output is a per-kind rendering.
func emitResult(eng *engine.Engine, res *operation.Result, format string) {
	resp := eng.Respond(res)

	if OutputFormat(format) == FormatJSON {
		out, err := formatJSON(resp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
		if !res.OK {
			os.Exit(1)
		}
		return
	}

	if !res.OK {
		coded := recasterr.AsRecastError(res.Err)
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", coded.Code, coded.Message)
		for _, fix := range coded.SuggestedFixes {
			if fix.Description != "" {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
			}
			if fix.Command != "" {
				fmt.Fprintf(os.Stderr, "    $ %s\n", fix.Command)
			}
		}
		os.Exit(1)
	}

	out, err := formatHuman(res, resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

// formatJSON formats a value as indented JSON
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman renders a successful result in human-readable form.
func formatHuman(res *operation.Result, resp *envelope.Response) (string, error) {
	var body string
	var err error

	switch {
	case res.Preview:
		body = formatPreviewHuman(res)
	case res.Summary != nil:
		body = formatSummaryHuman(res)
	default:
		switch v := res.Data.(type) {
		case *engine.SymbolPayload:
			body = formatSymbolHuman(v)
		case *engine.RefsPayload:
			body = formatRefsHuman(v)
		case *engine.StatusPayload:
			body = formatStatusHuman(v)
		case *scipexport.Summary:
			body = formatExportHuman(v)
		default:
			body, err = formatJSON(resp)
			if err != nil {
				return "", err
			}
		}
	}

	return body + formatFooter(resp), nil
}

// formatFooter renders the operation and snapshot metadata line.
func formatFooter(resp *envelope.Response) string {
	if resp.Meta == nil || resp.Meta.Operation == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n(%s %s in %dms",
		resp.Meta.Operation.Kind, resp.Meta.Operation.State, resp.Meta.Operation.DurationMS))
	if snap := resp.Meta.Snapshot; snap != nil {
		b.WriteString(fmt.Sprintf(", snapshot v%d, %d documents", snap.Version, snap.Documents))
		if snap.Stale {
			b.WriteString(", stale")
		}
	}
	b.WriteString(")")
	return b.String()
}

// formatPreviewHuman renders pending changes as unified diffs.
func formatPreviewHuman(res *operation.Result) string {
	if len(res.Changes) == 0 {
		return fmt.Sprintf("Preview: %s\n\nNo changes would be made.", res.Kind)
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("Preview: %s (%d file(s) would change)\n", res.Kind, len(res.Changes)))
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for _, c := range res.Changes {
		b.WriteString(fmt.Sprintf("\n%s %s\n", changeMarker(c.Kind), c.Path))
		if c.Description != "" {
			b.WriteString(fmt.Sprintf("  %s\n", c.Description))
		}
		if c.Diff != "" {
			b.WriteString(c.Diff)
			if !strings.HasSuffix(c.Diff, "\n") {
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\nNo files were written. Re-run without --preview to apply.")
	return b.String()
}

func changeMarker(kind operation.ChangeKind) string {
	switch kind {
	case operation.ChangeCreate:
		return "A"
	case operation.ChangeDelete:
		return "D"
	default:
		return "M"
	}
}

// formatSummaryHuman renders a committed transformation summary.
func formatSummaryHuman(res *operation.Result) string {
	var b strings.Builder
	s := res.Summary

	b.WriteString(fmt.Sprintf("Applied: %s\n", res.Kind))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if s.Symbol != nil {
		b.WriteString(fmt.Sprintf("Symbol: %s (%s)\n", s.Symbol.Qualified, s.Symbol.Kind))
	}
	if s.RefsUpdated > 0 {
		b.WriteString(fmt.Sprintf("References updated: %d\n", s.RefsUpdated))
	}

	if len(s.FilesModified) > 0 {
		b.WriteString(fmt.Sprintf("\nModified (%d):\n", len(s.FilesModified)))
		for _, p := range s.FilesModified {
			b.WriteString(fmt.Sprintf("  M %s\n", p))
		}
	}
	if len(s.FilesCreated) > 0 {
		b.WriteString(fmt.Sprintf("\nCreated (%d):\n", len(s.FilesCreated)))
		for _, p := range s.FilesCreated {
			b.WriteString(fmt.Sprintf("  A %s\n", p))
		}
	}
	if len(s.FilesDeleted) > 0 {
		b.WriteString(fmt.Sprintf("\nDeleted (%d):\n", len(s.FilesDeleted)))
		for _, p := range s.FilesDeleted {
			b.WriteString(fmt.Sprintf("  D %s\n", p))
		}
	}

	if len(s.FilesModified) == 0 && len(s.FilesCreated) == 0 && len(s.FilesDeleted) == 0 {
		b.WriteString("\nNo files needed changes.\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatSymbolHuman renders a symbol lookup result.
func formatSymbolHuman(p *engine.SymbolPayload) string {
	var b strings.Builder
	sym := p.Symbol

	b.WriteString("Symbol Details\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Name: %s\n", sym.Name))
	b.WriteString(fmt.Sprintf("Kind: %s\n", sym.Kind))
	if sym.Namespace != "" {
		b.WriteString(fmt.Sprintf("Namespace: %s\n", sym.Namespace))
	}
	if sym.Container != "" {
		b.WriteString(fmt.Sprintf("Container: %s\n", sym.Container))
	}
	if len(sym.Modifiers) > 0 {
		b.WriteString(fmt.Sprintf("Modifiers: %s\n", strings.Join(sym.Modifiers, " ")))
	}
	if sym.Signature != "" {
		b.WriteString(fmt.Sprintf("Signature: %s\n", sym.Signature))
	}
	b.WriteString(fmt.Sprintf("\nLocation: %s:%d\n", sym.Path, sym.Line))

	if p.Context != "" {
		b.WriteString("\n" + p.Context)
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatRefsHuman renders a reference query result.
func formatRefsHuman(p *engine.RefsPayload) string {
	var b strings.Builder

	name := "?"
	if p.Symbol != nil {
		name = p.Symbol.Qualified
	}
	b.WriteString(fmt.Sprintf("References to: %s\n", name))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Total: %d (shown: %d, internal: %d, external: %d)\n",
		p.Total, p.Shown, p.Internal, p.External))
	b.WriteString(fmt.Sprintf("Binding: %d exact, %d heuristic\n", p.Exact, p.Heuristic))
	if p.Skipped > 0 {
		b.WriteString(fmt.Sprintf("Skipped ambiguous: %d\n", p.Skipped))
	}
	if p.Truncated {
		b.WriteString("Results truncated; raise transforms.maxReferences to see more.\n")
	}

	for _, f := range p.Files {
		b.WriteString(fmt.Sprintf("\n%s (%d):\n", f.Path, len(f.References)))
		for _, ref := range f.References {
			marker := ""
			if ref.IsDeclaration {
				marker = " [decl]"
			}
			b.WriteString(fmt.Sprintf("  %4d:%-3d %s%s\n", ref.Line, ref.Column, ref.Context, marker))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatStatusHuman renders workspace status.
func formatStatusHuman(p *engine.StatusPayload) string {
	var b strings.Builder

	b.WriteString("Workspace Status\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	healthy := p.Stats.ParseErrors == 0 && len(p.NamespaceIssues) == 0
	icon := "✓"
	if !healthy {
		icon = "✗"
	}
	b.WriteString(fmt.Sprintf("%s Root: %s\n", icon, p.Root))
	b.WriteString(fmt.Sprintf("  Snapshot: v%d\n\n", p.SnapshotVersion))

	b.WriteString(fmt.Sprintf("Documents: %d\n", p.Stats.Documents))
	b.WriteString(fmt.Sprintf("Types: %d\n", p.Stats.Types))
	b.WriteString(fmt.Sprintf("Members: %d\n", p.Stats.Members))
	if p.JournalEntries > 0 {
		b.WriteString(fmt.Sprintf("Journal entries: %d\n", p.JournalEntries))
	}

	if len(p.ParseErrors) > 0 {
		b.WriteString(fmt.Sprintf("\nParse errors (%d):\n", len(p.ParseErrors)))
		for _, path := range p.ParseErrors {
			b.WriteString(fmt.Sprintf("  ✗ %s\n", path))
		}
	}

	if len(p.NamespaceIssues) > 0 {
		b.WriteString(fmt.Sprintf("\nNamespace issues (%d):\n", len(p.NamespaceIssues)))
		for _, issue := range p.NamespaceIssues {
			b.WriteString(fmt.Sprintf("  %s: declared %q, expected %q\n",
				issue.Path, issue.Declared, issue.Expected))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatExportHuman renders an index export summary.
func formatExportHuman(s *scipexport.Summary) string {
	var b strings.Builder

	b.WriteString("SCIP Index Written\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	if s.Path != "" {
		b.WriteString(fmt.Sprintf("Path: %s\n", s.Path))
	}
	b.WriteString(fmt.Sprintf("Documents: %d\n", s.Documents))
	b.WriteString(fmt.Sprintf("Symbols: %d\n", s.Symbols))
	b.WriteString(fmt.Sprintf("Occurrences: %d\n", s.Occurrences))
	b.WriteString(fmt.Sprintf("Size: %s", formatBytes(int64(s.Bytes))))

	return b.String()
}

// formatBytes formats byte size in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// printJSON outputs data as formatted JSON
func printJSON(data interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}
