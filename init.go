package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	sentinelStart = "<!-- docref:start -->"
	sentinelEnd   = "<!-- docref:end -->"
)

// initCmd implements `docref init`, which writes (or updates) a docref usage
// section in an agent instruction file such as CLAUDE.md.
func initCmd(g *globals) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "init [path-to-CLAUDE.md]",
		Short: "Write a docref usage section to an agent instruction file",
		Long: `Write a docref usage section to an agent instruction file. The section is
wrapped in sentinel comments so it can be updated in place on subsequent runs
without touching surrounding content. Creates the file if it does not exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := generateSection()

			// --dry-run with no path: just print the section itself.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(g.stdout, section)
				return nil
			}

			path := "CLAUDE.md"
			if len(args) > 0 {
				path = args[0]
			}

			existing, _ := os.ReadFile(path)
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(g.stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(g.stderr, "wrote docref section to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	return cmd
}

// generateSection returns the full sentinel-wrapped docref documentation block.
// The MCP server publishes the same text as its guidance resource.
func generateSection() string {
	body := `## docref: Documentation Reference Graph

This project documents its features in ` + "`docs/features/`" + `, the contracts
between features in ` + "`docs/interfaces/`" + ` (one file per feature pair, named
` + "`NN--MM.md`" + ` with the smaller code first) and shared types in
` + "`docs/shared/`" + `. Glossary terms are defined in fenced ` + "`term`" + ` blocks
and referenced as ` + "`[[Term]]`" + `.

**Availability:** Check with ` + "`docref version`" + ` first; skip gracefully if
not found.

**Run it:**
` + "```" + `bash
docref check                       # rebuild the index and run every validator
docref index                       # rebuild .docref/reference-index.json
docref terms                       # undefined, unused, circular, duplicate terms
docref naming                      # interface and shared-type file names
docref links --namespace auth      # provide/use symmetry for one namespace
docref orphans                     # source files no document mentions
docref rank -n 20                  # the 20 most central features and files
docref --format json check         # machine-readable output
` + "```" + `

**All flags:** ` + "`docref --help`" + `

**Rules when editing documentation or code:**

1. **Run ` + "`docref check`" + ` after changing any document.** Fix every error
   before finishing; use ` + "`--strict`" + ` to treat warnings as failures.

2. **Reference terms, do not redefine them.** Before adding a ` + "`term`" + `
   block, look the name up with ` + "`docref terms`" + ` or the ` + "`find_term`" + `
   tool. Duplicate definitions abort validation.

3. **Keep interfaces symmetric.** Every interface a feature uses must be
   provided by some feature. When a feature provides part of a namespace,
   document the rest or split the feature.

4. **Cite new source files.** Add new files to the owning feature's
   ` + "`code_references`" + ` so ` + "`docref orphans`" + ` stays empty.

5. **Start from ` + "`docref rank`" + `** on an unfamiliar project: read the
   highest-ranked features first.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
