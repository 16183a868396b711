package terms

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/docref/internal/model"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	body := "# Glossary\n" +
		"\n" +
		"```term\n" +
		"term: Reference Index\n" +
		"aliases: [index]\n" +
		"related:\n" +
		"  - Feature\n" +
		"definition: The persisted graph over every [[Feature]].\n" +
		"```\n" +
		"\n" +
		"Each [[Feature|feature doc]] and [[ Code File ]] is indexed.\n" +
		"\n" +
		"```go\n" +
		"m := map[string][]string{} // [[NotARef]]\n" +
		"```\n" +
		"~~~term\n" +
		"term: Local\n" +
		"scope: Document\n" +
		"parent: Reference Index\n" +
		"~~~\n"

	ex := Extract("docs/shared/glossary.md", body, 5)
	assert.Empty(t, ex.Problems)

	require.Len(t, ex.Definitions, 2)
	idx := ex.Definitions[0]
	assert.Equal(t, "Reference Index", idx.Term)
	assert.Equal(t, "docs/shared/glossary.md", idx.File)
	assert.Equal(t, 7, idx.Line)
	assert.Equal(t, []string{"index"}, idx.Aliases)
	assert.Equal(t, []string{"Feature"}, idx.Related)
	assert.Equal(t, "The persisted graph over every [[Feature]].", idx.Definition)
	assert.Empty(t, idx.Scope)

	local := ex.Definitions[1]
	assert.Equal(t, "Local", local.Term)
	assert.Equal(t, model.DocumentScope, local.Scope)
	assert.Equal(t, "Reference Index", local.Parent)

	require.Len(t, ex.References, 3)
	assert.Equal(t, "Feature", ex.References[0].Term)
	assert.Equal(t, 12, ex.References[0].Line)
	assert.Equal(t, "Feature", ex.References[1].Term)
	assert.Equal(t, 15, ex.References[1].Line)
	assert.Equal(t, "Each [[Feature|feature doc]] and [[ Code File ]] is indexed.", ex.References[1].Context)
	assert.Equal(t, "Code File", ex.References[2].Term)
}

func TestExtractProblems(t *testing.T) {
	t.Parallel()

	body := "```term\n" +
		"term: [unclosed\n" +
		"```\n" +
		"```term\n" +
		"definition: nameless\n" +
		"```\n" +
		"See [[Kept]].\n" +
		"```term\n" +
		"term: Dangling\n"

	ex := Extract("a.md", body, 1)
	assert.Len(t, ex.Problems, 3)
	assert.Empty(t, ex.Definitions)
	require.Len(t, ex.References, 1)
	assert.Equal(t, "Kept", ex.References[0].Term)
	assert.Equal(t, 7, ex.References[0].Line)
}

func TestExtractLongFence(t *testing.T) {
	t.Parallel()

	body := "````markdown\n" +
		"```term\n" +
		"term: Nested\n" +
		"```\n" +
		"[[Hidden]]\n" +
		"````\n" +
		"[[Visible]]\n"

	ex := Extract("a.md", body, 1)
	assert.Empty(t, ex.Definitions)
	require.Len(t, ex.References, 1)
	assert.Equal(t, "Visible", ex.References[0].Term)
}

func TestExtractContextKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	line := "[[Term]] " + strings.Repeat("é", 100)
	ex := Extract("docs/a.md", line+"\n", 1)

	require.Len(t, ex.References, 1)
	ctx := ex.References[0].Context
	assert.True(t, utf8.ValidString(ctx))
	assert.LessOrEqual(t, len(ctx), maxContext)
	assert.Equal(t, maxContext-1, len(ctx))
	assert.True(t, strings.HasPrefix(ctx, "[[Term]] é"))
}
