package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScalarsArraysAndNested(t *testing.T) {
	t.Parallel()

	content := `---
feature: 01-auth
status: draft
code_references:
  - src/auth/login.ts
  - src/auth/session.ts
interfaces:
  provides: [auth/login, auth/logout]
  uses: [storage/users]
---
# Auth

Body text.
`
	doc, err := Extract(content)
	require.NoError(t, err)

	assert.Equal(t, "01-auth", doc.String("feature"))
	assert.Equal(t, []string{"src/auth/login.ts", "src/auth/session.ts"}, doc.Strings("code_references"))

	nested := doc.Map("interfaces")
	require.NotNil(t, nested)
	assert.Equal(t, []string{"auth/login", "auth/logout"}, List(nested["provides"]))
	assert.Equal(t, []string{"storage/users"}, List(nested["uses"]))

	assert.Equal(t, "# Auth\n\nBody text.\n", doc.Body)
	assert.Equal(t, 11, doc.BodyLine)
}

func TestExtractWithoutFrontmatter(t *testing.T) {
	t.Parallel()

	doc, err := Extract("# Title\n\ntext\n")
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "# Title\n\ntext\n", doc.Body)
	assert.Equal(t, 1, doc.BodyLine)
}

func TestExtractEmptyFrontmatter(t *testing.T) {
	t.Parallel()

	doc, err := Extract("---\n---\nbody\n")
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "body\n", doc.Body)
	assert.Equal(t, 3, doc.BodyLine)
}

func TestExtractUnterminated(t *testing.T) {
	t.Parallel()

	_, err := Extract("---\nfeature: x\n\nno closing line\n")
	assert.ErrorIs(t, err, ErrUnterminated)
}

func TestExtractMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Extract("---\nfeature: [unclosed\n---\nbody\n")
	assert.Error(t, err)
}

func TestStringsScalarBecomesList(t *testing.T) {
	t.Parallel()

	doc, err := Extract("---\nentry_point: cmd/main.go\nempty: []\n---\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd/main.go"}, doc.Strings("entry_point"))
	assert.Empty(t, doc.Strings("empty"))
	assert.Nil(t, doc.Strings("missing"))
	assert.True(t, doc.Has("empty"))
	assert.False(t, doc.Has("missing"))
}
