package index

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/model"
	"github.com/phobologic/docref/internal/parse"
	"github.com/phobologic/docref/internal/terms"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "docs/features/01-auth.md", `---
feature: 01-auth
code_references:
  - src/auth/login.ts
  - ./src/auth/session.ts
  - ../outside.ts
related_features: [02-billing]
depends_on: [03-core, 99-missing]
interfaces:
  provides: [auth/login, auth/logout]
  uses: [03--01]
test_files: [src/auth/login.test.ts]
---
# Auth

Uses the [[Session]] and [[Ghost]].

`+"```term"+`
term: Session
related: [Token]
definition: An authenticated user session.
`+"```"+`
`)
	writeFile(t, dir, "docs/features/02-billing.md", `---
feature: 02-billing
code_references: [src/billing/invoice.ts]
related_features: [01-auth]
---
Billing relies on [[session]] tokens.
`)
	writeFile(t, dir, "docs/features/03-core.md", "---\ncode_references: [src/core/index.ts]\n---\n")
	writeFile(t, dir, "docs/features/dup.md", "---\nfeature: 02-billing\n---\n")
	writeFile(t, dir, "docs/features/broken.md", "---\nfeature: [\n---\n")
	writeFile(t, dir, "docs/interfaces/02--01.md", "---\nkind: api\nstatus: stable\n---\n")
	writeFile(t, dir, "docs/glossary.md", "```term\nterm: Token\nrelated: [Session]\ndefinition: A signed credential.\n```\n")

	writeFile(t, dir, "src/auth/login.ts", "import { Session } from \"./session\";\nexport function login() {}\n")
	writeFile(t, dir, "src/auth/session.ts", "export class Session {}\n")
	writeFile(t, dir, "src/billing/invoice.ts", "import { login } from \"../auth/login\";\nexport const total = 1;\n")
	writeFile(t, dir, "src/auth/login.test.ts", "import { login } from \"./login\";\n")
	return dir
}

func TestBuild(t *testing.T) {
	t.Parallel()

	dir := writeProject(t)
	res, err := Build(dir, nil, Options{Now: fixedNow})
	require.NoError(t, err)
	idx := res.Index

	assert.Equal(t, SchemaVersion, idx.Version)
	assert.True(t, idx.Generated.Equal(fixedNow()))
	require.Len(t, idx.Features, 3)

	auth := idx.Feature("01-auth")
	require.NotNil(t, auth)
	assert.Equal(t, "docs/features/01-auth.md", auth.File)
	assert.Equal(t, []string{"src/auth/login.ts", "src/auth/session.ts"}, auth.CodeUses)
	assert.Equal(t, []string{"src/auth/login.test.ts"}, auth.TestedBy)
	assert.Equal(t, []string{"02-billing"}, auth.RelatedFeatures)
	assert.Equal(t, []string{"02-billing"}, auth.UsedByFeatures)
	assert.Equal(t, []string{"03-core", "99-missing"}, auth.DependsOn)
	assert.Equal(t, []string{"01--02", "auth/login", "auth/logout"}, auth.InterfacesProvided)
	assert.Equal(t, []string{"01--03"}, auth.InterfacesUsed)
	assert.Equal(t, []string{"Session"}, auth.TermsDefined)
	assert.Equal(t, []string{"Ghost", "Session"}, auth.TermsUsed)
	assert.Equal(t, []string{"src/auth/login.test.ts", "src/billing/invoice.ts"}, auth.CodeUsedBy)

	billing := idx.Feature("02-billing")
	require.NotNil(t, billing)
	assert.Equal(t, []string{"01-auth"}, billing.UsedByFeatures)
	assert.Equal(t, []string{"01--02"}, billing.InterfacesUsed)
	assert.Equal(t, []string{"Session"}, billing.TermsUsed)
	assert.Empty(t, billing.CodeUsedBy)
	assert.NotNil(t, billing.DependedOnBy, "empty edge lists serialize as []")

	core := idx.Feature("03-core")
	require.NotNil(t, core, "id falls back to the file name")
	assert.Equal(t, []string{"01-auth"}, core.DependedOnBy)

	login := idx.Code["src/auth/login.ts"]
	require.NotNil(t, login)
	assert.Equal(t, model.Source, login.Kind)
	assert.True(t, login.Exists)
	assert.Equal(t, []string{"01-auth"}, login.DocumentedIn)
	assert.Equal(t, []string{"src/auth/session.ts"}, login.Imports)
	assert.Equal(t, []string{"src/auth/login.test.ts", "src/billing/invoice.ts"}, login.ImportedBy)
	assert.Equal(t, []string{"login"}, login.Exports)

	test := idx.Code["src/auth/login.test.ts"]
	require.NotNil(t, test)
	assert.Equal(t, model.Test, test.Kind)
	assert.Equal(t, []string{"01-auth"}, test.DocumentedIn)

	missing := idx.Code["src/core/index.ts"]
	require.NotNil(t, missing)
	assert.False(t, missing.Exists)
	assert.Empty(t, missing.Imports)

	iface := idx.Interfaces["01--02"]
	require.NotNil(t, iface)
	assert.Equal(t, "01-auth", iface.FromFeature)
	assert.Equal(t, "02-billing", iface.ToFeature)
	assert.Equal(t, "api", iface.Kind)
	assert.Equal(t, "stable", iface.Status)

	require.Len(t, idx.Terms, 2)
	name, session := idx.Term("SESSION")
	require.NotNil(t, session)
	assert.Equal(t, "Session", name)
	assert.Equal(t, 2, session.UsageCount)
	assert.Equal(t, "docs/features/01-auth.md", session.Definition.File)
	assert.Equal(t, model.GlobalScope, session.Definition.Scope)
	_, token := idx.Term("Token")
	require.NotNil(t, token)
	assert.Zero(t, token.UsageCount)
	assert.NotNil(t, token.References)

	assert.Equal(t, 3, res.Stats.Features)
	assert.Equal(t, 5, res.Stats.CodeFiles)
	assert.Equal(t, 1, res.Stats.Interfaces)
	assert.Equal(t, 2, res.Stats.Terms)
	assert.Equal(t, 2, res.Stats.TermReferences)
	assert.Equal(t, 4, res.Stats.Parsed)
	assert.Positive(t, res.Stats.Edges)

	var problemPaths []string
	for _, p := range res.Problems {
		problemPaths = append(problemPaths, p.Path)
	}
	assert.ElementsMatch(t, []string{
		"docs/features/01-auth.md",
		"docs/features/broken.md",
		"docs/features/dup.md",
	}, problemPaths)
	assert.Equal(t, len(res.Problems), res.Stats.Skipped)

	rep := res.Terms.Validate()
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, terms.CodeUndefined, rep.Errors[0].Code)
}

func TestBuildIsRepeatable(t *testing.T) {
	t.Parallel()

	dir := writeProject(t)
	first, err := Build(dir, nil, Options{Now: fixedNow})
	require.NoError(t, err)
	second, err := Build(dir, nil, Options{Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, first.Index.Features, second.Index.Features)
	assert.Equal(t, first.Index.Code, second.Index.Code)
}

func TestBuildRecordsSkippedLargeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "docs/features/01-app.md", "---\ncode_references: [src/app.ts, src/small.ts]\n---\n")
	writeFile(t, dir, "src/app.ts", "import { s } from \"./small\";\n"+strings.Repeat("// padding\n", 50))
	writeFile(t, dir, "src/small.ts", "export const s = 1;\n")

	cfg := config.DefaultConfig()
	cfg.Sources.MaxFileSize = 100

	res, err := Build(dir, cfg, Options{Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Parsed)

	app := res.Index.Code["src/app.ts"]
	require.NotNil(t, app)
	assert.Empty(t, app.Imports)
	require.Len(t, app.ParseErrors, 1)
	assert.Equal(t, parse.CodeTooLarge, app.ParseErrors[0].Code)

	assert.Empty(t, res.Index.Code["src/small.ts"].ParseErrors)
}

func TestBuildDuplicateTermIsProblem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	block := "```term\nterm: Widget\n```\n"
	writeFile(t, dir, "docs/a.md", block)
	writeFile(t, dir, "docs/b.md", block)

	res, err := Build(dir, nil, Options{})
	require.NoError(t, err)
	require.Len(t, res.Problems, 1)
	assert.Equal(t, "docs/b.md", res.Problems[0].Path)

	var conflict *terms.ConflictError
	require.True(t, errors.As(res.Problems[0], &conflict))
	assert.Equal(t, "docs/a.md", conflict.Existing.File)
	assert.ErrorIs(t, res.Problems[0], terms.ErrDuplicateTerm)
}

func TestBuildFatalErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := Build(file, nil, Options{})
	assert.ErrorIs(t, err, ErrNotDirectory)

	cfg := config.DefaultConfig()
	cfg.Docs.Dir = "../elsewhere"
	_, err = Build(dir, cfg, Options{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestBuildEmptyProject(t *testing.T) {
	t.Parallel()

	res, err := Build(t.TempDir(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Index.Features)
	assert.Empty(t, res.Problems)
	assert.Zero(t, res.Stats.Edges)
}

func TestResolver(t *testing.T) {
	t.Parallel()

	r := newResolver([]string{
		"app/__init__.py",
		"app/models.py",
		"app/util/io.py",
		"internal/auth/login.go",
		"internal/auth/token.go",
		"lib/helpers.rb",
		"src/components/index.tsx",
		"src/main.ts",
	})

	assert.Equal(t, []string{"src/components/index.tsx"}, r.resolve("src/main.ts", "./components"))
	assert.Equal(t, []string{"app/models.py"}, r.resolve("app/util/io.py", "..models"))
	assert.Equal(t, []string{"app/__init__.py"}, r.resolve("app/models.py", "."))
	assert.Equal(t, []string{"app/util/io.py"}, r.resolve("app/models.py", "app.util.io"))
	assert.Equal(t, []string{"internal/auth/login.go", "internal/auth/token.go"},
		r.resolve("cmd/main.go", "github.com/acme/svc/internal/auth"))
	assert.Equal(t, []string{"lib/helpers.rb"}, r.resolve("app.rb", "helpers"))
	assert.Empty(t, r.resolve("src/main.ts", "react"))
	assert.Empty(t, r.resolve("cmd/main.go", "fmt"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	dir := writeProject(t)
	res, err := Build(dir, nil, Options{Now: fixedNow})
	require.NoError(t, err)

	path := SnapshotPath(dir, nil)
	require.NoError(t, Write(res.Index, path))
	require.NoError(t, Write(res.Index, path), "overwrites an existing snapshot")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, loaded.Version)
	assert.True(t, loaded.Generated.Equal(fixedNow()))
	assert.Equal(t, res.Index.Features, loaded.Features)
	assert.Equal(t, res.Index.Code, loaded.Code)
	assert.Equal(t, res.Index.Interfaces, loaded.Interfaces)
	assert.Equal(t, res.Index.Terms, loaded.Terms)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"usage_count": 2`)
	assert.Contains(t, string(data), `"documented_in"`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
