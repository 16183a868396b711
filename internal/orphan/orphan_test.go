package orphan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/docref/internal/config"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "docs/features/01-app.md", `---
code_references: [src/app.ts, lib/]
entry_point: ./cmd/server/main.go
test_files: [tests/test_app.py]
---
The router lives in `+"`src/router.ts:12`"+`.
`)
	writeFile(t, dir, "docs/interfaces/01--02.md", "Payload schema: `schemas/payload.py`\n")

	writeFile(t, dir, "src/app.ts", "import { route } from \"./router\";\nimport { fmt } from \"./format\";\n")
	writeFile(t, dir, "src/router.ts", "export function route() {}\n")
	writeFile(t, dir, "src/format.ts", "export function fmt() {}\n")
	writeFile(t, dir, "src/dead.ts", "export function unused() {}\n")
	writeFile(t, dir, "src/widgets/index.tsx", "export const W = 1;\n")
	writeFile(t, dir, "src/page.tsx", "import { W } from \"./widgets\";\n")
	writeFile(t, dir, "cmd/server/main.go", "package main\n\nimport \"example.com/svc/internal/store\"\n\nfunc main() { store.Open() }\n")
	writeFile(t, dir, "internal/store/store.go", "package store\n\nfunc Open() {}\n")
	writeFile(t, dir, "internal/store/cache.go", "package store\n")
	writeFile(t, dir, "lib/Legacy.java", "import com.acme.util.Strings;\nclass Legacy {}\n")
	writeFile(t, dir, "lib/Strings.java", "class Strings {}\n")
	writeFile(t, dir, "tools/Orphaned.java", "class Orphaned {}\n")
	writeFile(t, dir, "tests/test_app.py", "import app\n")
	writeFile(t, dir, "schemas/payload.py", "")
	writeFile(t, dir, "scripts/release.sh", "source ./env.sh\n")
	writeFile(t, dir, "scripts/env.sh", "export X=1\n")
	writeFile(t, dir, "package.json", "{}")
	writeFile(t, dir, "vite.config.ts", "export default {}\n")
	return dir
}

func TestDetect(t *testing.T) {
	t.Parallel()

	dir := writeProject(t)
	res, err := Detect(dir, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"scripts/release.sh",
		"src/dead.ts",
		"src/page.tsx",
		"tools/Orphaned.java",
	}, res.OrphanFiles)
	assert.Equal(t, 18, res.TotalFiles)
	// src/app.ts, src/router.ts, cmd/server/main.go, tests/test_app.py,
	// lib/Legacy.java, lib/Strings.java, schemas/payload.py
	assert.Equal(t, 7, res.ReferencedFiles)
}

func TestDetectIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := writeProject(t)
	first, err := Detect(dir, Options{})
	require.NoError(t, err)
	second, err := Detect(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectExcludes(t *testing.T) {
	t.Parallel()

	dir := writeProject(t)
	cfg := config.DefaultConfig()
	cfg.Sources.Exclude = []string{"tools/**", "src/dead.ts"}

	res, err := Detect(dir, Options{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, []string{"scripts/release.sh", "src/page.tsx"}, res.OrphanFiles)
}

func TestDetectLargeFileImports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "docs/features/01-app.md", "---\ncode_references: [src/app.ts]\n---\n")
	writeFile(t, dir, "src/app.ts", "import { h } from \"./helper\";\n"+strings.Repeat("// padding\n", 200))
	writeFile(t, dir, "src/helper.ts", "export function h() {}\n")

	cfg := config.DefaultConfig()
	cfg.Sources.MaxFileSize = 100

	res, err := Detect(dir, Options{Config: cfg})
	require.NoError(t, err)
	assert.Empty(t, res.OrphanFiles, "imports of a file too large to parse still count")
	assert.Equal(t, 1, res.ReferencedFiles)
}

func TestDetectEmptyProject(t *testing.T) {
	t.Parallel()

	res, err := Detect(t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalFiles)
	assert.NotNil(t, res.OrphanFiles)
	assert.Empty(t, res.OrphanFiles)
}

func TestSpecNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"helpers", "js"}, specNames("./utils/helpers.js"))
	assert.Equal(t, []string{"app", "models"}, specNames("app.models"))
	assert.Equal(t, []string{"store"}, specNames("example.com/svc/internal/store"))
	assert.Equal(t, []string{"Client"}, specNames("Net::Client"))
	assert.Empty(t, specNames("."))
}

func TestCandidateNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"login"}, candidateNames("src/login.ts"))
	assert.Equal(t, []string{"index", "widgets"}, candidateNames("src/widgets/index.tsx"))
	assert.Equal(t, []string{"cache", "store"}, candidateNames("internal/store/cache.go"))
	assert.Equal(t, []string{"main"}, candidateNames("main.go"))
}

func TestScanImports(t *testing.T) {
	t.Parallel()

	src := []byte(`#include "util/strings.h"
#include <stdio.h>
import java.util.List;
use crate::net::client;
local x = require("lib.json")
int notAnImport = 1;
`)
	assert.Equal(t, []string{
		"util/strings.h",
		"stdio.h",
		"java.util.List",
		"crate::net::client",
		"lib.json",
	}, scanImports(src))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
