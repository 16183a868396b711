package naming

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/discover"
	"github.com/phobologic/docref/internal/frontmatter"
	"github.com/phobologic/docref/internal/model"
)

// Issue codes reported by Validate.
const (
	CodeInvalidName        = "invalid-name"
	CodeUnsortedPair       = "unsorted-pair"
	CodeDuplicatePair      = "duplicate-pair"
	CodeUnsortedShared     = "unsorted-shared-id"
	CodeFrontmatter        = "frontmatter"
	CodeInterfaceCount     = "interface-count"
	CodeUnsortedInterfaces = "unsorted-interfaces"
	CodeInterfaceMismatch  = "interface-mismatch"
	CodeSharedType         = "shared-type"
	CodeMissingStatus      = "missing-status"
	CodeMissingShared      = "missing-shared-type"
	CodeMissingBacklink    = "missing-backlink"
)

// Stats summarizes one validation run.
type Stats struct {
	InterfaceDocs int `json:"interface_docs"`
	SharedDocs    int `json:"shared_docs"`
}

// Report is the outcome of Validate.
type Report struct {
	Success bool `json:"success"`
	model.Issues
	Stats Stats `json:"stats"`
}

type interfaceDoc struct {
	file        string
	id          string // normalized pair, "" when the name is invalid
	sharedTypes []string
}

type sharedDoc struct {
	file       string
	id         string // normalized shared id, "" when the name is invalid
	interfaces []string
}

type validator struct {
	root   string
	logger *slog.Logger
	rep    Report

	interfaces map[string]*interfaceDoc // normalized pair -> first document
	shared     map[string]*sharedDoc    // normalized shared id -> first document
	ifaceOrder []*interfaceDoc
	shareOrder []*sharedDoc
}

// Validate checks the file names, shared-type frontmatter and cross-references
// of the interface and shared-type collections under root.
func Validate(root string, cfg *config.Config, logger *slog.Logger) (*Report, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := &validator{
		root:       root,
		logger:     logger,
		interfaces: make(map[string]*interfaceDoc),
		shared:     make(map[string]*sharedDoc),
	}

	ifaceFiles, err := discover.Documents(root, cfg.InterfacesDir(), false)
	if err != nil {
		return nil, fmt.Errorf("list interface documents: %w", err)
	}
	sharedFiles, err := discover.Documents(root, cfg.SharedDir(), false)
	if err != nil {
		return nil, fmt.Errorf("list shared-type documents: %w", err)
	}

	for _, f := range ifaceFiles {
		v.interfaceFile(f)
	}
	for _, f := range sharedFiles {
		v.sharedFile(f)
	}
	v.crossReferences()

	v.rep.Stats.InterfaceDocs = len(ifaceFiles)
	v.rep.Stats.SharedDocs = len(sharedFiles)
	v.rep.Success = v.rep.Issues.Success()
	return &v.rep, nil
}

func stem(file string) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

func (v *validator) read(file string) (*frontmatter.Document, bool) {
	data, err := os.ReadFile(filepath.Join(v.root, filepath.FromSlash(file)))
	if err != nil {
		v.rep.Errorf(CodeFrontmatter, file, 0, "cannot read document: %v", err)
		return nil, false
	}
	doc, err := frontmatter.Extract(string(data))
	if err != nil {
		v.rep.Errorf(CodeFrontmatter, file, 1, "malformed frontmatter: %v", err)
		return nil, false
	}
	return doc, true
}

func (v *validator) interfaceFile(file string) {
	name := stem(file)
	doc := &interfaceDoc{file: file}

	switch pair, err := ParsePair(name); {
	case err != nil:
		issue := v.rep.Errorf(CodeInvalidName, file, 0, "interface document name: %v", err)
		if IsShared(name) {
			issue.Suggestion = "move shared-type documents to the shared collection"
		}
	default:
		doc.id = pair.Normalized().String()
		if !pair.Sorted() {
			issue := v.rep.Errorf(CodeUnsortedPair, file, 0, "interface pair %s is not sorted; expected %s", name, doc.id)
			issue.Suggestion = fmt.Sprintf("rename to %s.md", doc.id)
		}
		if first, dup := v.interfaces[doc.id]; dup {
			issue := v.rep.Errorf(CodeDuplicatePair, file, 0, "interface pair %s is already documented by %s", doc.id, first.file)
			issue.Suggestion = "merge the two documents"
		} else {
			v.interfaces[doc.id] = doc
		}
	}

	if fm, ok := v.read(file); ok {
		doc.sharedTypes = fm.Strings("shared_types")
	}
	v.ifaceOrder = append(v.ifaceOrder, doc)
}

func (v *validator) sharedFile(file string) {
	name := stem(file)
	doc := &sharedDoc{file: file}

	var pairs []string
	valid := true
	seen := make(map[string]struct{})
	for _, raw := range SplitShared(name) {
		pair, err := ParsePair(raw)
		if err != nil {
			v.rep.Errorf(CodeInvalidName, file, 0, "shared-type document name: %v", err)
			valid = false
			continue
		}
		norm := pair.Normalized().String()
		if !pair.Sorted() {
			issue := v.rep.Errorf(CodeUnsortedPair, file, 0, "pair %s in shared-type name is not sorted; expected %s", raw, norm)
			issue.Suggestion = fmt.Sprintf("use %s", norm)
		}
		if _, dup := seen[norm]; dup {
			v.rep.Errorf(CodeDuplicatePair, file, 0, "pair %s appears more than once in shared-type name", norm)
			continue
		}
		seen[norm] = struct{}{}
		pairs = append(pairs, norm)
	}

	if valid {
		if !sort.StringsAreSorted(pairs) {
			canonical := append([]string(nil), pairs...)
			sort.Strings(canonical)
			issue := v.rep.Errorf(CodeUnsortedShared, file, 0, "pairs in shared-type name are not sorted")
			issue.Suggestion = fmt.Sprintf("rename to %s.md", strings.Join(canonical, SharedSeparator))
		}
		doc.id, _ = NormalizeShared(name)
		if first, dup := v.shared[doc.id]; dup {
			v.rep.Errorf(CodeDuplicatePair, file, 0, "shared type %s is already documented by %s", doc.id, first.file)
		} else {
			v.shared[doc.id] = doc
		}
	}

	fm, ok := v.read(file)
	if !ok {
		v.shareOrder = append(v.shareOrder, doc)
		return
	}
	doc.interfaces = fm.Strings("interfaces")

	if valid && len(doc.interfaces) != len(pairs) {
		v.rep.Errorf(CodeInterfaceCount, file, 1, "interfaces lists %d entries but the name has %d pairs", len(doc.interfaces), len(pairs))
	}
	if !sort.StringsAreSorted(doc.interfaces) {
		canonical := append([]string(nil), doc.interfaces...)
		sort.Strings(canonical)
		issue := v.rep.Errorf(CodeUnsortedInterfaces, file, 1, "interfaces list is not sorted")
		issue.Suggestion = fmt.Sprintf("use [%s]", strings.Join(canonical, ", "))
	}
	if valid {
		for _, entry := range doc.interfaces {
			norm, err := NormalizePair(entry)
			if err != nil {
				v.rep.Errorf(CodeInterfaceMismatch, file, 1, "interfaces entry: %v", err)
				continue
			}
			if _, ok := seen[norm]; !ok {
				v.rep.Errorf(CodeInterfaceMismatch, file, 1, "interfaces entry %s is not one of the pairs in the document name", entry)
			}
		}
	}
	if t := fm.String("type"); t != "shared" {
		issue := v.rep.Errorf(CodeSharedType, file, 1, "type must be \"shared\", got %q", t)
		issue.Suggestion = "set type: shared"
	}
	if fm.String("status") == "" {
		v.rep.Errorf(CodeMissingStatus, file, 1, "status is required")
	}
	v.shareOrder = append(v.shareOrder, doc)
}

// crossReferences checks that interfaces and shared types list each other.
// A dangling interface reference is an error, a dangling shared-type
// reference a warning.
func (v *validator) crossReferences() {
	for _, iface := range v.ifaceOrder {
		if iface.id == "" {
			continue
		}
		for _, st := range iface.sharedTypes {
			norm, err := NormalizeShared(st)
			if err != nil {
				v.rep.Errorf(CodeMissingShared, iface.file, 1, "shared_types entry: %v", err)
				continue
			}
			shared, ok := v.shared[norm]
			if !ok {
				v.rep.Errorf(CodeMissingShared, iface.file, 1, "shared type %s has no document", st)
				continue
			}
			if !containsPair(shared.interfaces, iface.id) {
				issue := v.rep.Errorf(CodeMissingBacklink, shared.file, 1, "shared type %s does not list interface %s", norm, iface.id)
				issue.Suggestion = fmt.Sprintf("add %s to interfaces", iface.id)
			}
		}
	}

	for _, shared := range v.shareOrder {
		if shared.id == "" {
			continue
		}
		for _, entry := range shared.interfaces {
			norm, err := NormalizePair(entry)
			if err != nil {
				continue
			}
			iface, ok := v.interfaces[norm]
			if !ok {
				v.rep.Warnf(CodeMissingBacklink, shared.file, 1, "interface %s has no document", norm)
				continue
			}
			if !containsShared(iface.sharedTypes, shared.id) {
				issue := v.rep.Warnf(CodeMissingBacklink, iface.file, 1, "interface %s does not list shared type %s", norm, shared.id)
				issue.Suggestion = fmt.Sprintf("add %s to shared_types", shared.id)
			}
		}
	}
}

func containsPair(list []string, id string) bool {
	for _, entry := range list {
		if norm, err := NormalizePair(entry); err == nil && norm == id {
			return true
		}
	}
	return false
}

func containsShared(list []string, id string) bool {
	for _, entry := range list {
		if norm, err := NormalizeShared(entry); err == nil && norm == id {
			return true
		}
	}
	return false
}
