package scanner

import (
	"path"
	"strings"
)

// Rule maps one glob-like pattern to a type tag. Rules are evaluated in
// order; the first match wins, matching the spec's "first-match on an
// ordered list" classification contract.
type Rule struct {
	Pattern string
	TypeTag string
}

// UnknownTypeTag is assigned to any path that matches no rule in the set.
const UnknownTypeTag = "unknown"

// RuleSet is an immutable, ordered list of classification rules plus the
// scan-wide hidden-file allow-list and size ceiling. It is loaded once (at
// engine construction, per the design notes' "immutable configuration
// struct loaded once" guidance) and never mutated afterward.
type RuleSet struct {
	rules        []Rule
	allowHidden  map[string]bool
	maxFileBytes int64
}

// NewRuleSet builds a RuleSet. allowHidden lists basenames (e.g.
// ".gitignore") that are scanned even though they begin with a dot;
// maxFileBytes <= 0 means no ceiling.
func NewRuleSet(rules []Rule, allowHidden []string, maxFileBytes int64) RuleSet {
	allow := make(map[string]bool, len(allowHidden))
	for _, name := range allowHidden {
		allow[name] = true
	}
	// Copy so the caller's backing array can't mutate us after construction.
	owned := make([]Rule, len(rules))
	copy(owned, rules)
	return RuleSet{rules: owned, allowHidden: allow, maxFileBytes: maxFileBytes}
}

// DefaultRuleSet returns the classification rules the importer and commit
// engine fall back to when callers don't supply their own: common source,
// config, and markup extensions, plus the conventional dotfile allow-list.
func DefaultRuleSet(maxFileBytes int64) RuleSet {
	return NewRuleSet([]Rule{
		{Pattern: "**/*.go", TypeTag: "source"},
		{Pattern: "**/*.py", TypeTag: "source"},
		{Pattern: "**/*.js", TypeTag: "source"},
		{Pattern: "**/*.ts", TypeTag: "source"},
		{Pattern: "**/*.tsx", TypeTag: "source"},
		{Pattern: "**/*.jsx", TypeTag: "source"},
		{Pattern: "**/*.rs", TypeTag: "source"},
		{Pattern: "**/*.java", TypeTag: "source"},
		{Pattern: "**/*.c", TypeTag: "source"},
		{Pattern: "**/*.h", TypeTag: "source"},
		{Pattern: "**/*.cpp", TypeTag: "source"},
		{Pattern: "**/*.rb", TypeTag: "source"},
		{Pattern: "**/*.json", TypeTag: "config"},
		{Pattern: "**/*.yaml", TypeTag: "config"},
		{Pattern: "**/*.yml", TypeTag: "config"},
		{Pattern: "**/*.toml", TypeTag: "config"},
		{Pattern: "**/*.ini", TypeTag: "config"},
		{Pattern: "go.mod", TypeTag: "config"},
		{Pattern: "go.sum", TypeTag: "config"},
		{Pattern: "**/*.md", TypeTag: "markup"},
		{Pattern: "**/*.html", TypeTag: "markup"},
		{Pattern: "**/*.xml", TypeTag: "markup"},
		{Pattern: "**/*.txt", TypeTag: "markup"},
	}, []string{".gitignore", ".env.example", ".gitattributes"}, maxFileBytes)
}

// AllowsHidden reports whether basename is scanned despite beginning with
// a dot.
func (rs RuleSet) AllowsHidden(basename string) bool {
	return rs.allowHidden[basename]
}

// MaxFileBytes is the scan_max_file_bytes ceiling; <= 0 means unlimited.
func (rs RuleSet) MaxFileBytes() int64 {
	return rs.maxFileBytes
}

// MatchPath reports whether relPath matches glob pattern, using the same
// "**" segment-wildcard syntax Classify's rules use. Exposed for callers
// (the engine facade's file-listing filter) that need the same matching
// rules outside of type-tag classification.
func MatchPath(pattern, relPath string) bool {
	return matchGlob(pattern, filepathToSlash(relPath))
}

// Classify returns the type tag for relPath (slash-separated, relative to
// the scan root), or UnknownTypeTag if no rule matches.
func (rs RuleSet) Classify(relPath string) string {
	relPath = filepathToSlash(relPath)
	for _, rule := range rs.rules {
		if matchGlob(rule.Pattern, relPath) {
			return rule.TypeTag
		}
	}
	return UnknownTypeTag
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// matchGlob matches pattern against name, where pattern may use "**" to
// match any number of path segments (including zero), and each segment may
// use ordinary shell-glob syntax ("*.ext", exact basenames) via path.Match.
func matchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "/") {
		// A bare pattern like "*.ext" or "go.mod" matches the basename at
		// any depth, mirroring the spec's "*.ext for any basename" rule.
		base := name
		if i := strings.LastIndex(name, "/"); i >= 0 {
			base = name[i+1:]
		}
		ok, err := path.Match(pattern, base)
		return err == nil && ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(name); i++ {
			if matchSegments(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}
