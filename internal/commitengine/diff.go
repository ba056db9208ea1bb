package commitengine

import (
	"github.com/pmezard/go-difflib/difflib"
)

// diffLineStats counts the lines a change from oldText to newText added and
// removed, using the same SequenceMatcher opcodes the vcs package's unified
// diffs are built from so a commit's recorded line counts agree with what
// a diff view would show for it.
func diffLineStats(oldText, newText string) (added, removed int) {
	if oldText == newText {
		return 0, 0
	}
	matcher := difflib.NewMatcher(difflib.SplitLines(oldText), difflib.SplitLines(newText))
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'i':
			added += op.J2 - op.J1
		case 'd':
			removed += op.I2 - op.I1
		case 'r':
			added += op.J2 - op.J1
			removed += op.I2 - op.I1
		}
	}
	return added, removed
}
