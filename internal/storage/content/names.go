// Sanitizes user supplied page and attachment names before they reach the disk.

package content

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// IndexPage is the reserved front page. It can be read and written but its
// identity never changes.
const IndexPage = "WikiIndex"

// wikiWord is the page name grammar: two or more capitalized word fragments.
var wikiWord = regexp.MustCompile(`^[A-Z][a-z]+(?:[A-Z][a-z]*)+$`)

// IsWikiWord reports whether s is a valid page name.
func IsWikiWord(s string) bool {
	return wikiWord.MatchString(s)
}

// IsReservedPage reports whether name is a page whose identity must not be
// changed. Every identity-mutating operation consults it.
func IsReservedPage(name string) bool {
	return name == IndexPage
}

// baseName collapses s to its last path element, treating both slash kinds as
// separators and resolving ".." against a virtual root so nothing escapes.
func baseName(s string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	s = path.Clean("/" + s)
	if s == "/" {
		return ""
	}
	return path.Base(s)
}

// CleanAttachmentName returns the inert base name of an attachment filename.
//
// "../lol.txt" becomes "lol.txt". Names collapsing to nothing are rejected.
func CleanAttachmentName(name string) (string, error) {
	b := baseName(name)
	if b == "" || b == "." || b == ".." || strings.ContainsRune(b, 0) {
		return "", fmt.Errorf("attachment %q: %w", name, ErrInvalidName)
	}
	return b, nil
}

// CleanPageName returns the base name of a page name and checks it against the
// WikiWord grammar.
func CleanPageName(name string) (string, error) {
	b := baseName(name)
	if !IsWikiWord(b) {
		return "", fmt.Errorf("page %q: %w", name, ErrInvalidName)
	}
	return b, nil
}
