package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize applies NFKC, case folding and whitespace collapsing.
func Normalize(text string) string {
	folded := folder.String(norm.NFKC.String(text))
	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), " ")
}

// Hash returns the hex SHA-256 of the normalized title and body.
func Hash(title, body string) string {
	sum := sha256.Sum256([]byte(Normalize(title) + "\n" + Normalize(body)))
	return hex.EncodeToString(sum[:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
