package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Latin accents common in Filipino and Spanish product names.
var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c",
)

// Generate creates a lowercase, hyphen separated slug from name.
//
//	"  Dark   Walnut " -> "dark-walnut"
//	"Niño Sofa"        -> "nino-sofa"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = accentReplacer.Replace(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
