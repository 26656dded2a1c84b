package present

import (
	"strings"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

const genericPhrase = "used this feature"

// Catalog maps an entitlement type to the past-tense phrase used in the
// accomplishment line. Unknown types fall back to a generic phrase.
type Catalog map[string]string

// DefaultCatalog returns a fresh copy of the built-in table.
func DefaultCatalog() Catalog {
	return Catalog{
		quota.EntitlementOnDemandRun: "processed podcast episodes on demand",
		quota.EntitlementJamieAssist: "asked Jamie Assist for help",
		"search-quotes":              "searched podcast quotes",
		"create-clip":                "made clips",
		"ai-clip-edit":               "edited clips with AI",
	}
}

// With returns a copy of c with one entry added or replaced.
func (c Catalog) With(entitlement, phrase string) Catalog {
	out := make(Catalog, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[strings.TrimSpace(entitlement)] = strings.TrimSpace(phrase)
	return out
}

// Phrase looks up entitlement.
func (c Catalog) Phrase(entitlement string) string {
	if phrase, ok := c[strings.TrimSpace(entitlement)]; ok && phrase != "" {
		return phrase
	}
	return genericPhrase
}
