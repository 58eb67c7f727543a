// Package media holds the registry of data providers and the newspaper
// titles each of them contributed to impresso.
package media

import (
	"sort"
	"strings"
)

var providers = map[string][]string{
	"SNL-RERO": {
		"BDC", "CDV", "DLE", "EDA", "EXP", "IMP", "JDF", "JDV", "LBP", "LCE",
		"LCG", "LCR", "LCS", "LES", "LNF", "LSE", "LSR", "LTF", "LVE", "EVT",
	},
	"LeTemps": {"JDG", "GDL"},
	"NZZ":     {"NZZ"},
	"SWA":     {"arbeitgeber", "handelsztg"},
	"FedGaz":  {"FedGazDe", "FedGazFr"},
	"BNL": {
		"actionfem", "armeteufel", "avenirgdl", "buergerbeamten", "courriergdl",
		"deletz1893", "demitock", "diekwochen", "dunioun", "gazgrdlux", "indeplux",
		"kommmit", "landwortbild", "lunion", "luxembourg1935", "luxland", "luxwort",
		"luxzeit1844", "luxzeit1858", "obermosel", "onsjongen", "schmiede",
		"tageblatt", "volkfreu1869", "waechtersauer", "waeschfra",
	},
	"SNL-RERO2": {
		"BLB", "BNN", "DFS", "DVF", "EZR", "FZG", "HRV", "LAB", "LLE", "MGS",
		"NTS", "NZG", "SGZ", "SRT", "WHD", "ZBT",
	},
	"SNL-RERO3": {
		"CON", "DTT", "FCT", "GAV", "GAZ", "LLS", "OIZ", "SAX", "SDT", "SMZ",
		"VDR", "VHT",
	},
	"BNF":    {"excelsior", "lafronde", "marieclaire", "oeuvre"},
	"BNF-EN": {"jdpl", "legaulois", "lematin", "lepji", "lepetitparisien", "oecaen", "oerennes"},
	"BCUL": {
		"ACI", "Castigat", "CL", "Croquis", "FAMDE", "FAN", "GAVi", "AV", "JY2",
		"JV", "JVE", "JH", "OBS", "Bombe", "Cancoire", "Fronde", "Griffe",
		"Guepe1851", "Guepe1887", "RLA", "Charivari", "CharivariCH", "Grelot",
		"Moniteur", "ouistiti", "PDL", "PJ", "TouSuIl", "VVS1", "MESSAGER", "PS",
		"NV", "ME", "MB", "NS", "FAM", "FAV1", "EM", "esta", "PAT", "VVS", "NV1",
		"NV2",
	},
}

// titleProvider is the reverse index of providers
var titleProvider = func() map[string]string {
	idx := make(map[string]string)
	for p, titles := range providers {
		for _, t := range titles {
			idx[t] = p
		}
	}
	return idx
}()

// Providers returns the sorted list of known provider names
func Providers() []string {
	out := make([]string, 0, len(providers))
	for p := range providers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Titles returns the sorted list of every known media title
func Titles() []string {
	out := make([]string, 0, len(titleProvider))
	for t := range titleProvider {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TitlesOf returns the titles of provider p, or nil when p is unknown
func TitlesOf(p string) []string {
	titles, ok := providers[p]
	if !ok {
		return nil
	}
	out := make([]string, len(titles))
	copy(out, titles)
	return out
}

// ProviderFor returns the provider of a media title alias
func ProviderFor(alias string) (string, bool) {
	p, ok := titleProvider[alias]
	return p, ok
}

// IsKnownTitle reports whether alias is a registered media title
func IsKnownTitle(alias string) bool {
	_, ok := titleProvider[alias]
	return ok
}

// IsKnownProvider reports whether p is a registered provider
func IsKnownProvider(p string) bool {
	_, ok := providers[p]
	return ok
}

// ProviderHasTitle reports whether alias belongs to provider p
func ProviderHasTitle(p, alias string) bool {
	return titleProvider[alias] == p && p != ""
}

// LookupProvider resolves a provider name case-insensitively
func LookupProvider(name string) (string, bool) {
	for p := range providers {
		if strings.EqualFold(p, name) {
			return p, true
		}
	}
	return "", false
}
