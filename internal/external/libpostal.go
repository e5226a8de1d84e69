//go:build libpostal

package external

import (
	"strings"

	"github.com/openvenues/gopostal/expand"
)

// LibpostalAvailable báo binary được build cùng libpostal
const LibpostalAvailable = true

// ExpandRoadAddress returns libpostal's first expansion of a road address,
// or the input unchanged when libpostal yields nothing usable.
func ExpandRoadAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	opts := expand.GetDefaultExpansionOptions()
	opts.Languages = []string{"ko"}
	// hangul must survive expansion untouched
	opts.Transliterate = false
	opts.LatinAscii = false
	opts.Lowercase = false
	opts.StripAccents = false
	opts.Decompose = false

	exps := expand.ExpandAddressOptions(raw, opts)
	for _, e := range exps {
		if e = strings.TrimSpace(e); e != "" {
			return e
		}
	}
	return raw
}
