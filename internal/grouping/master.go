package grouping

import (
	"strings"
	"unicode/utf8"

	"github.com/institution-matcher/app/models"
)

// Master reasons, in selector order
const (
	ReasonPinned         = "pinned"
	ReasonEquipmentCount = "equipment_count"
	ReasonSubUnitHQ      = "sub_unit_headquarters"
	ReasonShortSubUnit   = "shortest_sub_unit"
	ReasonNameHQ         = "name_headquarters"
	ReasonFirstInScope   = "first_in_scope"
)

// DefaultHeadquartersKeywords từ khóa nhận diện trụ sở chính
var DefaultHeadquartersKeywords = []string{"본원", "본부", "본점", "본사", "본청", "본관"}

// selector returns the index of the master among members, or ok=false for
// no opinion.
type selector struct {
	reason string
	pick   func(members []models.InstitutionRecord) (int, bool)
}

// masterChain builds the selector chain. The last selector always decides.
func masterChain(hqKeywords []string) []selector {
	return []selector{
		{ReasonPinned, pickPinned},
		{ReasonEquipmentCount, pickMostEquipment},
		{ReasonSubUnitHQ, func(m []models.InstitutionRecord) (int, bool) {
			return pickContaining(m, hqKeywords, func(r models.InstitutionRecord) string { return r.SubUnit })
		}},
		{ReasonShortSubUnit, pickShortestSubUnit},
		{ReasonNameHQ, func(m []models.InstitutionRecord) (int, bool) {
			return pickContaining(m, hqKeywords, func(r models.InstitutionRecord) string { return r.Name })
		}},
		{ReasonFirstInScope, func(m []models.InstitutionRecord) (int, bool) { return 0, len(m) > 0 }},
	}
}

func selectMaster(chain []selector, members []models.InstitutionRecord) (int, string) {
	for _, s := range chain {
		if idx, ok := s.pick(members); ok {
			return idx, s.reason
		}
	}
	return 0, ReasonFirstInScope
}

func pickPinned(members []models.InstitutionRecord) (int, bool) {
	for i, r := range members {
		if r.Pinned {
			return i, true
		}
	}
	return 0, false
}

// pickMostEquipment: highest count wins only if it is above 1; first on ties.
func pickMostEquipment(members []models.InstitutionRecord) (int, bool) {
	best := -1
	for i, r := range members {
		if best < 0 || r.EquipmentCount > members[best].EquipmentCount {
			best = i
		}
	}
	if best < 0 || members[best].EquipmentCount <= 1 {
		return 0, false
	}
	return best, true
}

func pickContaining(members []models.InstitutionRecord, keywords []string, field func(models.InstitutionRecord) string) (int, bool) {
	for i, r := range members {
		v := field(r)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(v, kw) {
				return i, true
			}
		}
	}
	return 0, false
}

// pickShortestSubUnit decides only when one member has a strictly shorter
// sub-unit than every other member.
func pickShortestSubUnit(members []models.InstitutionRecord) (int, bool) {
	best, bestLen, unique := -1, 0, false
	for i, r := range members {
		l := utf8.RuneCountInString(strings.TrimSpace(r.SubUnit))
		switch {
		case best < 0 || l < bestLen:
			best, bestLen, unique = i, l, true
		case l == bestLen:
			unique = false
		}
	}
	return best, best >= 0 && unique
}
