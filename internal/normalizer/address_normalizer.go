package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// DefaultLotMarkers trailing markers stripped from lot (jibun) addresses
var DefaultLotMarkers = []string{"번지"}

// addressHashDelimiter không xuất hiện trong địa chỉ
const addressHashDelimiter = "\x1f"

// NormalizedAddress kết quả chuẩn hóa địa chỉ
type NormalizedAddress struct {
	Road        string  `json:"road"`
	Lot         string  `json:"lot"`
	RegionCode  string  `json:"region_code"`
	AddressHash *string `json:"address_hash,omitempty"`
	HashEmpty   bool    `json:"hash_empty"` // all three components were empty
}

// Hash trả về address hash hoặc chuỗi rỗng
func (na NormalizedAddress) Hash() string {
	if na.AddressHash == nil {
		return ""
	}
	return *na.AddressHash
}

// AddressNormalizer normalizes road/lot addresses and hashes them.
type AddressNormalizer struct {
	lotMarkers []string
	expandRoad func(string) string
}

// NewAddressNormalizer tạo mới AddressNormalizer. expandRoad runs on road
// addresses before rule processing; nil means identity.
func NewAddressNormalizer(lotMarkers []string, expandRoad func(string) string) *AddressNormalizer {
	if len(lotMarkers) == 0 {
		lotMarkers = DefaultLotMarkers
	}
	if expandRoad == nil {
		expandRoad = func(s string) string { return s }
	}
	return &AddressNormalizer{
		lotMarkers: lotMarkers,
		expandRoad: expandRoad,
	}
}

// Normalize chuẩn hóa địa chỉ đường, địa chỉ lô và region code rồi tính hash
func (an *AddressNormalizer) Normalize(snap *Snapshot, road, lot, region string) NormalizedAddress {
	out := NormalizedAddress{
		RegionCode: snap.RegionCode(region),
	}

	if strings.TrimSpace(road) != "" {
		out.Road = an.normalizeText(snap, an.expandRoad(road))
	}
	if strings.TrimSpace(lot) != "" {
		out.Lot = an.stripLotMarker(an.normalizeText(snap, lot))
	}

	if out.Road == "" && out.Lot == "" && out.RegionCode == "" {
		out.HashEmpty = true
		return out
	}
	h := HashAddress(out.Road, out.Lot, out.RegionCode)
	out.AddressHash = &h
	return out
}

// normalizeText: NFC, region expansion, noise stripping, whitespace collapse.
func (an *AddressNormalizer) normalizeText(snap *Snapshot, s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			return r
		case r == '-':
			// lot numbers such as 123-4
			return r
		default:
			return ' '
		}
	}, s)
	s = collapseSpaces(s)
	return mapTokens(s, func(tok string) string {
		if v, ok := snap.expand(tok); ok {
			return v
		}
		return tok
	})
}

func (an *AddressNormalizer) stripLotMarker(s string) string {
	for {
		stripped := false
		for _, marker := range an.lotMarkers {
			if marker == "" || !strings.HasSuffix(s, marker) {
				continue
			}
			s = strings.TrimRightFunc(strings.TrimSuffix(s, marker), unicode.IsSpace)
			stripped = true
		}
		if !stripped {
			return s
		}
	}
}

// HashAddress returns the hex sha256 of the lower-cased, trimmed components
// joined by a unit separator. Empty components are kept.
func HashAddress(road, lot, region string) string {
	joined := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(road)),
		strings.ToLower(strings.TrimSpace(lot)),
		strings.ToLower(strings.TrimSpace(region)),
	}, addressHashDelimiter)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Similarity is the normalized edit-distance score (0-100) used for scoring.
// It counts runes, so Hangul syllables weigh one each.
func Similarity(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 100
	}
	if a == b {
		return 100
	}
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round((1 - float64(dist)/float64(maxLen)) * 100))
}
