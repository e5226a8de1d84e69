//go:build !libpostal

package external

// LibpostalAvailable báo binary được build cùng libpostal
const LibpostalAvailable = false

// ExpandRoadAddress is the identity without the libpostal build tag.
func ExpandRoadAddress(raw string) string { return raw }
