// Package geohash implements the base-32 geohash codec used to accept
// geohash-mode elevation queries and to reconstruct geohash-indexed
// replies.
package geohash

import (
	"fmt"
	"strings"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
)

const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

var charIndex = func() map[byte]int {
	m := make(map[byte]int, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = i
	}
	return m
}()

// Point is a decoded (latitude, longitude) pair.
type Point struct {
	Lat float64
	Lng float64
}

// Decode bisects [-90,90]x[-180,180], alternating longitude/latitude
// starting with longitude, consuming five bits per character (MSB first),
// and returns the midpoint of the final cell.
func Decode(gh string) (Point, error) {
	gh = strings.TrimSpace(gh)
	if gh == "" {
		return Point{}, fmt.Errorf("%w: empty geohash", errs.ErrInvalidInput)
	}

	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0
	even := true

	for i := 0; i < len(gh); i++ {
		c := gh[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		val, ok := charIndex[c]
		if !ok {
			return Point{}, fmt.Errorf("%w: invalid geohash char %q", errs.ErrInvalidInput, gh[i])
		}
		for _, mask := range [5]int{16, 8, 4, 2, 1} {
			if even {
				mid := (lonMin + lonMax) / 2
				if val&mask != 0 {
					lonMin = mid
				} else {
					lonMax = mid
				}
			} else {
				mid := (latMin + latMax) / 2
				if val&mask != 0 {
					latMin = mid
				} else {
					latMax = mid
				}
			}
			even = !even
		}
	}

	return Point{Lat: (latMin + latMax) / 2, Lng: (lonMin + lonMax) / 2}, nil
}

// LooksLikeToken reports whether tok could plausibly be a geohash: after
// lowercasing, non-empty, no comma or whitespace, and every character in
// the base-32 alphabet.
func LooksLikeToken(tok string) bool {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if tok == "" || strings.ContainsAny(tok, ", \t\n\r") {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if _, ok := charIndex[tok[i]]; !ok {
			return false
		}
	}
	return true
}

// Encode produces a geohash string of the given length for (lat, lng).
// Not required by any wire operation; used by tests to build round-trip
// fixtures.
func Encode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = 9
	}
	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0
	even := true
	var bit, ch int
	var out strings.Builder

	for out.Len() < precision {
		if even {
			mid := (lonMin + lonMax) / 2
			if lng >= mid {
				ch |= 16 >> bit
				lonMin = mid
			} else {
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				ch |= 16 >> bit
				latMin = mid
			} else {
				latMax = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out.WriteByte(alphabet[ch])
			bit = 0
			ch = 0
		}
	}
	return out.String()
}
