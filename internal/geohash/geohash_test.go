package geohash

import (
	"errors"
	"math"
	"testing"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		lat  float64
		lng  float64
	}{
		{"sf", 37.7749, -122.4194},
		{"equator-prime-meridian", 0, 0},
		{"south-east", -33.8688, 151.2093},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gh := Encode(c.lat, c.lng, 9)
			pt, err := Decode(gh)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", gh, err)
			}
			if !almostEqual(pt.Lat, c.lat, 0.001) || !almostEqual(pt.Lng, c.lng, 0.001) {
				t.Errorf("round trip drifted: got (%v,%v) want ~(%v,%v)", pt.Lat, pt.Lng, c.lat, c.lng)
			}
		})
	}
}

func TestDecodeRejectsInvalidAlphabet(t *testing.T) {
	_, err := Decode("9q8y!!")
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	_, err := Decode("   ")
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeIsCaseInsensitive(t *testing.T) {
	lower, err := Decode("9q8yyk8y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upper, err := Decode("9Q8YYK8Y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lower != upper {
		t.Errorf("case sensitivity mismatch: %+v vs %+v", lower, upper)
	}
}

func TestLooksLikeToken(t *testing.T) {
	cases := []struct {
		tok  string
		want bool
	}{
		{"9q8yyk8y", true},
		{"9Q8YYK8Y", true},
		{"37.7,-122.4", false},
		{"", false},
		{"has space", false},
		{"contains!bang", false},
	}
	for _, c := range cases {
		if got := LooksLikeToken(c.tok); got != c.want {
			t.Errorf("LooksLikeToken(%q) = %v, want %v", c.tok, got, c.want)
		}
	}
}
