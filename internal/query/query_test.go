package query

import (
	"errors"
	"testing"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
)

func TestParseExplicitGeohashesArray(t *testing.T) {
	r, err := Parse(Payload{Geohashes: []any{"9q8yyk8y", "9q8yyhxn"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeGeohash {
		t.Fatalf("expected ModeGeohash, got %v", r.Mode)
	}
	if len(r.Points) != 2 || len(r.Geohashes) != 2 {
		t.Fatalf("expected 2 points/geohashes, got %d/%d", len(r.Points), len(r.Geohashes))
	}
}

func TestParseExplicitGeohashesPipeString(t *testing.T) {
	r, err := Parse(Payload{Geohashes: "9q8yyk8y|9q8yyhxn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeGeohash || len(r.Points) != 2 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestParseLatLngObjects(t *testing.T) {
	r, err := Parse(Payload{Locations: []any{
		map[string]any{"lat": 37.7749, "lng": -122.4194},
		map[string]any{"lat": 40.0, "lng": -73.0},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeLatLng || len(r.Points) != 2 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Points[0].Lat != 37.7749 || r.Points[0].Lng != -122.4194 {
		t.Errorf("unexpected point: %+v", r.Points[0])
	}
}

func TestParseLocationsStringListClassifiesGeohash(t *testing.T) {
	r, err := Parse(Payload{Locations: []any{"9q8yyk8y", "9q8yyhxn"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeGeohash {
		t.Fatalf("expected ModeGeohash, got %v", r.Mode)
	}
}

func TestParseLocationsStringListClassifiesLatLng(t *testing.T) {
	r, err := Parse(Payload{Locations: []any{"37.7749,-122.4194", "40.0,-73.0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeLatLng || len(r.Points) != 2 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestParseLocationsPipeDelimitedString(t *testing.T) {
	r, err := Parse(Payload{Locations: "37.7749,-122.4194|40.0,-73.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode != ModeLatLng || len(r.Points) != 2 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestParseCommaTieBreaksToLatLngOverMixedList(t *testing.T) {
	// one token has a comma, forcing lat/lng parsing of the whole set; the
	// other token then fails lat/lng parsing since it has no comma.
	_, err := Parse(Payload{Locations: []any{"37.7749,-122.4194", "9q8yyk8y"}})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mixed list, got %v", err)
	}
}

func TestParseEmptyPayloadIsInvalid(t *testing.T) {
	_, err := Parse(Payload{})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseLocationsArrayRejectsMixedShapes(t *testing.T) {
	_, err := Parse(Payload{Locations: []any{
		map[string]any{"lat": 1.0, "lng": 2.0},
		"9q8yyk8y",
	}})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mixed-shape array, got %v", err)
	}
}
