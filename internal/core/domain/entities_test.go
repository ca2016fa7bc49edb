package domain_test

import (
	"errors"
	"testing"

	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

func TestParseFormat(t *testing.T) {
	f, err := domain.ParseFormat("GeoJSON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != domain.FormatGeoJSON {
		t.Errorf("expected geojson, got %s", f)
	}

	_, err = domain.ParseFormat("kml")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFrames(t *testing.T) {
	f, err := domain.ParseFrame("")
	if err != nil || f != domain.FrameWGS84 {
		t.Errorf("expected wgs84 for empty frame, got %q %v", f, err)
	}
	if _, err := domain.ParseFrame("bd09"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if got := domain.TargetFrame(geospatial.Forward); got != domain.FrameGCJ02 {
		t.Errorf("forward target = %s", got)
	}
	if got := domain.TargetFrame(geospatial.Inverse); got != domain.FrameWGS84 {
		t.Errorf("inverse target = %s", got)
	}
	var feat domain.Feature
	if feat.CurrentFrame() != domain.FrameWGS84 {
		t.Errorf("unset frame should read as wgs84")
	}
}

func TestValidLayer(t *testing.T) {
	for name, want := range map[string]bool{
		"roads":       true,
		"roads_gcj02": true,
		"":            false,
		"Roads":       false,
		"_hidden":     false,
		"a/b":         false,
	} {
		if got := domain.ValidLayer(name); got != want {
			t.Errorf("ValidLayer(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMirrorLayer(t *testing.T) {
	m := domain.MirrorLayer("pois")
	if m != "pois_gcj02" || !domain.IsMirrorLayer(m) || domain.IsMirrorLayer("pois") {
		t.Errorf("unexpected mirror naming for %q", m)
	}
	if id := domain.DerivedID(m, "42"); id != "pois_gcj02:42" {
		t.Errorf("unexpected derived id %q", id)
	}
}

func TestBoundsOf(t *testing.T) {
	ls := geom.NewLineString(geom.XY, geom.Coord{116.3, 39.9}, geom.Coord{116.5, 39.8})
	b := domain.BoundsOf(ls)
	if b == nil {
		t.Fatal("expected bounds")
	}
	if b.MinLon != 116.3 || b.MaxLon != 116.5 || b.MinLat != 39.8 || b.MaxLat != 39.9 {
		t.Errorf("unexpected bounds %+v", *b)
	}
	if domain.BoundsOf(geom.NewPointEmpty(geom.XY)) != nil {
		t.Error("expected nil bounds for an empty geometry")
	}
}
