// Package geojson bridges the geometry model to go-geom for the text
// formats: GeoJSON and WKT.
package geojson

import (
	"iter"

	"github.com/cockroachdb/errors"
	gogeom "github.com/twpayne/go-geom"

	"github.com/samirrijal/geowire/internal/pkg/geom"
)

var layouts = map[geom.Layout]gogeom.Layout{
	geom.XY:   gogeom.XY,
	geom.XYZ:  gogeom.XYZ,
	geom.XYM:  gogeom.XYM,
	geom.XYZM: gogeom.XYZM,
}

func toLayout(l gogeom.Layout) (geom.Layout, error) {
	switch l {
	case gogeom.XY, gogeom.NoLayout:
		return geom.XY, nil
	case gogeom.XYZ:
		return geom.XYZ, nil
	case gogeom.XYM:
		return geom.XYM, nil
	case gogeom.XYZM:
		return geom.XYZM, nil
	}
	return 0, errors.Wrapf(geom.ErrInconsistentDimensionality, "go-geom layout %v", l)
}

// FromGeom converts g to its go-geom equivalent.
func FromGeom(g geom.Geometry) (gogeom.T, error) {
	l := layouts[g.Layout()]
	srid := int(g.SRID())

	switch g := g.(type) {
	case geom.Point:
		if g.IsEmpty() {
			return gogeom.NewPointEmpty(l).SetSRID(srid), nil
		}
		p, err := gogeom.NewPoint(l).SetCoords(toCoord(g.Coord()))
		if err != nil {
			return nil, errors.Wrap(err, "point")
		}
		return p.SetSRID(srid), nil
	case geom.LineString:
		ls, err := gogeom.NewLineString(l).SetCoords(toCoords(g.Coords()))
		if err != nil {
			return nil, errors.Wrap(err, "linestring")
		}
		return ls.SetSRID(srid), nil
	case geom.Polygon:
		p, err := gogeom.NewPolygon(l).SetCoords(ringCoords(g))
		if err != nil {
			return nil, errors.Wrap(err, "polygon")
		}
		return p.SetSRID(srid), nil
	case geom.MultiPoint:
		mp := gogeom.NewMultiPoint(l).SetSRID(srid)
		for p := range g.Points() {
			gp := gogeom.NewPointEmpty(l)
			if !p.IsEmpty() {
				var err error
				if gp, err = gogeom.NewPoint(l).SetCoords(toCoord(p.Coord())); err != nil {
					return nil, errors.Wrap(err, "multipoint member")
				}
			}
			if err := mp.Push(gp); err != nil {
				return nil, errors.Wrap(err, "multipoint member")
			}
		}
		return mp, nil
	case geom.MultiLineString:
		coords := make([][]gogeom.Coord, 0, g.NumLineStrings())
		for ls := range g.LineStrings() {
			coords = append(coords, toCoords(ls.Coords()))
		}
		ml, err := gogeom.NewMultiLineString(l).SetCoords(coords)
		if err != nil {
			return nil, errors.Wrap(err, "multilinestring")
		}
		return ml.SetSRID(srid), nil
	case geom.MultiPolygon:
		coords := make([][][]gogeom.Coord, 0, g.NumPolygons())
		for p := range g.Polygons() {
			coords = append(coords, ringCoords(p))
		}
		mp, err := gogeom.NewMultiPolygon(l).SetCoords(coords)
		if err != nil {
			return nil, errors.Wrap(err, "multipolygon")
		}
		return mp.SetSRID(srid), nil
	case geom.GeometryCollection:
		gc := gogeom.NewGeometryCollection().SetSRID(srid)
		for m := range g.Geometries() {
			t, err := FromGeom(m)
			if err != nil {
				return nil, err
			}
			if err := gc.Push(t); err != nil {
				return nil, errors.Wrap(err, "collection member")
			}
		}
		return gc, nil
	}
	return nil, errors.Wrapf(geom.ErrUnsupported, "geometry %T", g)
}

// ToGeom converts a go-geom geometry into the geometry model.
func ToGeom(t gogeom.T) (geom.Geometry, error) {
	if t == nil {
		return nil, errors.Wrap(geom.ErrUnsupported, "nil geometry")
	}
	l, err := toLayout(t.Layout())
	if err != nil {
		return nil, err
	}
	srid := geom.SRID(t.SRID())

	var g geom.Geometry
	switch t := t.(type) {
	case *gogeom.Point:
		if t.Empty() {
			g = geom.NewPointEmpty(l)
		} else {
			g = geom.NewPoint(l, fromCoord(t.Coords()))
		}
	case *gogeom.LineString:
		g = geom.NewLineString(l, fromCoords(t.Coords())...)
	case *gogeom.Polygon:
		g = fromPolygon(l, t.Coords())
	case *gogeom.MultiPoint:
		points := make([]geom.Point, t.NumPoints())
		for i := range points {
			p := t.Point(i)
			if p.Empty() {
				points[i] = geom.NewPointEmpty(l)
			} else {
				points[i] = geom.NewPoint(l, fromCoord(p.Coords()))
			}
		}
		g = geom.NewMultiPoint(l, points...)
	case *gogeom.MultiLineString:
		lines := make([]geom.LineString, 0, t.NumLineStrings())
		for _, cs := range t.Coords() {
			lines = append(lines, geom.NewLineString(l, fromCoords(cs)...))
		}
		g = geom.NewMultiLineString(l, lines...)
	case *gogeom.MultiPolygon:
		polygons := make([]geom.Polygon, 0, t.NumPolygons())
		for _, rs := range t.Coords() {
			polygons = append(polygons, fromPolygon(l, rs))
		}
		g = geom.NewMultiPolygon(l, polygons...)
	case *gogeom.GeometryCollection:
		members := make([]geom.Geometry, 0, t.NumGeoms())
		for _, m := range t.Geoms() {
			mg, err := ToGeom(m)
			if err != nil {
				return nil, err
			}
			members = append(members, mg)
		}
		g = geom.NewGeometryCollection(l, members...)
	default:
		return nil, errors.Wrapf(geom.ErrUnsupported, "go-geom type %T", t)
	}
	return geom.WithSRID(g, srid), nil
}

func toCoord(c geom.Coord) gogeom.Coord {
	return append(gogeom.Coord(nil), c...)
}

func toCoords(seq iter.Seq[geom.Coord]) []gogeom.Coord {
	var out []gogeom.Coord
	for c := range seq {
		out = append(out, toCoord(c))
	}
	return out
}

func ringCoords(p geom.Polygon) [][]gogeom.Coord {
	rings := make([][]gogeom.Coord, 0, p.NumRings())
	for r := range p.Rings() {
		cs := make([]gogeom.Coord, len(r))
		for i, c := range r {
			cs[i] = toCoord(c)
		}
		rings = append(rings, cs)
	}
	return rings
}

func fromCoord(c gogeom.Coord) geom.Coord {
	return append(geom.Coord(nil), c...)
}

func fromCoords(cs []gogeom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(cs))
	for i, c := range cs {
		out[i] = fromCoord(c)
	}
	return out
}

func fromPolygon(l geom.Layout, rs [][]gogeom.Coord) geom.Polygon {
	rings := make([]geom.Ring, len(rs))
	for i, r := range rs {
		rings[i] = geom.Ring(fromCoords(r))
	}
	return geom.NewPolygon(l, rings...)
}
