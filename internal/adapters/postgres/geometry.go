package postgres

import (
	"database/sql/driver"
	"fmt"

	"github.com/samirrijal/geowire/internal/pkg/ewkb"
	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/twkb"
)

// Geometry adapts a geometry to database/sql style scanning so PostGIS
// values can be read and written as EWKB. It scans both bytea results of
// ST_AsEWKB and the hex text PostGIS emits for a bare geometry column.
type Geometry struct {
	geom.Geometry
}

// Scan implements sql.Scanner.
func (g *Geometry) Scan(src any) error {
	var (
		v   geom.Geometry
		err error
	)
	switch src := src.(type) {
	case nil:
		g.Geometry = nil
		return nil
	case []byte:
		v, err = ewkb.Decode(src)
	case string:
		v, err = ewkb.DecodeHex(src)
	default:
		return fmt.Errorf("scan geometry: unsupported source %T", src)
	}
	if err != nil {
		return fmt.Errorf("scan geometry: %w", err)
	}
	g.Geometry = v
	return nil
}

// Value implements driver.Valuer.
func (g Geometry) Value() (driver.Value, error) {
	if g.Geometry == nil {
		return nil, nil
	}
	b, err := ewkb.Encode(g.Geometry, ewkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	return b, nil
}

// TWKB scans a bytea produced by ST_AsTWKB, checking that it holds exactly
// one complete geometry.
type TWKB []byte

// Scan implements sql.Scanner.
func (t *TWKB) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan twkb: unsupported source %T", src)
	}
	n, err := twkb.Skip(b)
	if err != nil {
		return fmt.Errorf("scan twkb: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("scan twkb: %d trailing bytes", len(b)-n)
	}
	*t = append((*t)[:0], b...)
	return nil
}
