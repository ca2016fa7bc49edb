package http

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geowire/internal/adapters/geojson"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/usecases"
	"github.com/samirrijal/geowire/internal/pkg/geom"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

const httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

const (
	headerGeometryType   = "X-Geometry-Type"
	headerGeometryLayout = "X-Geometry-Layout"
	headerGeometrySRID   = "X-Geometry-SRID"
	headerGeometryCount  = "X-Geometry-Count"
	headerDisplacement   = "X-Displacement-Meters"
	headerFeatureLayer   = "X-Feature-Layer"
)

// ConvertHandler re-encodes the raw request body from one geometry format
// into another, optionally applying the GCJ-02 transform on the way.
func ConvertHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := domain.ParseFormat(c.Query("from"))
		if err != nil {
			return errBadRequest(c, "from: "+err.Error())
		}
		to, err := domain.ParseFormat(c.Query("to"))
		if err != nil {
			return errBadRequest(c, "to: "+err.Error())
		}
		if len(c.Body()) == 0 {
			return errBadRequest(c, "request body is empty")
		}

		req := usecases.ConvertRequest{Data: c.Body(), From: from, To: to}
		if p := c.Query("precision"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return errBadRequest(c, "precision must be an integer")
			}
			req.Precision = &n
		}
		if t := c.Query("transform"); t != "" {
			dir, err := geospatial.ParseDirection(t)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			req.Transform = &dir
		}

		res, err := deps.Convert.Convert(c.UserContext(), req)
		if err != nil {
			return errFromService(c, err)
		}

		c.Set(headerGeometryType, res.GeometryType)
		c.Set(headerGeometryLayout, res.Layout)
		c.Set(headerGeometrySRID, strconv.Itoa(int(res.SRID)))
		if req.Transform != nil {
			c.Set(headerDisplacement, strconv.FormatFloat(res.DisplacementMeters, 'f', 3, 64))
		}
		c.Set(fiber.HeaderContentType, res.Format.ContentType())
		return c.Send(res.Data)
	}
}

// TransformResponse is a single converted coordinate.
type TransformResponse struct {
	Input              domain.GeoPoint      `json:"input"`
	Output             domain.GeoPoint      `json:"output"`
	Direction          geospatial.Direction `json:"direction"`
	DisplacementMeters float64              `json:"displacement_meters"`
}

// TransformPointHandler converts one lat/lon between WGS-84 and GCJ-02.
func TransformPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat := c.QueryFloat("lat")
		lon := c.QueryFloat("lon")
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "lat must be within ±90 and lon within ±180")
		}
		dir, err := geospatial.ParseDirection(c.Query("direction"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		out := deps.Convert.TransformPoint(lat, lon, dir)
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(TransformResponse{
			Input:              domain.GeoPoint{Lat: lat, Lon: lon},
			Output:             out,
			Direction:          dir,
			DisplacementMeters: geospatial.Haversine(lat, lon, out.Lat, out.Lon),
		})
	}
}

// pageParams reads offset and limit with the same bounds the feature
// service applies.
func pageParams(c *fiber.Ctx) (offset, limit int) {
	offset = max(c.QueryInt("offset", 0), 0)
	limit = c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return offset, limit
}

// ListLayerFeaturesHandler returns one page of a layer, either as a GeoJSON
// FeatureCollection or as concatenated size-prefixed TWKB.
func ListLayerFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layer := c.Params("layer")
		offset, limit := pageParams(c)

		switch format := c.Query("format", string(domain.FormatGeoJSON)); domain.Format(format) {
		case domain.FormatGeoJSON:
			features, total, err := deps.Features.List(c.UserContext(), layer, offset, limit)
			if err != nil {
				return errFromService(c, err)
			}
			body, err := geojson.MarshalFeatureCollection(features)
			if err != nil {
				return errFromService(c, err)
			}
			SetLinkHeaders(c, Pagination{Offset: offset, Limit: limit, Total: total})
			c.Set(fiber.HeaderContentType, domain.FormatGeoJSON.ContentType())
			return c.Send(body)

		case domain.FormatTWKB:
			precision := c.QueryInt("precision", deps.Convert.Defaults().TWKBPrecision)
			geoms, total, err := deps.Features.ListTWKB(c.UserContext(), layer, precision, offset, limit)
			if err != nil {
				return errFromService(c, err)
			}
			var body []byte
			for _, g := range geoms {
				body = append(body, g...)
			}
			SetLinkHeaders(c, Pagination{Offset: offset, Limit: limit, Total: total})
			c.Set(headerGeometryCount, strconv.Itoa(len(geoms)))
			c.Set(fiber.HeaderContentType, domain.FormatTWKB.ContentType())
			return c.Send(body)

		default:
			return errBadRequest(c, "format must be geojson or twkb")
		}
	}
}

// StartTransformRequest is the body of a layer transform request.
type StartTransformRequest struct {
	TargetLayer string `json:"target_layer"`
	Direction   string `json:"direction"`
}

// StartLayerTransformHandler launches a background transform of a layer.
func StartLayerTransformHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body StartTransformRequest
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return errBadRequest(c, "invalid JSON body")
			}
		}
		dir, err := geospatial.ParseDirection(body.Direction)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		req := domain.LayerTransform{
			Layer:       c.Params("layer"),
			TargetLayer: body.TargetLayer,
			Direction:   dir,
		}
		runID, err := deps.Features.StartLayerTransform(c.UserContext(), req)
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"run_id":       runID,
			"layer":        req.Layer,
			"target_layer": req.TargetLayer,
			"direction":    req.Direction,
		})
	}
}

// NearbyFeaturesHandler returns the features within a radius of a point as
// a GeoJSON FeatureCollection, nearest first.
func NearbyFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius", 500)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}

		features, err := deps.Features.Nearby(c.UserContext(),
			c.QueryFloat("lat"), c.QueryFloat("lon"), radius, c.QueryInt("limit", 50))
		if err != nil {
			return errFromService(c, err)
		}
		body, err := geojson.MarshalFeatureCollection(features)
		if err != nil {
			return errFromService(c, err)
		}
		c.Set(fiber.HeaderContentType, domain.FormatGeoJSON.ContentType())
		return c.Send(body)
	}
}

// GetFeatureHandler returns a feature as a GeoJSON Feature, or only its
// geometry when another format is requested.
func GetFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := domain.ParseFormat(c.Query("format", string(domain.FormatGeoJSON)))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return sendFeature(c, deps, format)
	}
}

// FeatureEWKBHandler returns a feature's geometry as EWKB. It predates the
// format parameter of GetFeatureHandler.
func FeatureEWKBHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return sendFeature(c, deps, domain.FormatEWKB)
	}
}

func sendFeature(c *fiber.Ctx, deps *Dependencies, format domain.Format) error {
	f, err := deps.Features.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return errFromService(c, err)
	}

	var body []byte
	if format == domain.FormatGeoJSON {
		body, err = geojson.MarshalFeature(f)
	} else {
		var precision *int
		if p := c.Query("precision"); p != "" {
			n, convErr := strconv.Atoi(p)
			if convErr != nil {
				return errBadRequest(c, "precision must be an integer")
			}
			precision = &n
		}
		body, err = deps.Convert.Encode(c.UserContext(), f.Geometry, format, precision)
	}
	if err != nil {
		return errFromService(c, err)
	}

	c.Set(headerFeatureLayer, f.Layer)
	if !f.UpdatedAt.IsZero() {
		c.Set(fiber.HeaderLastModified, f.UpdatedAt.UTC().Format(httpTimeFormat))
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(body)
}

// PutFeatureRequest is the body of a feature write. Exactly one of Geometry
// (GeoJSON) and EWKBHex carries the geometry.
type PutFeatureRequest struct {
	Layer      string          `json:"layer"`
	Name       string          `json:"name"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
	EWKBHex    string          `json:"ewkb_hex"`
	Frame      domain.Frame    `json:"frame"`
}

// PutFeatureHandler creates or replaces a feature.
func PutFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PutFeatureRequest
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		var (
			g   geom.Geometry
			err error
		)
		switch {
		case body.EWKBHex != "" && len(body.Geometry) > 0:
			return errBadRequest(c, "geometry and ewkb_hex are mutually exclusive")
		case body.EWKBHex != "":
			g, err = deps.Convert.Decode(c.UserContext(), []byte(body.EWKBHex), domain.FormatEWKBHex)
		case len(body.Geometry) > 0:
			g, err = deps.Convert.Decode(c.UserContext(), body.Geometry, domain.FormatGeoJSON)
		default:
			return errBadRequest(c, "geometry or ewkb_hex is required")
		}
		if err != nil {
			return errFromService(c, err)
		}

		f := &domain.Feature{
			ID:         c.Params("id"),
			Layer:      body.Layer,
			Name:       body.Name,
			Properties: body.Properties,
			Geometry:   g,
			Frame:      body.Frame,
		}
		if err := deps.Features.Put(c.UserContext(), f); err != nil {
			return errFromService(c, err)
		}
		return c.JSON(f)
	}
}

// DeleteFeatureHandler removes a feature.
func DeleteFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Features.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
