package http

import (
	"encoding/hex"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geowire/internal/adapters/geojson"
	"github.com/samirrijal/geowire/internal/core/domain"
	"github.com/samirrijal/geowire/internal/core/usecases"
	"github.com/samirrijal/geowire/internal/pkg/ewkb"
	"github.com/samirrijal/geowire/internal/pkg/geospatial"
)

// binary reports whether f is carried as hex in GraphQL strings.
func binary(f domain.Format) bool {
	return f == domain.FormatEWKB || f == domain.FormatTWKB
}

// featureToGQL flattens a feature into the shape of the Feature type.
// Geometry is offered as GeoJSON and as EWKB hex.
func featureToGQL(f *domain.Feature) (map[string]any, error) {
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return nil, err
	}
	ewkbHex, err := ewkb.EncodeHex(f.Geometry, ewkb.NDR)
	if err != nil {
		return nil, err
	}
	m := map[string]any{
		"id":           f.ID,
		"layer":        f.Layer,
		"name":         f.Name,
		"properties":   string(props),
		"geometryType": f.Geometry.Type().String(),
		"ewkbHex":      ewkbHex,
		"bounds":       domain.BoundsOf(f.Geometry),
		"frame":        string(f.CurrentFrame()),
		"createdAt":    f.CreatedAt,
		"updatedAt":    f.UpdatedAt,
	}
	// GeoJSON has no M ordinate; such features only expose EWKB
	if !f.Geometry.Layout().HasM() {
		gj, err := (geojson.Codec{}).Marshal(f.Geometry)
		if err != nil {
			return nil, err
		}
		m["geojson"] = string(gj)
	}
	return m, nil
}

func featuresToGQL(fs []domain.Feature) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(fs))
	for i := range fs {
		m, err := featureToGQL(&fs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feature",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"layer":        &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"properties":   &graphql.Field{Type: graphql.String, Description: "Properties as a JSON object"},
			"geometryType": &graphql.Field{Type: graphql.String},
			"geojson":      &graphql.Field{Type: graphql.String, Description: "GeoJSON geometry, null for measured geometries"},
			"ewkbHex":      &graphql.Field{Type: graphql.String},
			"bounds":       &graphql.Field{Type: boundsType},
			"frame":        &graphql.Field{Type: graphql.String, Description: "wgs84 or gcj02"},
			"createdAt":    &graphql.Field{Type: graphql.DateTime},
			"updatedAt":    &graphql.Field{Type: graphql.DateTime},
		},
	})

	featurePageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FeaturePage",
		Fields: graphql.Fields{
			"total":  &graphql.Field{Type: graphql.Int},
			"offset": &graphql.Field{Type: graphql.Int},
			"limit":  &graphql.Field{Type: graphql.Int},
			"items":  &graphql.Field{Type: graphql.NewList(featureType)},
		},
	})

	convertResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ConvertResult",
		Fields: graphql.Fields{
			"data":               &graphql.Field{Type: graphql.String, Description: "Encoded geometry, hex for ewkb and twkb"},
			"format":             &graphql.Field{Type: graphql.String},
			"geometryType":       &graphql.Field{Type: graphql.String},
			"layout":             &graphql.Field{Type: graphql.String},
			"srid":               &graphql.Field{Type: graphql.Int},
			"displacementMeters": &graphql.Field{Type: graphql.Float},
			"bounds":             &graphql.Field{Type: boundsType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"feature": &graphql.Field{
				Type:        featureType,
				Description: "Get a feature by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					f, err := deps.Features.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return featureToGQL(f)
				},
			},
			"features": &graphql.Field{
				Type:        featurePageType,
				Description: "One page of a layer, ordered by id",
				Args: graphql.FieldConfigArgument{
					"layer":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					offset, _ := p.Args["offset"].(int)
					limit, _ := p.Args["limit"].(int)
					fs, total, err := deps.Features.List(p.Context, p.Args["layer"].(string), offset, limit)
					if err != nil {
						return nil, err
					}
					items, err := featuresToGQL(fs)
					if err != nil {
						return nil, err
					}
					return map[string]any{"total": total, "offset": offset, "limit": limit, "items": items}, nil
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(featureType),
				Description: "Features within a radius of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					radius, _ := p.Args["radius"].(float64)
					limit, _ := p.Args["limit"].(int)
					fs, err := deps.Features.Nearby(p.Context, p.Args["lat"].(float64), p.Args["lon"].(float64), radius, limit)
					if err != nil {
						return nil, err
					}
					return featuresToGQL(fs)
				},
			},
			"convert": &graphql.Field{
				Type:        convertResultType,
				Description: "Re-encode a geometry. Binary formats are passed as hex.",
				Args: graphql.FieldConfigArgument{
					"data":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"from":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"to":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"precision": &graphql.ArgumentConfig{Type: graphql.Int},
					"transform": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					from, err := domain.ParseFormat(p.Args["from"].(string))
					if err != nil {
						return nil, err
					}
					to, err := domain.ParseFormat(p.Args["to"].(string))
					if err != nil {
						return nil, err
					}
					req := usecases.ConvertRequest{Data: []byte(p.Args["data"].(string)), From: from, To: to}
					if binary(from) {
						if req.Data, err = hex.DecodeString(p.Args["data"].(string)); err != nil {
							return nil, err
						}
					}
					if n, ok := p.Args["precision"].(int); ok {
						req.Precision = &n
					}
					if t, ok := p.Args["transform"].(string); ok && t != "" {
						dir, err := geospatial.ParseDirection(t)
						if err != nil {
							return nil, err
						}
						req.Transform = &dir
					}

					res, err := deps.Convert.Convert(p.Context, req)
					if err != nil {
						return nil, err
					}
					data := string(res.Data)
					if binary(to) {
						data = hex.EncodeToString(res.Data)
					}
					return map[string]any{
						"data":               data,
						"format":             string(res.Format),
						"geometryType":       res.GeometryType,
						"layout":             res.Layout,
						"srid":               int(res.SRID),
						"displacementMeters": res.DisplacementMeters,
						"bounds":             res.Bounds,
					}, nil
				},
			},
			"transform": &graphql.Field{
				Type:        geoPointType,
				Description: "Convert one coordinate between WGS-84 and GCJ-02",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"direction": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "to_gcj02"},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					dirArg, _ := p.Args["direction"].(string)
					dir, err := geospatial.ParseDirection(dirArg)
					if err != nil {
						return nil, err
					}
					return deps.Convert.TransformPoint(p.Args["lat"].(float64), p.Args["lon"].(float64), dir), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
