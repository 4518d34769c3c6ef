package http

import (
	"errors"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to the boundary service.
// Struct fields resolve through their json tags.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
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

	metadataEntryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MetadataEntry",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.String},
			"value": &graphql.Field{Type: graphql.String},
		},
	})

	polygonType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Polygon",
		Fields: graphql.Fields{
			"vertices": &graphql.Field{Type: graphql.NewList(coordinateType)},
			"metadata": &graphql.Field{
				Type: graphql.NewList(metadataEntryType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					poly, ok := p.Source.(domain.BoundaryPolygon)
					if !ok {
						return nil, nil
					}
					return metadataEntries(poly.Metadata), nil
				},
			},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Summary",
		Fields: graphql.Fields{
			"vertex_count":  &graphql.Field{Type: graphql.Int},
			"area_m2":       &graphql.Field{Type: graphql.Float},
			"area_hectares": &graphql.Field{Type: graphql.Float},
			"perimeter_m":   &graphql.Field{Type: graphql.Float},
			"centroid":      &graphql.Field{Type: coordinateType},
			"bounds":        &graphql.Field{Type: boundsType},
		},
	})

	reportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ValidationReport",
		Fields: graphql.Fields{
			"valid":  &graphql.Field{Type: graphql.Boolean},
			"errors": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	boundaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Boundary",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"revision":   &graphql.Field{Type: graphql.Int},
			"polygon":    &graphql.Field{Type: polygonType},
			"summary":    &graphql.Field{Type: summaryType},
		},
	})

	validationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Validation",
		Fields: graphql.Fields{
			"validation": &graphql.Field{Type: reportType},
			"summary":    &graphql.Field{Type: summaryType},
		},
	})

	capabilityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FormatCapability",
		Fields: graphql.Fields{
			"format":     &graphql.Field{Type: graphql.String},
			"decode":     &graphql.Field{Type: graphql.Boolean},
			"encode":     &graphql.Field{Type: graphql.Boolean},
			"extensions": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"has_boundary": &graphql.Field{Type: graphql.Boolean},
			"revision":     &graphql.Field{Type: graphql.Int},
			"updated_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	importResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ImportResult",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"format":     &graphql.Field{Type: graphql.String},
			"revision":   &graphql.Field{Type: graphql.Int},
			"applied":    &graphql.Field{Type: graphql.Boolean},
			"polygon":    &graphql.Field{Type: polygonType},
			"validation": &graphql.Field{Type: reportType},
			"summary":    &graphql.Field{Type: summaryType},
		},
	})

	changeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundaryChange",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"revision":   &graphql.Field{Type: graphql.Int},
			"cleared":    &graphql.Field{Type: graphql.Boolean},
			"at":         &graphql.Field{Type: graphql.DateTime},
		},
	})

	sessionArg := graphql.FieldConfigArgument{
		"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"formats": &graphql.Field{
				Type:        graphql.NewList(capabilityType),
				Description: "Supported formats and their decode/encode capabilities",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Boundaries.Capabilities(), nil
				},
			},
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "Known sessions",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Boundaries.List(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
				},
			},
			"boundary": &graphql.Field{
				Type:        boundaryType,
				Description: "The active boundary of a session, null when none is set",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["session"].(string)
					poly, rev, err := deps.Boundaries.Current(p.Context, id)
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return BoundaryResponse{SessionID: id, Revision: rev, Polygon: poly, Summary: usecases.Summarize(poly)}, nil
				},
			},
			"validation": &graphql.Field{
				Type:        validationType,
				Description: "Validate the active boundary of a session",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					poly, _, err := deps.Boundaries.Current(p.Context, p.Args["session"].(string))
					if err != nil {
						return nil, err
					}
					return ValidationResponse{Validation: deps.Boundaries.Validate(poly), Summary: usecases.Summarize(poly)}, nil
				},
			},
			"validateWKT": &graphql.Field{
				Type:        validationType,
				Description: "Validate a WKT polygon without storing it",
				Args: graphql.FieldConfigArgument{
					"wkt": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					poly, _, err := deps.Boundaries.Decode(p.Context, domain.FormatWKT, "", []byte(p.Args["wkt"].(string)))
					if err != nil {
						return nil, err
					}
					return ValidationResponse{Validation: deps.Boundaries.Validate(poly), Summary: usecases.Summarize(poly)}, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"importWKT": &graphql.Field{
				Type:        importResultType,
				Description: "Replace a session's boundary with a WKT polygon",
				Args: graphql.FieldConfigArgument{
					"session":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"wkt":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"rejectInvalid": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := usecases.ImportRequest{
						SessionID: p.Args["session"].(string),
						Format:    domain.FormatWKT,
						Data:      []byte(p.Args["wkt"].(string)),
					}
					if v, ok := p.Args["rejectInvalid"].(bool); ok {
						req.RejectInvalid = &v
					}
					res, err := deps.Boundaries.Import(p.Context, req)
					if errors.Is(err, domain.ErrValidationFailed) && res != nil {
						// Rejected imports are reported through applied=false and the report.
						return res, nil
					}
					return res, err
				},
			},
			"clearBoundary": &graphql.Field{
				Type:        changeType,
				Description: "Remove a session's boundary",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Boundaries.Clear(p.Context, p.Args["session"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
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

func metadataEntries(m map[string]string) []map[string]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, map[string]string{"key": k, "value": m[k]})
	}
	return entries
}
