package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the route service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float, Resolve: resolveLat},
			"lon": &graphql.Field{Type: graphql.Float, Resolve: resolveLon},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"session_id":      &graphql.Field{Type: graphql.String},
			"version":         &graphql.Field{Type: graphql.Int, Resolve: resolveRouteVersion},
			"cost":            &graphql.Field{Type: graphql.Float},
			"distance_meters": &graphql.Field{Type: graphql.Float},
			"stale":           &graphql.Field{Type: graphql.Boolean},
			"destination":     &graphql.Field{Type: geoPointType},
			"path":            &graphql.Field{Type: graphql.NewList(geoPointType)},
			"computed_at":     &graphql.Field{Type: graphql.String, Resolve: resolveComputedAt},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"status":         &graphql.Field{Type: graphql.String},
			"version":        &graphql.Field{Type: graphql.Int, Resolve: resolveSessionVersion},
			"traveler":       &graphql.Field{Type: geoPointType},
			"hazard":         &graphql.Field{Type: geoPointType, Resolve: resolveHazard},
			"safe_zones":     &graphql.Field{Type: graphql.NewList(geoPointType)},
			"recomputations": &graphql.Field{Type: graphql.Int},
			"route":          &graphql.Field{Type: routeType, Resolve: resolveSessionRoute},
		},
	})

	gridType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Grid",
		Fields: graphql.Fields{
			"name":         &graphql.Field{Type: graphql.String},
			"rows":         &graphql.Field{Type: graphql.Int},
			"cols":         &graphql.Field{Type: graphql.Int},
			"connectivity": &graphql.Field{Type: graphql.Int, Resolve: resolveConnectivity},
			"safe_zones":   &graphql.Field{Type: graphql.NewList(geoPointType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a live session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.Session(p.Context, p.Args["id"].(string))
				},
			},
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "List live sessions, oldest first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					list := deps.Routes.ListSessions(p.Context)
					if limit >= 0 && len(list) > limit {
						list = list[:limit]
					}
					out := make([]*domain.Session, len(list))
					for i := range list {
						out[i] = &list[i]
					}
					return out, nil
				},
			},
			"grid": &graphql.Field{
				Type:        gridType,
				Description: "The navigation grid",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					info := deps.Routes.Grid().Info()
					return &info, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// Field resolvers for values the default resolver cannot coerce.

func resolveLat(p graphql.ResolveParams) (interface{}, error) {
	return p.Source.(domain.GeoPoint).Latitude, nil
}

func resolveLon(p graphql.ResolveParams) (interface{}, error) {
	return p.Source.(domain.GeoPoint).Longitude, nil
}

func resolveRouteVersion(p graphql.ResolveParams) (interface{}, error) {
	return int(p.Source.(*domain.Route).Version), nil
}

func resolveComputedAt(p graphql.ResolveParams) (interface{}, error) {
	return p.Source.(*domain.Route).ComputedAt.Format(time.RFC3339Nano), nil
}

func resolveSessionVersion(p graphql.ResolveParams) (interface{}, error) {
	return int(p.Source.(*domain.Session).Version), nil
}

func resolveHazard(p graphql.ResolveParams) (interface{}, error) {
	if h := p.Source.(*domain.Session).Hazard; h != nil {
		return *h, nil
	}
	return nil, nil
}

func resolveSessionRoute(p graphql.ResolveParams) (interface{}, error) {
	if r := p.Source.(*domain.Session).Route; r != nil {
		return r, nil
	}
	return nil, nil
}

func resolveConnectivity(p graphql.ResolveParams) (interface{}, error) {
	return int(p.Source.(*domain.GridInfo).Connectivity), nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
