package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
// Field names follow the JSON tags of the domain types, which graphql-go's
// default resolver reads.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"location_id": &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"city":        &graphql.Field{Type: graphql.String},
			"region":      &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: geoPointType},
			"distance":    &graphql.Field{Type: graphql.Float},
		},
	})

	availabilityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Availability",
		Fields: graphql.Fields{
			"location_id":  &graphql.Field{Type: graphql.String},
			"item_id":      &graphql.Field{Type: graphql.String},
			"item_name":    &graphql.Field{Type: graphql.String},
			"is_available": &graphql.Field{Type: graphql.Boolean},
			"price_cents":  &graphql.Field{Type: graphql.Int},
			"checked_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"locations": &graphql.Field{
				Type:        graphql.NewList(locationType),
				Description: "List locations, optionally by region",
				Args: graphql.FieldConfigArgument{
					"region": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					region, _ := p.Args["region"].(string)
					offset, _ := p.Args["offset"].(int)
					limit, _ := p.Args["limit"].(int)
					locs, _, err := deps.Locations.List(p.Context, region, offset, limit)
					return locs, err
				},
			},
			"location": &graphql.Field{
				Type:        locationType,
				Description: "Get a location by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					loc, err := deps.Locations.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					return loc, err
				},
			},
			"latest": &graphql.Field{
				Type:        graphql.NewList(availabilityType),
				Description: "Latest availability of every item at a location",
				Args: graphql.FieldConfigArgument{
					"location_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Locations.Latest(p.Context, p.Args["location_id"].(string))
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(locationType),
				Description: "Stored locations near a point",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Locations.Nearby(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64),
						p.Args["radius"].(float64), p.Args["limit"].(int))
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
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
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
