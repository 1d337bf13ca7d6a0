package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ListLocationsHandler returns one page of locations, optionally filtered by region.
func ListLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region := strings.ToUpper(strings.TrimSpace(c.Query("region")))
		offset, limit := pageParams(c)

		locs, total, err := deps.Locations.List(c.UserContext(), region, offset, limit)
		if err != nil {
			return errFromDomain(c, err, "locations")
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: locs, Pagination: pg})
	}
}

// GetLocationHandler returns a single location by ID.
func GetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "location id is required")
		}
		loc, err := deps.Locations.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err, "location")
		}
		return c.JSON(loc)
	}
}

// LatestAvailabilityHandler returns the newest observation of every item at a location.
func LatestAvailabilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "location id is required")
		}
		rows, err := deps.Locations.Latest(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err, "location")
		}
		return c.JSON(rows)
	}
}

// NearbyLocationsHandler returns stored locations within a radius of a point.
// GET /v1/locations/nearby?lat=45.5&lon=-73.6&radius=1000&limit=20
func NearbyLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			return errBadRequest(c, "lat is required")
		}
		lon, err := strconv.ParseFloat(c.Query("lon"), 64)
		if err != nil {
			return errBadRequest(c, "lon is required")
		}
		radius := c.QueryFloat("radius", 1000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		limit := c.QueryInt("limit", 20)

		locs, err := deps.Locations.Nearby(c.UserContext(), lat, lon, radius, limit)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(locs)
	}
}
