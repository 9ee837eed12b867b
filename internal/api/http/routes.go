package httpapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/MiX1964/wforecast/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1", RequestID())

	v1.Get("/places/resolve", func(c *fiber.Ctx) error {
		q := resolveQuery{Name: strings.TrimSpace(c.Query("name"))}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "name query parameter is required")
		}

		res, err := service.ResolveByName(c.UserContext(), q.Name)
		if err != nil {
			return toHTTPError(err, "place lookup unavailable")
		}
		return c.JSON(res)
	})

	v1.Post("/places/locate", func(c *fiber.Ctx) error {
		var req locateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.ResolveByPosition(c.UserContext(), req.toPosition())
		if err != nil {
			return toHTTPError(err, "place lookup unavailable")
		}
		return c.JSON(res)
	})

	v1.Get("/places", func(c *fiber.Ctx) error {
		places, err := service.ListPlaces(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"places": places})
	})

	v1.Get("/places/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		place, err := service.GetPlace(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err, "place cache unavailable")
		}
		return c.JSON(place)
	})

	v1.Delete("/places/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		if err := service.DeletePlace(c.UserContext(), id); err != nil {
			return toHTTPError(err, "place cache unavailable")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		place := strings.TrimSpace(c.Query("place"))
		if place == "" {
			return fiber.NewError(fiber.StatusBadRequest, "place query parameter is required")
		}

		obs, err := service.GetCurrentWeather(c.UserContext(), place)
		if err != nil {
			return toHTTPError(err, "weather provider unavailable")
		}
		return c.JSON(obs)
	})

	v1.Get("/forecast/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		bundle, err := service.GetForecast(c.UserContext(), id)
		if err != nil {
			return toHTTPError(err, "weather provider unavailable")
		}
		return c.JSON(bundle)
	})

	v1.Get("/stations", func(c *fiber.Ctx) error {
		var q stationsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stations, err := service.StationsNear(c.UserContext(), weather.GeoPosition{Latitude: q.Lat, Longitude: q.Lon}, q.Limit)
		if err != nil {
			return toHTTPError(err, "weather provider unavailable")
		}
		return c.JSON(fiber.Map{"stations": stations})
	})
}

type resolveQuery struct {
	Name string `validate:"required"`
}

// locateRequest is the body of a browser geolocation fix.
type locateRequest struct {
	Lat      *float64 `json:"lat" validate:"required,latitude"`
	Lon      *float64 `json:"lon" validate:"required,longitude"`
	Accuracy *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

func (r locateRequest) toPosition() weather.GeoPosition {
	return weather.GeoPosition{
		Latitude:       *r.Lat,
		Longitude:      *r.Lon,
		AccuracyMeters: r.Accuracy,
	}
}

// stationsQuery holds query parameters for the stations endpoint.
type stationsQuery struct {
	Lat   float64 `validate:"latitude"`
	Lon   float64 `validate:"longitude"`
	Limit int     `validate:"gte=0,lte=50"`
}

func (q *stationsQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Lat, err = parseFloatQuery(c, "lat"); err != nil {
		return err
	}
	if q.Lon, err = parseFloatQuery(c, "lon"); err != nil {
		return err
	}
	if s := c.Query("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("invalid limit %q", s)
		}
	}
	return nil
}

func parseFloatQuery(c *fiber.Ctx, key string) (float64, error) {
	s := c.Query(key)
	if s == "" {
		return 0, fmt.Errorf("%s query parameter is required", key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}
