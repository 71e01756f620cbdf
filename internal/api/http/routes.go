// Package httpapi exposes the query operations over JSON HTTP. This is the
// consuming edge: wall-clock defaults are resolved here, never inside the
// index or stats functions.
package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/agilewatch/agilewatch/internal/apperr"
	"github.com/agilewatch/agilewatch/internal/service"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc *service.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/rates/current", func(c *fiber.Ctx) error {
		at, err := parseAt(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		stats, err := svc.CurrentStats(at)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(stats)
	})

	v1.Get("/rates/daily", func(c *fiber.Ctx) error {
		at, err := parseAt(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		daily, err := svc.Daily(at)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(daily)
	})

	v1.Get("/rates/cheapest", func(c *fiber.Ctx) error {
		var req cheapestQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		at, err := parseAt(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		// Snap to the start of the in-progress half-hour slot so the rate
		// covering the reference instant competes for cheapest.
		at = at.Truncate(30 * time.Minute)

		rate, err := svc.Cheapest(at, time.Duration(req.Hours)*time.Hour)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"window_hours": req.Hours,
			"starts_at":    rate.ValidFrom,
			"ends_at":      rate.ValidTo,
			"price":        rate.ValueIncVAT,
		})
	})

	v1.Get("/rates/shape", func(c *fiber.Ctx) error {
		curve, err := svc.Shape()
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"curve": curve})
	})

	v1.Get("/tracker", func(c *fiber.Ctx) error {
		at, err := parseAt(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		prices, err := svc.Tracker(at)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(prices)
	})

	v1.Get("/carbon", func(c *fiber.Ctx) error {
		snap, err := svc.Carbon()
		if err != nil {
			return mapError(err)
		}
		return c.JSON(snap)
	})

	v1.Get("/region", func(c *fiber.Ctx) error {
		r := svc.Region()
		return c.JSON(fiber.Map{
			"code":        r.Code(),
			"description": r.Description(),
		})
	})
}

// cheapestQuery holds query parameters for the cheapest-window endpoint.
type cheapestQuery struct {
	Hours int `validate:"required,min=1,max=48"`
}

func (q *cheapestQuery) bind(c *fiber.Ctx) error {
	q.Hours = 3
	if s := c.Query("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("hours must be an integer")
		}
		q.Hours = n
	}
	return validate.Struct(q)
}

// parseAt reads the optional `at` query parameter (RFC3339 or unix seconds),
// defaulting to the current wall clock.
func parseAt(c *fiber.Ctx) (time.Time, error) {
	s := c.Query("at")
	if s == "" {
		return time.Now().UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid at parameter; use RFC3339 or unix seconds")
}

// mapError translates the error taxonomy onto HTTP statuses. "No data" is a
// legitimate, recoverable state and maps to 404; upstream trouble maps to
// 502 so callers can tell the two apart.
func mapError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindData:
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case apperr.KindConfig:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
