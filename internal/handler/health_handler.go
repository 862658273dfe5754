package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mindcare-api/internal/config"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// HealthProbe checks one backing dependency.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck reports service identity and the state of every probe. Any failing
// probe marks the service degraded and answers 503.
func HealthCheck(cfg config.Config, probes ...HealthProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
		defer cancel()

		results := make([]string, len(probes))
		var group errgroup.Group
		for i, probe := range probes {
			i, probe := i, probe
			group.Go(func() error {
				results[i] = "up"
				if err := probe.Check(ctx); err != nil {
					results[i] = "down"
				}
				return nil
			})
		}
		_ = group.Wait()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if len(probes) > 0 {
			payload.Dependencies = make(map[string]string, len(probes))
		}
		for i, probe := range probes {
			payload.Dependencies[probe.Name] = results[i]
			if results[i] != "up" {
				payload.Status = "degraded"
			}
		}

		if payload.Status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service degraded",
			})
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
