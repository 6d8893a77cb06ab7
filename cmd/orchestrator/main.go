package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/flowscript/orchestrator/cmd/orchestrator/container"
	"github.com/flowscript/orchestrator/cmd/orchestrator/routes"
	"github.com/flowscript/orchestrator/common/bootstrap"
	"github.com/flowscript/orchestrator/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap common components (config, logger, DB, redis, telemetry)
	components, err := bootstrap.Setup(ctx, "orchestrator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap orchestrator: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Evict finished executions in the background
	go serviceContainer.Janitor.Start(ctx)

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e, components)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server with graceful shutdown
	srv := server.New("orchestrator", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "orchestrator",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterWorkflowRoutes(e, serviceContainer)
	routes.RegisterExecutionRoutes(e, serviceContainer)
	routes.RegisterNodeRoutes(e, serviceContainer)
	routes.RegisterWSRoutes(e, serviceContainer)
}
