package server

import (
	"context"
	"strconv"

	"FlapBoard/internal/conf"
	"FlapBoard/internal/server/middleware"
	"FlapBoard/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer creates the admin HTTP server and registers the API
// routes.
func NewHTTPServer(
	c *conf.Server,
	circuits *service.CircuitService,
	board *service.BoardService,
	logger log.Logger,
) *http.Server {
	opts := []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.RequestLogging(logger),
		),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout > 0 {
		opts = append(opts, http.Timeout(c.HTTP.Timeout))
	}

	srv := http.NewServer(opts...)
	registerRoutes(srv, circuits, board)
	return srv
}

// handle runs a request through the server middleware chain and writes
// the JSON result.
func handle(ctx http.Context, fn func(context.Context) (interface{}, error)) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return fn(c)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// queryLimit parses the optional ?limit= parameter.
func queryLimit(ctx http.Context) int {
	limit, _ := strconv.Atoi(ctx.Query().Get("limit"))
	return limit
}

func registerRoutes(srv *http.Server, circuits *service.CircuitService, board *service.BoardService) {
	r := srv.Route("/api/v1")

	r.GET("/circuits", func(ctx http.Context) error {
		circuitType := ctx.Query().Get("type")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return circuits.ListCircuits(c, circuitType)
		})
	})

	r.GET("/circuits/{circuit_id}", func(ctx http.Context) error {
		circuitID := ctx.Vars().Get("circuit_id")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return circuits.GetCircuit(c, circuitID)
		})
	})

	r.PUT("/circuits/{circuit_id}/state", func(ctx http.Context) error {
		circuitID := ctx.Vars().Get("circuit_id")
		var req service.SetCircuitStateRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return circuits.SetCircuitState(c, circuitID, &req)
		})
	})

	r.POST("/circuits/{circuit_id}/reset", func(ctx http.Context) error {
		circuitID := ctx.Vars().Get("circuit_id")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return circuits.ResetCircuit(c, circuitID)
		})
	})

	r.GET("/providers/{provider}/status", func(ctx http.Context) error {
		provider := ctx.Vars().Get("provider")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return circuits.GetProviderStatus(c, provider)
		})
	})

	r.GET("/events", func(ctx http.Context) error {
		limit := queryLimit(ctx)
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return circuits.ListEvents(c, limit)
		})
	})

	r.GET("/frames/latest", func(ctx http.Context) error {
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return board.LatestFrame(c)
		})
	})

	r.GET("/frames", func(ctx http.Context) error {
		limit := queryLimit(ctx)
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return board.RecentFrames(c, limit)
		})
	})

	r.GET("/generators", func(ctx http.Context) error {
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return board.ListGenerators(c)
		})
	})

	r.POST("/generators/{kind}/generate", func(ctx http.Context) error {
		kind := ctx.Vars().Get("kind")
		return handle(ctx, func(c context.Context) (interface{}, error) {
			return board.GenerateFrame(c, kind)
		})
	})
}
