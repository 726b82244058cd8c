// Package main is the entry point of the FlapBoard service.
// It wires the circuit breaker engine, the generation scheduler and the
// admin HTTP server into a Kratos application.
package main

import (
	"context"
	"flag"
	"os"

	"FlapBoard/internal/biz"
	"FlapBoard/internal/board"
	"FlapBoard/internal/conf"
	zapLogger "FlapBoard/pkg/log"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/robfig/cron/v3"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "FlapBoard"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

// newBoardLayout builds the character grid layout from configuration.
func newBoardLayout(cfg *conf.Board) *board.Layout {
	return board.NewLayout(cfg.Rows, cfg.Cols)
}

func newApp(
	logger log.Logger,
	hs *http.Server,
	breaker *biz.CircuitBreakerUsecase,
	generator *biz.GeneratorUsecase,
	cronCfg *conf.Cron,
) *kratos.App {
	var crons []*cron.Cron

	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
		kratos.BeforeStart(func(ctx context.Context) error {
			breaker.Initialize(ctx)
			if c := StartGenerationCron(cronCfg.GenerateSpec, generator, logger); c != nil {
				crons = append(crons, c)
			}
			if c := StartRecoveryCron(cronCfg.RecoverySpec, breaker, logger); c != nil {
				crons = append(crons, c)
			}
			return nil
		}),
		kratos.AfterStop(func(ctx context.Context) error {
			for _, c := range crons {
				c.Stop()
			}
			return nil
		}),
	)
}

func main() {
	flag.Parse()

	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// Fallback logger; zap is not up yet.
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	logger := log.With(zapLogger.NewKratosAdapter(zapLog),
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	log.NewHelper(logger).Infow(
		"msg", "FlapBoard service starting",
		"log.level", bc.Log.Level,
		"log.format", bc.Log.Format,
		"board.rows", bc.Board.Rows,
		"board.cols", bc.Board.Cols,
	)

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.AI, bc.Circuit, bc.Board, bc.Prompt, bc.Cron, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
