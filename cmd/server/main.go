package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"surveyexplorer/internal/api"
	"surveyexplorer/internal/config"
	"surveyexplorer/internal/crosstab"
	"surveyexplorer/internal/dimensions"
	"surveyexplorer/internal/duck"
	"surveyexplorer/internal/engine"
	"surveyexplorer/internal/session"
)

var (
	configPath string
	flagAddr   string
	flagData   string
	flagExec   string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the survey explorer API",
	Long: `Loads the survey dataset in the background and serves filter, chart and
crosstab views over HTTP. Routes answer 503 until the dataset is ready.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	rootCmd.Flags().StringVar(&flagData, "data", "", "dataset CSV path (overrides config)")
	rootCmd.Flags().StringVar(&flagExec, "executor", "", "columnar or duckdb (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagData != "" {
		cfg.DataPath = flagData
	}
	if flagExec != "" {
		cfg.Executor = flagExec
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)

	// 1. Initialize Echo (Starts Instantly)
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// 2. Initialize Handler with NIL session
	// The API is now "live" but will return 503 (Loading) if hit
	h := api.NewHandler(nil)
	h.RegisterRoutes(e)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 3. Load the dataset in the background
	go func() {
		log.Infof("BACKGROUND: loading %s with %s executor...", cfg.DataPath, cfg.Executor)
		t0 := time.Now()

		reg := dimensions.Default()
		exec, err := openExecutor(ctx, cfg, reg)
		if err != nil {
			log.Errorf("BACKGROUND: load failed: %v", err)
			return
		}
		sess, err := session.New(ctx, exec, reg,
			session.WithChartDimensions(cfg.Charts...),
			session.WithChartLimit(cfg.ChartTopN),
			session.WithPivot(cfg.PivotRow, cfg.PivotCol, crosstab.MetricCount),
			session.WithParallelViews(cfg.ParallelViews),
		)
		if err != nil {
			log.Errorf("BACKGROUND: session setup failed: %v", err)
			return
		}
		sess.Refresh()
		h.SetSession(sess)

		log.Infof("BACKGROUND: dataset ready in %v. API is fully ready.", time.Since(t0))
	}()

	// 4. Start Server
	log.Infof("Server ready on %s (data loading in background...)", cfg.Addr)
	return e.Start(cfg.Addr)
}

func openExecutor(ctx context.Context, cfg config.Config, reg *dimensions.Registry) (crosstab.Executor, error) {
	if cfg.Executor == config.ExecutorDuckDB {
		db, err := duck.Open(ctx, cfg.DataPath, cfg.Table)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	store, err := engine.LoadColumnar(cfg.DataPath, reg, cfg.Workers)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DEBUG)
	case "warn":
		log.SetLevel(log.WARN)
	case "error":
		log.SetLevel(log.ERROR)
	default:
		log.SetLevel(log.INFO)
	}
}
