package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/rideo/rideo_core/internal/api"
	"github.com/rideo/rideo_core/internal/cache"
	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/db"
	"github.com/rideo/rideo_core/internal/middleware"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/routing"
	"github.com/rideo/rideo_core/internal/sources"
	"github.com/rideo/rideo_core/internal/tariff"
)

func main() {
	if os.Getenv("RIDEO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("RIDEO_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "rideo",
		Description: "Multi-leg itinerary planner - graph search, tariffs and the HTTP API",

		Commands: []*cli.Command{
			{
				Name:  "api",
				Usage: "Run the HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "listen address"},
				},
				Action: runAPI,
			},
			{
				Name:  "import",
				Usage: "Import the catalog snapshot into Postgres",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data-dir", Value: "./data", Usage: "local snapshot directory"},
					&cli.BoolFlag{Name: "with-gars", Usage: "also pull the GARS stop and segment catalog"},
				},
				Action: runImport,
			},
			{
				Name:      "quote",
				Usage:     "Resolve a standalone tariff quote",
				ArgsUsage: "ROUTE_KEY FROM_KEY TO_KEY [DATE]",
				Action:    runQuote,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func runAPI(c *cli.Context) error {
	ctx := c.Context

	garsCfg := sources.LoadGARSConfigFromEnv()
	gars := sources.NewGARSClient(garsCfg)

	cat := catalog.NewCatalog()
	tariffs := tariff.NewStore()
	var base []models.Segment

	dbEnabled := getEnv("RIDEO_CATALOG_SOURCE", "local") == "db"
	if dbEnabled {
		pool, err := db.GetDB()
		if err != nil {
			return fmt.Errorf("catalog source is db but the connection failed: %w", err)
		}
		defer db.Close()

		store := db.NewCatalogStore(pool)
		stops, err := store.LoadStops(ctx)
		if err != nil {
			return err
		}
		base, err = store.LoadSegments(ctx)
		if err != nil {
			return err
		}
		cat.LoadStops(stops)
		log.Info().Int("stops", len(stops)).Int("segments", len(base)).Msg("Catalog loaded from Postgres")
	} else {
		demo := sources.NewDemoSource(getEnv("RIDEO_DATA_DIR", "./data"))

		var extras []catalog.StopSource
		if garsCfg.BaseURL != "" {
			extras = append(extras, gars)
		}
		if err := cat.Load(ctx, demo, extras...); err != nil {
			return err
		}

		segments, err := demo.FetchSegmentCatalog(ctx)
		if err != nil {
			return err
		}
		base = segments

		if garsCfg.BaseURL != "" {
			garsSegments, err := gars.FetchSegmentCatalog(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("GARS segments unavailable, continuing with local catalog only")
			} else {
				base = append(base, garsSegments...)
			}
		}
	}

	if garsCfg.BaseURL != "" {
		if err := tariffs.Load(ctx, gars); err != nil {
			log.Warn().Err(err).Msg("Tariff snapshot degraded")
		}
	} else {
		log.Info().Msg("GARS_BASE_URL not set, tariff resolution disabled")
		tariffs.LoadDocuments(nil)
	}

	var fetchers []sources.SegmentFetcher
	yandexCfg := sources.LoadYandexConfigFromEnv()
	if yandexCfg.APIKey != "" {
		fetchers = append(fetchers, sources.NewYandexClient(yandexCfg))
	} else {
		log.Info().Msg("YANDEX_RASP_API_KEY not set, long-distance segments disabled")
	}

	cacheEnabled := false
	var rateLimit fiber.Handler
	if rdb, err := cache.GetClient(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, search cache and rate limiting disabled")
	} else {
		cacheEnabled = true
		rateLimit = middleware.RateLimitMiddleware(rdb, middleware.LoadRateLimitConfigFromEnv())
		defer cache.Close()
	}

	planner := routing.NewPlanner(cat, tariffs, base, fetchers, routing.LoadConfigFromEnv())

	server := &api.Server{
		Planner:      planner,
		Tariffs:      tariffs,
		Catalog:      cat,
		CacheEnabled: cacheEnabled,
		CacheTTL:     cache.LoadConfigFromEnv().TTL,
		RateLimit:    rateLimit,
		DBEnabled:    dbEnabled,
	}

	return server.Listen(c.String("addr"))
}

func runImport(c *cli.Context) error {
	ctx := c.Context

	demo := sources.NewDemoSource(c.String("data-dir"))
	stops, err := demo.FetchStops(ctx)
	if err != nil {
		return err
	}
	segments, err := demo.FetchSegmentCatalog(ctx)
	if err != nil {
		return err
	}

	if c.Bool("with-gars") {
		gars := sources.NewGARSClient(sources.LoadGARSConfigFromEnv())

		garsStops, err := gars.FetchStops(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch GARS stops: %w", err)
		}
		stops = append(stops, garsStops...)

		garsSegments, err := gars.FetchSegmentCatalog(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch GARS segments: %w", err)
		}
		segments = append(segments, garsSegments...)
	}

	pool, err := db.GetDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.NewCatalogStore(pool).ImportSnapshot(ctx, stops, segments)
}

func runQuote(c *cli.Context) error {
	if c.NArg() < 3 {
		return fmt.Errorf("usage: rideo quote ROUTE_KEY FROM_KEY TO_KEY [DATE]")
	}

	when := time.Now().UTC()
	if c.NArg() >= 4 {
		parsed, err := time.Parse("2006-01-02", c.Args().Get(3))
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", c.Args().Get(3))
		}
		when = parsed
	}

	gars := sources.NewGARSClient(sources.LoadGARSConfigFromEnv())
	tariffs := tariff.NewStore()
	if err := tariffs.Load(c.Context, gars); err != nil {
		return err
	}

	price, ok := tariffs.Resolve(c.Args().Get(0), c.Args().Get(1), c.Args().Get(2), when)
	if !ok {
		fmt.Println("no fare found")
		return nil
	}

	fmt.Printf("%.2f\n", price)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
