package container

import (
	"context"
	"fmt"
	"time"

	"finportal/adapters/excel"
	"finportal/adapters/warehouse"
	"finportal/app"
	"finportal/domain/report"
	"finportal/internal"
	"finportal/internal/cache"
	"finportal/internal/config"
	"finportal/internal/errors"
	"finportal/ports"

	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	Warehouse ports.Warehouse
	Store     cache.Store
	Redis     *redis.Client

	// Services
	Catalog *report.Catalog
	Reports *app.ReportService

	log *internal.Logger
}

// New wires the container from configuration: warehouse, cache store,
// loaders and the report service. Connections are verified on the way.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		log:    internal.DefaultLogger.With("Container"),
	}

	if err := c.initWarehouse(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize warehouse: %w", err)
	}
	if err := c.initCache(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if err := c.initServices(time.Now()); err != nil {
		c.Shutdown(ctx)
		return nil, err
	}

	c.log.Info("initialized (warehouse=%s cache=%s)", cfg.Warehouse.Driver, cfg.Cache.Backend)
	return c, nil
}

func (c *Container) initWarehouse(ctx context.Context) error {
	cfg := c.Config
	if cfg.Warehouse.Driver == "file" {
		excelConfig := excel.DefaultExcelConfig()
		excelConfig.FilePath = cfg.Data.FactFile
		excelConfig.Enabled = true
		w := excel.NewFileWarehouse(excelConfig)
		if err := w.Ping(ctx); err != nil {
			return err
		}
		c.log.Info("using fact file %s", excelConfig.FilePath)
		c.Warehouse = w
		return nil
	}

	client, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		return err
	}
	c.Warehouse = client
	return nil
}

func (c *Container) initCache(ctx context.Context) error {
	cfg := c.Config.Cache
	switch cfg.Backend {
	case "memory":
		c.Store = cache.NewMemoryStore()
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		c.Redis = client
		c.Store = cache.NewRedisStore(client, cfg.KeyPrefix)
	default:
		return errors.ConfigInvalid("unsupported cache backend: " + cfg.Backend)
	}
	return nil
}

// defaultWeek is the configured default week, or the week of now capped
// at the end of the selectable range.
func defaultWeek(portal config.PortalConfig, now time.Time) (string, error) {
	if portal.DefaultWeek != "" {
		if !report.ValidWeek(portal.DefaultWeek) {
			return "", errors.ConfigInvalid(fmt.Sprintf("PORTAL_DEFAULT_WEEK %q is not a week like 2025-W09", portal.DefaultWeek))
		}
		return portal.DefaultWeek, nil
	}
	week := report.WeekOf(now)
	// labels are zero padded, so they order as strings
	if portal.WeekTo != "" && week > portal.WeekTo {
		week = portal.WeekTo
	}
	return week, nil
}

func (c *Container) initServices(now time.Time) error {
	cfg := c.Config
	week, err := defaultWeek(cfg.Portal, now)
	if err != nil {
		return err
	}
	c.Catalog = report.Default(cfg.Portal.Entities)
	c.Reports = app.NewReportService(
		c.Catalog,
		c.Warehouse,
		cache.NewLoader("facts", c.Store, cfg.Cache.TTL),
		cache.NewLoader("weeks", c.Store, cfg.Cache.TTL),
		excel.NewExporter(),
		app.ReportOptions{
			WeekFrom:      cfg.Portal.WeekFrom,
			WeekTo:        cfg.Portal.WeekTo,
			DefaultWeek:   week,
			FirstVersion:  cfg.Portal.FirstVersion,
			SecondVersion: cfg.Portal.SecondVersion,
		},
	)
	return nil
}

// Shutdown closes the warehouse and cache connections.
func (c *Container) Shutdown(ctx context.Context) error {
	var firstErr error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Warehouse != nil {
		if err := c.Warehouse.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
