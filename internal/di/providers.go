package di

import (
	"context"
	"fmt"
	"time"

	"StratEq/internal/backtest"
	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/internal/game"
	"StratEq/internal/handler/api"
	"StratEq/internal/jobs"
	"StratEq/internal/marketdata"
	internalrepo "StratEq/internal/repository"
	"StratEq/internal/sensitivity"
	"StratEq/internal/usecase"
	"StratEq/pkg/cache"
	pkgch "StratEq/pkg/clickhouse"
	"StratEq/pkg/config"
	xhttp "StratEq/pkg/http"
	pkgkafka "StratEq/pkg/kafka"
	applogger "StratEq/pkg/logger"
	"StratEq/pkg/metrics"
	"StratEq/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
	}
	return applogger.New(&applogger.Config{
		Level:  level,
		Format: format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideFeatureStore creates the ClickHouse-backed feature store.
func ProvideFeatureStore(ch *pkgch.Client, l *applogger.Logger) repository.FeatureStore {
	return internalrepo.NewCHFeatureStore(ch, l)
}

// ProvideRedisCache creates the Redis cache, or nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "strateq"
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process cache over Redis when available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	size := cfg.Cache.MemorySize
	if size <= 0 {
		size = 1000
	}
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(size))
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(size))
}

// ProvideJobStore persists jobs in Redis when available, in memory otherwise.
func ProvideJobStore(rc *cache.RedisCache) repository.JobStore {
	if rc == nil {
		return jobs.NewMemoryStore()
	}
	return internalrepo.NewRedisJobStore(rc.Client())
}

// ProvideEventPublisher creates the Kafka job-event publisher when enabled.
func ProvideEventPublisher(cfg *config.Config) (repository.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopJobEvents{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers...),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaJobEvents(producer), nil
}

// ProvideProfiles converts configured actors into domain profiles.
func ProvideProfiles(cfg *config.Config) ([]models.Profile, error) {
	profiles := make([]models.Profile, 0, len(cfg.Actors))
	for _, a := range cfg.Actors {
		// The solver's tie-breaking relies on Allowed being ascending and
		// duplicate-free, so config order is normalized here.
		var seen [models.NumActions]bool
		for _, key := range a.Actions {
			action, err := models.ParseAction(key)
			if err != nil {
				return nil, fmt.Errorf("actor %s: %w", a.Name, err)
			}
			seen[action] = true
		}
		allowed := make([]models.Action, 0, models.NumActions)
		for i := 0; i < models.NumActions; i++ {
			if seen[i] {
				allowed = append(allowed, models.Action(i))
			}
		}
		profiles = append(profiles, models.Profile{
			Name: a.Name,
			Caps: models.Capabilities{
				EconomicPower:       a.Capabilities.EconomicPower,
				MilitaryPower:       a.Capabilities.MilitaryPower,
				DiplomaticInfluence: a.Capabilities.DiplomaticInfluence,
				DomesticStability:   a.Capabilities.DomesticStability,
				ExportDependency:    a.Capabilities.ExportDependency,
				EnergyDependency:    a.Capabilities.EnergyDependency,
				TechLeadership:      a.Capabilities.TechLeadership,
				AllianceStrength:    a.Capabilities.AllianceStrength,
				ConstraintTolerance: a.Capabilities.ConstraintTolerance,
			},
			Allowed: allowed,
		})
	}
	return profiles, nil
}

// ProvideAllianceGraph converts configured edges into the domain graph.
func ProvideAllianceGraph(cfg *config.Config) *models.AllianceGraph {
	edges := make([]models.AllianceEdge, 0, len(cfg.Alliances))
	for _, e := range cfg.Alliances {
		edges = append(edges, models.AllianceEdge{
			Source:   e.Source,
			Target:   e.Target,
			Strength: e.Strength,
			Kind:     e.Kind,
		})
	}
	return models.NewAllianceGraph(edges)
}

// ProvidePayoffBuilder validates the actor/alliance configuration.
func ProvidePayoffBuilder(profiles []models.Profile, graph *models.AllianceGraph) (*game.PayoffBuilder, error) {
	return game.NewPayoffBuilder(profiles, graph)
}

// ProvideSolverParams fills solver settings, falling back to defaults.
func ProvideSolverParams(cfg *config.Config) game.Params {
	p := game.DefaultParams()
	if cfg.Solver.Tolerance > 0 {
		p.Tolerance = cfg.Solver.Tolerance
	}
	if cfg.Solver.MaxIterations > 0 {
		p.MaxIterations = cfg.Solver.MaxIterations
	}
	if cfg.Solver.LearningRate > 0 {
		p.LearningRate = cfg.Solver.LearningRate
	}
	if cfg.Solver.Uncertainty > 0 {
		p.Uncertainty = cfg.Solver.Uncertainty
	}
	if cfg.Solver.Draws > 0 {
		p.Draws = cfg.Solver.Draws
	}
	if cfg.Solver.Discount > 0 {
		p.Discount = cfg.Solver.Discount
	}
	return p
}

// ProvideSolver creates the equilibrium solver.
func ProvideSolver(graph *models.AllianceGraph, params game.Params) *game.Solver {
	return game.NewSolver(graph, params)
}

// ProvideFeatureProvider creates the cache-through market data view.
func ProvideFeatureProvider(store repository.FeatureStore, c cache.Service, cfg *config.Config, l *applogger.Logger, m repository.Metrics) repository.FeatureProvider {
	return marketdata.NewProvider(store, c, cfg.Cache.TTL, l, m)
}

// ProvideBacktestRunner creates the backtest engine.
func ProvideBacktestRunner(provider repository.FeatureProvider, builder *game.PayoffBuilder, solver *game.Solver, l *applogger.Logger, m repository.Metrics) *backtest.Runner {
	return backtest.NewRunner(provider, builder, solver, l, m)
}

// ProvideSensitivityEngine creates the Monte Carlo sweep engine.
func ProvideSensitivityEngine(provider repository.FeatureProvider, builder *game.PayoffBuilder, solver *game.Solver, l *applogger.Logger, m repository.Metrics) *sensitivity.Engine {
	return sensitivity.NewEngine(provider, builder, solver, l, m)
}

// ProvidePredictor creates the synchronous prediction use case.
func ProvidePredictor(provider repository.FeatureProvider, builder *game.PayoffBuilder, solver *game.Solver, l *applogger.Logger, m repository.Metrics) *usecase.PredictorUseCase {
	return usecase.NewPredictorUseCase(provider, builder, solver, l, m)
}

// ProvideOrchestrator creates the async job pool.
func ProvideOrchestrator(cfg *config.Config, store repository.JobStore, events repository.EventPublisher, runner *backtest.Runner, engine *sensitivity.Engine, l *applogger.Logger, m repository.Metrics) *jobs.Orchestrator {
	jc := jobs.DefaultConfig()
	if cfg.Jobs.Workers > 0 {
		jc.Workers = cfg.Jobs.Workers
	}
	if cfg.Jobs.GCInterval > 0 {
		jc.GCInterval = cfg.Jobs.GCInterval
	}
	if cfg.Jobs.Retention > 0 {
		jc.Retention = cfg.Jobs.Retention
	}
	return jobs.NewOrchestrator(jc, store, events, runner, engine, l, m)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(l *applogger.Logger, predictor *usecase.PredictorUseCase, orchestrator *jobs.Orchestrator, features repository.FeatureStore) xhttp.Handler {
	return api.NewPredictionHandler(l, predictor, orchestrator, features)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	orchestrator *jobs.Orchestrator,
	chClient *pkgch.Client,
	c cache.Service,
	events repository.EventPublisher,
) *server.App {
	app := server.New(cfg, l, handler, orchestrator, chClient)
	app.AddCloser(c.Close)
	app.AddCloser(events.Close)
	return app
}
