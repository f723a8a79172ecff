package di

import (
	"context"
	"fmt"
	"time"

	"SpreadScout/internal/domain/repository"
	"SpreadScout/internal/domain/service"
	"SpreadScout/internal/handler/api"
	internalrepo "SpreadScout/internal/repository"
	"SpreadScout/internal/service/feed"
	"SpreadScout/internal/service/notify"
	"SpreadScout/internal/service/ratelimit"
	"SpreadScout/internal/service/rates"
	"SpreadScout/internal/services/pricing"
	"SpreadScout/internal/services/ranking"
	"SpreadScout/internal/services/spreads"
	"SpreadScout/internal/usecase"
	"SpreadScout/pkg/cache"
	pkgch "SpreadScout/pkg/clickhouse"
	"SpreadScout/pkg/config"
	xhttp "SpreadScout/pkg/http"
	pkgkafka "SpreadScout/pkg/kafka"
	"SpreadScout/pkg/logger"
	"SpreadScout/pkg/metrics"
	"SpreadScout/pkg/queue"
	"SpreadScout/pkg/server"

	"github.com/segmentio/kafka-go"
)

const (
	latestRunTTL    = 24 * time.Hour
	logFlushEvery   = 30 * time.Second
	logFlushAtCount = 100
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config, log *logger.Logger) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("redis connected", logger.String("addr", cfg.Redis.Addr))
	return rc, nil
}

// ProvideCache returns the two-level cache when Redis is available and an
// in-process LRU otherwise. The cleanup also closes the Redis client.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc != nil {
		lc := cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Redis.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL),
		)
		return lc, func() { _ = lc.Close() }
	}
	mc := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Redis.MemoryMaxSize),
		cache.WithMemoryCleanup(time.Minute),
	)
	return mc, func() { _ = mc.Close() }
}

// ProvideQueue returns the Redis backed job queue when Redis is available.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, log *logger.Logger) queue.Queue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	if rc != nil {
		return queue.NewRedisQueue(log, qcfg, rc.Client(),
			queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
		)
	}
	return queue.NewMemoryQueue(log, qcfg, cfg.Queue.Buffer)
}

// ProvideFeed creates the Greeks websocket feed. It connects lazily.
func ProvideFeed(cfg *config.Config, log *logger.Logger) (repository.GreeksFeed, func()) {
	c := feed.New(feed.Config{
		URL:            cfg.Feed.URL,
		Token:          cfg.Feed.Token,
		Channel:        cfg.Feed.Channel,
		BufferSize:     cfg.Feed.BufferSize,
		PingInterval:   cfg.Feed.PingInterval,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		WriteTimeout:   cfg.Feed.WriteTimeout,
	}, log)
	return c, func() {
		if err := c.Close(); err != nil {
			log.Warn("feed close error", logger.Error(err))
		}
	}
}

func ProvideCollector(f repository.GreeksFeed, cfg *config.Config, m repository.Metrics, log *logger.Logger) *usecase.GreeksCollector {
	return usecase.NewGreeksCollector(f, usecase.CollectorConfig{
		BatchSize:      cfg.Collector.BatchSize,
		CoverageTarget: cfg.Collector.CoverageTarget,
		BatchTimeout:   cfg.Collector.BatchTimeout,
		RetryTimeout:   cfg.Collector.RetryTimeout,
		PollInterval:   cfg.Collector.PollInterval,
	}, m, log)
}

func ProvideBuilder(cfg *config.Config) *spreads.Builder {
	b := cfg.Builder
	return spreads.New(spreads.Config{
		MinDTE:     b.MinDTE,
		MaxDTE:     b.MaxDTE,
		MinWidth:   b.MinWidth,
		MaxWidth:   b.MaxWidth,
		MinCredit:  b.MinCredit,
		MinROI:     b.MinROI,
		MaxROI:     b.MaxROI,
		SuspectROI: b.SuspectROI,
		MinDelta:   b.MinDelta,
		MaxDelta:   b.MaxDelta,
		Lookahead:  b.Lookahead,
	})
}

func ProvideEstimator(cfg *config.Config) (service.ProbabilityEstimator, error) {
	return pricing.New(cfg.Pricing.Method)
}

// ProvideRateProvider fetches the treasury yield over HTTP and caches it
// per calendar day.
func ProvideRateProvider(cfg *config.Config, c cache.Service, m repository.Metrics, log *logger.Logger) service.RateProvider {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Rates.Timeout))
	src := rates.NewFREDSource(client, cfg.Rates.URL, cfg.Rates.Series)
	return rates.NewProvider(src, c, m, log, rates.ProviderConfig{
		Attempts:    cfg.Rates.Attempts,
		BackoffBase: cfg.Rates.BackoffBase,
		Fallback:    cfg.Rates.Fallback,
		MaxRate:     cfg.Rates.MaxRate,
	})
}

func ProvideRanker(cfg *config.Config) *ranking.Ranker {
	r := cfg.Ranking
	return ranking.New(ranking.Config{
		WeightScore:    r.WeightScore,
		WeightPoP:      r.WeightPoP,
		WeightROI:      r.WeightROI,
		WeightDistance: r.WeightDistance,
		EnterPoPMin:    r.EnterPoPMin,
		EnterROIMin:    r.EnterROIMin,
		WatchPoPMin:    r.WatchPoPMin,
		WatchROIMin:    r.WatchROIMin,
	})
}

// ProvideClickHouseClient connects to ClickHouse and creates the run tables.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, log *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(ch.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	log.Info("clickhouse ready", logger.String("database", ch.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close error", logger.Error(err))
		}
	}, nil
}

// ProvideRunStorage stores runs in ClickHouse when enabled, in memory
// otherwise, and serves the latest run through the cache.
func ProvideRunStorage(cfg *config.Config, ch *pkgch.Client, c cache.Service, log *logger.Logger) repository.RunStorage {
	var inner repository.RunStorage
	if ch != nil {
		inner = internalrepo.NewClickHouseRunStorage(ch, cfg.ClickHouse.Database, log)
	} else {
		inner = internalrepo.NewMemoryRunStorage()
	}
	return internalrepo.NewCachedRunStorage(inner, c, latestRunTTL)
}

// ProvideKafkaProducer creates a Kafka producer. Returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(p.Compression),
		pkgkafka.WithRequiredAcks(p.RequiredAcks),
		pkgkafka.WithBatchSize(p.BatchSize),
		pkgkafka.WithBatchTimeout(p.BatchTimeout),
		pkgkafka.WithAutoCreateTopics(p.AutoCreate),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", logger.Error(err))
		}
	}, nil
}

// ProvideRunPublisher publishes ranked spreads to Kafka when a producer exists.
func ProvideRunPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.RunPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topics.Ranked)
}

func ProvideNotifier(cfg *config.Config) (repository.Notifier, error) {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return notify.Nop{}, nil
	}
	n, err := notify.NewTelegram(notify.TelegramConfig{
		BotToken:       tg.BotToken,
		ChatID:         tg.ChatID,
		MaxRetries:     tg.MaxRetries,
		RetryDelayBase: tg.RetryDelay,
		MaxRows:        tg.MaxRows,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}
	return n, nil
}

func ProvideDiscovery(
	cfg *config.Config,
	collector *usecase.GreeksCollector,
	builder *spreads.Builder,
	estimator service.ProbabilityEstimator,
	rp service.RateProvider,
	ranker *ranking.Ranker,
	store repository.RunStorage,
	publisher repository.RunPublisher,
	notifier repository.Notifier,
	c cache.Service,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Discovery {
	return usecase.NewDiscovery(collector, builder, estimator, rp, ranker, store, publisher, notifier, c, m, log,
		usecase.DiscoveryConfig{
			MinLiquidity:      cfg.Liquidity.MinScore,
			Workers:           cfg.Discovery.Workers,
			LockTTL:           cfg.Discovery.LockTTL,
			SideEffectTimeout: cfg.Discovery.SideEffectTimeout,
		})
}

// ProvideKafkaConsumer consumes chain snapshots. Returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, d *usecase.Discovery, m repository.Metrics, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerStartOffset(cc.StartOffset),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Topics.DLQ),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook{Log: log, Slow: cfg.Metrics.SlowRequest},
		pkgkafka.HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) {
			m.RecordError("snapshot_consume")
		}},
	))
	consumer.RegisterHandler(usecase.NewSnapshotHandler(cfg.Kafka.Topics.Snapshots, d, m, log))
	return consumer, nil
}

// ProvideHTTPServer builds the REST API.
func ProvideHTTPServer(
	cfg *config.Config,
	store repository.RunStorage,
	q queue.Queue,
	c cache.Service,
	log *logger.Logger,
) *xhttp.Server {
	limiter := ratelimit.New(float64(cfg.Server.RunBurst), cfg.Server.RunPerMin/60)
	checks := map[string]api.HealthCheck{
		"storage": store.Health,
		"cache":   c.Ping,
	}
	h := api.NewSpreadsEchoHandler(log, store, q, limiter, checks)

	return xhttp.NewServer(log, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.SlowRequest),
	)
}

// ProvideApp registers the discovery job and, when configured, ships
// aggregated warn/error logs to Kafka.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	q queue.Queue,
	d *usecase.Discovery,
	consumer *pkgkafka.Consumer,
	srv *xhttp.Server,
	producer *pkgkafka.Producer,
) *server.App {
	q.RegisterJob(usecase.NewDiscoveryJob(d, log))

	if cfg.Logging.CollectErrors && producer != nil {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   logFlushEvery,
			CountThreshold: logFlushAtCount,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}

	return server.New(cfg, log, q, consumer, srv)
}
