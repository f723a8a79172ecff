package di

import (
	"testing"

	"SpreadScout/internal/repository"
	"SpreadScout/internal/service/notify"
	"SpreadScout/pkg/cache"
	"SpreadScout/pkg/config"
	"SpreadScout/pkg/logger"
	"SpreadScout/pkg/queue"
)

func localConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = "test"
	cfg.Logging.Output = "stderr"
	return cfg
}

func TestInitializeAppWithLocalBackends(t *testing.T) {
	app, cleanup, err := InitializeApp(localConfig())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer cleanup()
	if app == nil {
		t.Fatalf("nil app")
	}
}

func TestProvidersFallBackWhenBackendsDisabled(t *testing.T) {
	cfg := localConfig()
	log := logger.Nop()

	c, cleanup := ProvideCache(cfg, nil)
	defer cleanup()
	if _, ok := c.(*cache.MemoryCache); !ok {
		t.Fatalf("cache = %T, want *cache.MemoryCache", c)
	}
	if q := ProvideQueue(cfg, nil, log); q == nil {
		t.Fatalf("nil queue")
	} else if _, ok := q.(*queue.MemoryQueue); !ok {
		t.Fatalf("queue = %T, want *queue.MemoryQueue", q)
	}
	if _, ok := ProvideRunPublisher(cfg, nil).(repository.NopPublisher); !ok {
		t.Fatalf("publisher must be a no-op without kafka")
	}
	n, err := ProvideNotifier(cfg)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	if _, ok := n.(notify.Nop); !ok {
		t.Fatalf("notifier = %T, want notify.Nop", n)
	}
	if _, ok := ProvideRunStorage(cfg, nil, c, log).(*repository.CachedRunStorage); !ok {
		t.Fatalf("run storage must be cache fronted")
	}
	consumer, err := ProvideKafkaConsumer(cfg, nil, nil, log)
	if err != nil || consumer != nil {
		t.Fatalf("consumer = %v, %v; want nil without kafka", consumer, err)
	}
}

func TestProvideEstimatorRejectsUnknownMethod(t *testing.T) {
	cfg := localConfig()
	cfg.Pricing.Method = "monte_carlo"
	if _, err := ProvideEstimator(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
