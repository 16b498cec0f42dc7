// Command semcache-server wires the semantic cache core into a
// long-running process: load configuration, connect to Postgres (and
// optionally Redis), construct the orchestrator, run the capacity sweep in
// the background, and block until a termination signal arrives. It does
// not expose an HTTP/gRPC surface of its own — the orchestrator's public
// contract (spec §4.4) is transport-agnostic and is meant to be embedded by
// whatever pipeline calls it; this binary exists to prove the wiring boots
// and to run the migration + self-test steps operators need before trusting
// a deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"

	"github.com/quietloop/semcache/pkg/observability"
	"github.com/quietloop/semcache/pkg/semcache"
	"github.com/quietloop/semcache/pkg/semcache/annindex"
	"github.com/quietloop/semcache/pkg/semcache/capacity"
	"github.com/quietloop/semcache/pkg/semcache/embedgw"
	"github.com/quietloop/semcache/pkg/semcache/safety"
	"github.com/quietloop/semcache/pkg/semcache/store"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (overrides default locations)")
	showVersion = flag.Bool("version", false, "Show version information and exit")
	selfTest    = flag.Bool("self-test", false, "Run the ANN recall self-test against the live store and exit")
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("semcache-server\nVersion: %s\nGit Commit: %s\n", version, gitCommit)
		return
	}

	if err := loadViperConfig(*configFile); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger("semcache.server")
	metrics := observability.NewMetricsClient()

	cfg, err := semcache.LoadConfigFromViper()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	dsn := viper.GetString("database.dsn")
	if dsn == "" {
		log.Fatal("database.dsn must be set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	baseStore := store.NewPostgresStore(db, logger.WithPrefix("store"), metrics)

	var st store.Store = baseStore
	if redisAddr := viper.GetString("cache.semantic.redis_addr"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		st = store.NewRedisFastPath(baseStore, rdb, 5*time.Minute, logger.WithPrefix("fastpath"), metrics)
		logger.Info("redis fast path enabled", map[string]interface{}{"addr": redisAddr})
	} else {
		logger.Info("redis fast path disabled, serving Postgres directly", map[string]interface{}{})
	}

	gateway := embedgw.NewHashGateway(cfg.Dimension)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	indexL1 := buildIndex(db, "answer_records", cfg, logger)
	indexL2 := buildIndex(db, "compressed_records", cfg, logger)
	indexL3 := buildIndex(db, "chunk_records", cfg, logger)

	if *selfTest {
		runSelfTest(ctx, st, indexL1, cfg)
		return
	}

	filter := safety.NewDefaultFilter(cfg.SensitiveRulesVersion)
	sourceVersion := semcache.StaticSourceVersion(viper.GetString("cache.semantic.source_version"))

	cache, err := semcache.New(ctx, cfg, gateway, indexL1, indexL2, indexL3, st, filter, sourceVersion, logger, metrics)
	if err != nil {
		log.Fatalf("failed to construct cache orchestrator: %v", err)
	}

	capacityMgr := capacity.NewManager(st, capacity.Indexes{L1: indexL1, L2: indexL2, L3: indexL3}, cfg, logger.WithPrefix("capacity"), metrics)
	go capacityMgr.Run(ctx)

	report := cache.Health(ctx)
	logger.Info("semcache server started", map[string]interface{}{
		"embedding_reachable": report.EmbeddingReachable,
		"store_reachable":     report.StoreReachable,
	})

	<-ctx.Done()
	logger.Info("semcache server shutting down", map[string]interface{}{})
}

// buildIndex picks LinearIndex or PGVectorIndex per spec §4.2's
// brute_force_cutoff, based on the table's current row count at boot.
// Re-evaluating this choice as the table crosses the cutoff at runtime is
// out of scope here; an operator restarts the process to pick up the
// switch, same as the capacity manager only evicts, never re-architects,
// the backing index.
func buildIndex(db *sqlx.DB, table string, cfg semcache.Config, logger observability.Logger) annindex.Index {
	var count int64
	_ = db.Get(&count, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if int(count) > cfg.BruteForceCutoff {
		return annindex.NewPGVectorIndex(db, table, logger.WithPrefix(table))
	}
	return annindex.NewLinearIndex()
}

func runSelfTest(ctx context.Context, st store.Store, idx annindex.Index, cfg semcache.Config) {
	snapshot, err := st.SnapshotEmbeddings(ctx, semcache.LayerL1, time.Now())
	if err != nil {
		log.Fatalf("self-test: failed to snapshot embeddings: %v", err)
	}
	var queries []semcache.Embedding
	for _, e := range snapshot {
		queries = append(queries, e)
		if len(queries) >= 100 {
			break
		}
	}
	result, err := annindex.SelfTest(ctx, idx, snapshot, queries, cfg.TopK)
	if err != nil {
		log.Fatalf("self-test failed: %v", err)
	}
	fmt.Printf("recall@%d = %.4f over %d samples (passed=%v)\n", result.K, result.RecallAtK, result.Sampled, result.Passed)
	if !result.Passed {
		os.Exit(1)
	}
}

func loadViperConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("semcache")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/semcache")
	}
	viper.SetEnvPrefix("SEMCACHE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}
