package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbattlegear/forkalytics/internal/admin"
	"github.com/cbattlegear/forkalytics/internal/enrich"
	"github.com/cbattlegear/forkalytics/internal/ingest"
	"github.com/cbattlegear/forkalytics/internal/jobs"
	"github.com/cbattlegear/forkalytics/internal/mastodon"
	"github.com/cbattlegear/forkalytics/internal/poller"
	"github.com/cbattlegear/forkalytics/internal/rollup"
	"github.com/cbattlegear/forkalytics/internal/scheduler"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/config"
	"github.com/cbattlegear/forkalytics/pkg/database"
	"github.com/cbattlegear/forkalytics/pkg/llm"
	"github.com/cbattlegear/forkalytics/pkg/logging"
	"github.com/cbattlegear/forkalytics/pkg/monitoring"
	"github.com/cbattlegear/forkalytics/pkg/server"
	"github.com/cbattlegear/forkalytics/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("forkalytics")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Forkalytics (Fediverse Post Analytics)")

	databaseURL := config.RequireEnv("DATABASE_URL")
	instanceURL := config.RequireEnv("INSTANCE_URL")
	instanceID := config.GetEnv("INSTANCE_ID", hostOf(instanceURL, logger))
	accessToken := config.GetEnv("ACCESS_TOKEN", "")

	// Connect to Postgres
	dbConfig := database.DefaultConfig()
	dbConfig.URL = databaseURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	st := store.New(db, instanceID, logger)
	if config.GetEnvBool("AUTO_MIGRATE", true) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := st.Migrate(ctx); err != nil {
			cancel()
			logger.WithError(err).Fatal("Failed to apply schema")
		}
		cancel()
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("forkalytics", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("forkalytics", version.Version, version.GitCommit)

	// Create custom ingest metrics
	metrics := &ingest.Metrics{
		EventsTotal:   metricsCollector.NewCounter("stream_events_total", "Stream events processed", []string{"kind", "outcome"}),
		ApplyDuration: metricsCollector.NewHistogram("event_apply_duration_seconds", "Event apply time", []string{"kind"}, nil),
	}

	engine := ingest.NewEngine(db, st, logger, metrics)

	// LLM-backed enrichment is optional; without a provider the topic and
	// summary jobs skip their hours.
	var provider llm.Provider
	llmConfig := llm.LoadConfig()
	if llmConfig.Enabled() {
		var err error
		provider, err = llm.NewProvider(llmConfig)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create LLM provider")
		}
		logger.WithField("provider", llmConfig.Provider).Info("LLM enrichment enabled")
	} else {
		logger.Info("LLM enrichment disabled (no LLM_PROVIDER configured)")
	}

	sentiment := enrich.NewSentimentAnalyzer(db, st, logger)
	rollupEngine := rollup.NewEngine(st, logger)
	topics := enrich.NewTopicExtractor(st, provider, llmConfig.Model, logger)
	summary := enrich.NewSummaryGenerator(st, provider, llmConfig.Model, logger)
	runner := jobs.NewRunner(sentiment, rollupEngine, topics, summary, logger)

	// Engagement polling needs the REST client; it re-fetches recent posts
	// so counts keep moving after the stream delivered them once.
	var engagementPoller *poller.Poller
	pollInterval := config.GetEnvDuration("POLL_INTERVAL", 15*time.Minute)
	if config.GetEnvBool("ENABLE_POLLING", true) {
		client := mastodon.NewClient(instanceURL, accessToken, logger)
		window := config.GetEnvDuration("POLL_WINDOW", poller.DefaultWindow)
		engagementPoller = poller.New(client, engine, st, window, logger)
	} else {
		pollInterval = 0
	}

	schedConfig := scheduler.DefaultConfig()
	schedConfig.SentimentInterval = config.GetEnvDuration("SENTIMENT_INTERVAL", schedConfig.SentimentInterval)
	schedConfig.SentimentBatchSize = config.GetEnvInt("SENTIMENT_BATCH_SIZE", 0)
	schedConfig.RollingWindowHours = config.GetEnvInt("ROLLING_WINDOW_HOURS", schedConfig.RollingWindowHours)
	schedConfig.SummaryHourUTC = config.GetEnvInt("SUMMARY_HOUR_UTC", schedConfig.SummaryHourUTC)
	schedConfig.PollInterval = pollInterval

	sched := scheduler.New(schedConfig, runner, engagementPoller, logger)
	sched.Start()

	ctx, cancel := context.WithCancel(context.Background())

	// Event source: the websocket stream by default, Kafka when the events
	// arrive through a broker instead.
	var kafkaSource *ingest.KafkaSource
	eventSource := config.GetEnv("EVENT_SOURCE", "stream")
	switch eventSource {
	case "kafka":
		brokersEnv := config.RequireEnv("KAFKA_BROKERS")
		brokers := strings.Split(brokersEnv, ",")
		groupID := config.GetEnv("KAFKA_GROUP_ID", "forkalytics")
		topic := config.GetEnv("KAFKA_TOPIC", "post_events")

		var err error
		kafkaSource, err = ingest.NewKafkaSource(brokers, groupID, topic, engine, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		healthChecker.AddCheck("kafka", monitoring.KafkaConsumerHealthCheck(kafkaSource.Consumer().GetClient()))

		go func() {
			if err := kafkaSource.Run(ctx); err != nil {
				logger.WithError(err).Error("Kafka consumer error")
			}
		}()

	default:
		streamer := ingest.NewStreamer(ingest.StreamerConfig{
			InstanceURL: instanceURL,
			AccessToken: accessToken,
			Stream:      config.GetEnv("STREAM_NAME", "public:local"),
		}, engine, logger)

		go func() {
			if err := streamer.Run(ctx); err != nil {
				logger.WithError(err).Error("Streamer stopped")
			}
		}()
	}

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": databaseURL,
		"INSTANCE_URL": instanceURL,
		"INSTANCE_ID":  instanceID,
	}))

	// Optional health check and admin server
	if config.GetEnvBool("ENABLE_HEALTH_ENDPOINT", true) {
		go startHealthServer(healthChecker, metricsCollector, runner, logger)
	}

	logger.WithFields(logging.Fields{
		"instance_id":  instanceID,
		"event_source": eventSource,
	}).Info("Forkalytics started")

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down Forkalytics...")

	// Cleanup
	cancel()
	sched.Stop()
	if kafkaSource != nil {
		kafkaSource.Consumer().Close()
	}

	logger.Info("Forkalytics stopped")
}

// hostOf derives the default instance scope from the instance URL.
func hostOf(instanceURL string, logger logging.Logger) string {
	u, err := url.Parse(instanceURL)
	if err != nil || u.Hostname() == "" {
		logger.WithField("url", instanceURL).Fatal("INSTANCE_URL is not a valid URL")
	}
	return u.Hostname()
}

func startHealthServer(healthChecker *monitoring.HealthChecker, metricsCollector *monitoring.MetricsCollector, runner *jobs.Runner, logger logging.Logger) {
	router := server.SetupServiceRouter(logger, "forkalytics", healthChecker, metricsCollector)
	admin.RegisterRoutes(router, runner, logger)

	serverConfig := server.DefaultConfig("forkalytics", "18080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Error("Health server error")
	}
}
