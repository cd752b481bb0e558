package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssgreg/logf"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arryllopez/throttlego"
)

// HTTP server rate limited per client IP.
// Set KAFKA_BROKERS (comma separated) to publish decisions and run the risk engine off Kafka.
func main() {
	logger, closeLogger := throttlego.NewLogger(throttlego.LogConfig{Level: "debug", Format: "text"})
	defer closeLogger()

	// - default: 5 requests per 10 seconds per client
	// - POST /login: one attempt every 3 seconds
	store, err := throttlego.NewMemoryStore(
		throttlego.Config{Algorithm: throttlego.AlgorithmSlidingWindow, WindowSize: 10 * time.Second, MaxRequests: 5},
		map[string]throttlego.Config{
			"POST /login": {Algorithm: throttlego.AlgorithmInterval, MinInterval: 3 * time.Second},
		},
	)
	if err != nil {
		logger.Error("invalid rate limit policy", logf.Error(err))
		return
	}

	metrics := throttlego.NewMetricsCollector("throttlego")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	config := throttlego.MiddlewareConfig{
		Metrics:   metrics,
		Logger:    logger,
		DenyScore: 20,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		seeds := strings.Split(brokers, ",")
		producer, err := kgo.NewClient(kgo.SeedBrokers(seeds...), kgo.AllowAutoTopicCreation())
		if err != nil {
			logger.Error("failed to create kafka producer", logf.Error(err))
			return
		}
		defer producer.Close()

		consumer, err := kgo.NewClient(kgo.SeedBrokers(seeds...), kgo.ConsumeTopics("rate-limit-events"),
			kgo.ConsumerGroup("throttlego-risk"))
		if err != nil {
			logger.Error("failed to create kafka consumer", logf.Error(err))
			return
		}
		defer consumer.Close()

		engine := throttlego.NewRiskEngine(consumer, 10, 5*time.Minute, logger)
		go engine.EventReader(ctx)

		config.EventPublisher = throttlego.NewKafkaPublisher(producer, "rate-limit-events", logger)
		config.ScoreReader = engine
	} else {
		engine := throttlego.NewRiskEngine(nil, 10, 5*time.Minute, logger)
		config.EventPublisher = engine
		config.ScoreReader = engine
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := router.Group("/")
	limited.Use(throttlego.RateLimiterMiddleware(store, config))
	limited.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	limited.POST("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "login successful"})
	})
	limited.GET("/search", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "search completed"})
	})

	logger.Info("server starting", logf.String("addr", ":8080"))
	if err := router.Run(":8080"); err != nil {
		logger.Error("server stopped", logf.Error(err))
	}
}
