package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arryllopez/throttlego"
)

// Simple test server for load testing
// Run this with: go run ./loadtest/server
func main() {
	gin.SetMode(gin.ReleaseMode) // Disable debug logging for accurate benchmarks

	routerBaseline := gin.New()
	routerBaseline.GET("/baseline", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	// limits high enough that only middleware overhead is measured
	store, err := throttlego.NewMemoryStore(
		throttlego.Config{Algorithm: throttlego.AlgorithmSlidingWindow, WindowSize: time.Second, MaxRequests: 1000000},
		map[string]throttlego.Config{
			"GET /interval": {Algorithm: throttlego.AlgorithmInterval, MinInterval: time.Nanosecond},
		},
	)
	if err != nil {
		log.Fatal(err)
	}
	routerWithMiddleware := gin.New()
	routerWithMiddleware.Use(throttlego.RateLimiterMiddleware(store, throttlego.MiddlewareConfig{}))
	routerWithMiddleware.GET("/with-middleware", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	routerWithMiddleware.GET("/interval", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	// Mount all on same server
	router := gin.New()
	router.Any("/baseline", gin.WrapH(routerBaseline))
	router.Any("/with-middleware", gin.WrapH(routerWithMiddleware))
	router.Any("/interval", gin.WrapH(routerWithMiddleware))

	log.Println("Load test server starting on :8080")
	log.Println("Endpoints:")
	log.Println("  /baseline          - No middleware (baseline)")
	log.Println("  /with-middleware   - Sliding window middleware")
	log.Println("  /interval          - Interval middleware")
	log.Println("")
	log.Println("Run load tests with:")
	log.Println("  hey -n 100000 -c 100 http://localhost:8080/with-middleware")

	router.Run(":8080")
}
