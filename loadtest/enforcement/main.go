package main

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arryllopez/throttlego"
)

// Enforcement accuracy check - validates the middleware correctly blocks abuse
// Run with: go run ./loadtest/enforcement

type TestResult struct {
	TotalRequests   int
	AllowedRequests int
	DeniedRequests  int
	ExpectedAllowed int
	ExpectedDenied  int
	AccuracyPercent float64
	TestName        string
}

type scenario struct {
	name            string
	config          throttlego.Config
	totalRequests   int
	concurrent      bool
	expectedAllowed int
}

func main() {
	gin.SetMode(gin.ReleaseMode)

	fmt.Println("===========================================")
	fmt.Println("throttlego Enforcement Accuracy Check")
	fmt.Println("===========================================")

	scenarios := []scenario{
		{
			// 150 requests, limit is 100 per 60 seconds
			name:            "Sliding Window",
			config:          throttlego.Config{Algorithm: throttlego.AlgorithmSlidingWindow, WindowSize: time.Minute, MaxRequests: 100},
			totalRequests:   150,
			expectedAllowed: 100,
		},
		{
			// burst of 20, only the first gets through within the interval
			name:            "Interval",
			config:          throttlego.Config{Algorithm: throttlego.AlgorithmInterval, MinInterval: 10 * time.Second},
			totalRequests:   20,
			expectedAllowed: 1,
		},
		{
			// 100 concurrent requests from a single client
			name:            "Sliding Window Under Attack",
			config:          throttlego.Config{Algorithm: throttlego.AlgorithmSlidingWindow, WindowSize: 10 * time.Second, MaxRequests: 20},
			totalRequests:   100,
			concurrent:      true,
			expectedAllowed: 20,
		},
	}

	for i, s := range scenarios {
		fmt.Printf("\nTest %d: %s\n", i+1, s.name)
		fmt.Println("-------------------------------------------")
		result, err := run(s)
		if err != nil {
			fmt.Printf("Test: %s\nStatus:            ✗ ERROR (%v)\n", s.name, err)
			continue
		}
		printResult(result)
	}

	fmt.Println("\n===========================================")
	fmt.Println("All Tests Complete!")
	fmt.Println("===========================================")
}

func run(s scenario) (TestResult, error) {
	store, err := throttlego.NewMemoryStore(s.config, nil)
	if err != nil {
		return TestResult{}, err
	}

	router := gin.New()
	router.Use(throttlego.RateLimiterMiddleware(store, throttlego.MiddlewareConfig{}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return TestResult{}, err
	}
	server := &http.Server{Handler: router}
	go server.Serve(listener)
	defer server.Close()

	url := "http://" + listener.Addr().String() + "/test"
	client := &http.Client{Timeout: 5 * time.Second}

	allowed, denied := 0, 0
	var mu sync.Mutex
	send := func() {
		resp, err := client.Get(url)
		if err != nil {
			return
		}
		defer resp.Body.Close()

		mu.Lock()
		defer mu.Unlock()
		switch resp.StatusCode {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			denied++
		}
	}

	if s.concurrent {
		var wg sync.WaitGroup
		for i := 0; i < s.totalRequests; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				send()
			}()
		}
		wg.Wait()
	} else {
		for i := 0; i < s.totalRequests; i++ {
			send()
		}
	}

	expectedDenied := s.totalRequests - s.expectedAllowed
	return TestResult{
		TotalRequests:   s.totalRequests,
		AllowedRequests: allowed,
		DeniedRequests:  denied,
		ExpectedAllowed: s.expectedAllowed,
		ExpectedDenied:  expectedDenied,
		AccuracyPercent: calculateAccuracy(allowed, denied, s.expectedAllowed, expectedDenied),
		TestName:        s.name,
	}, nil
}

func calculateAccuracy(allowed, denied, expectedAllowed, expectedDenied int) float64 {
	allowedDiff := abs(allowed - expectedAllowed)
	deniedDiff := abs(denied - expectedDenied)
	totalExpected := expectedAllowed + expectedDenied
	totalDiff := allowedDiff + deniedDiff

	accuracy := float64(totalExpected-totalDiff) / float64(totalExpected) * 100
	if accuracy < 0 {
		accuracy = 0
	}
	return accuracy
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func printResult(r TestResult) {
	fmt.Printf("Test: %s\n", r.TestName)
	fmt.Printf("Total Requests:    %d\n", r.TotalRequests)
	fmt.Printf("Allowed Requests:  %d (expected: %d)\n", r.AllowedRequests, r.ExpectedAllowed)
	fmt.Printf("Denied Requests:   %d (expected: %d)\n", r.DeniedRequests, r.ExpectedDenied)
	fmt.Printf("Accuracy:          %.1f%%\n", r.AccuracyPercent)

	if r.AccuracyPercent >= 95.0 {
		fmt.Println("Status:            ✓ PASS")
	} else if r.AccuracyPercent >= 85.0 {
		fmt.Println("Status:            ~ MARGINAL")
	} else {
		fmt.Println("Status:            ✗ FAIL")
	}
}
