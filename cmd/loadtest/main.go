package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	BaseURL         string
	Pairs           []string
	Amount          string
	ConcurrentUsers int
	RequestsPerUser int
	Timeout         time.Duration
	TestDuration    time.Duration
	RampUpDuration  time.Duration
	ThinkTime       time.Duration
}

// LoadTestResult holds the result of a single conversion request
type LoadTestResult struct {
	StatusCode int
	Duration   time.Duration
	Err        error
}

// LoadTestSummary holds the summary of load test results
type LoadTestSummary struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	StatusCounts        map[int]int
	TotalDuration       time.Duration
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
	RequestsPerSecond   float64
	ErrorRate           float64
	ResponseTime50th    time.Duration
	ResponseTime95th    time.Duration
	ResponseTime99th    time.Duration
}

func main() {
	var config LoadTestConfig
	var pairs string

	flag.StringVar(&config.BaseURL, "url", "http://localhost:8081", "Base URL of the converter service")
	flag.StringVar(&pairs, "pairs", "USD:EUR,EUR:GBP,USD:JPY,GBP:USD", "Comma separated FROM:TO pairs to rotate through")
	flag.StringVar(&config.Amount, "amount", "100", "Amount to convert")
	flag.IntVar(&config.ConcurrentUsers, "users", 10, "Number of concurrent users")
	flag.IntVar(&config.RequestsPerUser, "requests", 100, "Number of requests per user")
	flag.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Request timeout")
	flag.DurationVar(&config.TestDuration, "duration", 0, "Test duration (0 = run until all requests complete)")
	flag.DurationVar(&config.RampUpDuration, "rampup", 5*time.Second, "Ramp-up duration")
	flag.DurationVar(&config.ThinkTime, "think", 100*time.Millisecond, "Think time between requests")
	flag.Parse()

	config.Pairs = strings.Split(pairs, ",")
	targets, err := buildTargets(config)
	if err != nil {
		color.Red("Invalid configuration: %v", err)
		return
	}

	fmt.Printf("Starting load test against %s\n", config.BaseURL)
	fmt.Printf("Pairs: %s, amount %s\n", strings.Join(config.Pairs, " "), config.Amount)
	fmt.Printf("Users: %d x %d requests, ramp-up %v, think time %v\n",
		config.ConcurrentUsers, config.RequestsPerUser, config.RampUpDuration, config.ThinkTime)
	fmt.Println()

	printSummary(runLoadTest(config, targets))
}

// buildTargets turns each FROM:TO pair into a convert URL.
func buildTargets(config LoadTestConfig) ([]string, error) {
	targets := make([]string, 0, len(config.Pairs))
	for _, pair := range config.Pairs {
		from, to, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("pair %q is not FROM:TO", pair)
		}
		query := url.Values{"from": {from}, "to": {to}, "amount": {config.Amount}}
		targets = append(targets, strings.TrimRight(config.BaseURL, "/")+"/api/v1/convert?"+query.Encode())
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no pairs given")
	}
	return targets, nil
}

func runLoadTest(config LoadTestConfig, targets []string) LoadTestSummary {
	results := make(chan LoadTestResult, config.ConcurrentUsers*config.RequestsPerUser)
	client := &http.Client{Timeout: config.Timeout}

	ctx := context.Background()
	if config.TestDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.TestDuration)
		defer cancel()
	}

	startTime := time.Now()
	var wg sync.WaitGroup
	rampUpDelay := config.RampUpDuration / time.Duration(max(config.ConcurrentUsers, 1))

	for userID := 0; userID < config.ConcurrentUsers; userID++ {
		wg.Add(1)
		go func(uid int) {
			defer wg.Done()
			time.Sleep(time.Duration(uid) * rampUpDelay)

			for reqID := 0; reqID < config.RequestsPerUser; reqID++ {
				if ctx.Err() != nil {
					return
				}
				results <- makeRequest(ctx, client, targets[(uid+reqID)%len(targets)])

				if config.ThinkTime > 0 {
					time.Sleep(config.ThinkTime)
				}
			}
		}(userID)
	}

	wg.Wait()
	close(results)

	collected := make([]LoadTestResult, 0, config.ConcurrentUsers*config.RequestsPerUser)
	for result := range results {
		collected = append(collected, result)
	}
	return summarize(collected, time.Since(startTime))
}

func makeRequest(ctx context.Context, client *http.Client, target string) LoadTestResult {
	start := time.Now()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return LoadTestResult{Err: err}
	}
	response, err := client.Do(request)
	if err != nil {
		return LoadTestResult{Duration: time.Since(start), Err: err}
	}
	response.Body.Close()

	return LoadTestResult{StatusCode: response.StatusCode, Duration: time.Since(start)}
}

func summarize(results []LoadTestResult, totalDuration time.Duration) LoadTestSummary {
	summary := LoadTestSummary{
		TotalRequests: len(results),
		StatusCounts:  make(map[int]int),
		TotalDuration: totalDuration,
	}
	if len(results) == 0 {
		return summary
	}

	responseTimes := make([]time.Duration, 0, len(results))
	var totalResponseTime time.Duration
	for _, result := range results {
		summary.StatusCounts[result.StatusCode]++
		if result.Err == nil && result.StatusCode >= 200 && result.StatusCode < 300 {
			summary.SuccessfulRequests++
		} else {
			summary.FailedRequests++
		}
		responseTimes = append(responseTimes, result.Duration)
		totalResponseTime += result.Duration
	}

	slices.Sort(responseTimes)
	summary.MinResponseTime = responseTimes[0]
	summary.MaxResponseTime = responseTimes[len(responseTimes)-1]
	summary.AverageResponseTime = totalResponseTime / time.Duration(len(responseTimes))
	summary.ResponseTime50th = percentile(responseTimes, 50)
	summary.ResponseTime95th = percentile(responseTimes, 95)
	summary.ResponseTime99th = percentile(responseTimes, 99)

	summary.ErrorRate = float64(summary.FailedRequests) / float64(summary.TotalRequests) * 100
	if totalDuration > 0 {
		summary.RequestsPerSecond = float64(summary.TotalRequests) / totalDuration.Seconds()
	}
	return summary
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := len(sorted) * p / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func printSummary(summary LoadTestSummary) {
	fmt.Println("=== Load Test Results ===")
	if summary.TotalRequests == 0 {
		fmt.Println("No requests were made")
		return
	}

	fmt.Printf("Total Requests: %d\n", summary.TotalRequests)
	fmt.Printf("Successful Requests: %d (%.2f%%)\n", summary.SuccessfulRequests, 100-summary.ErrorRate)
	fmt.Printf("Failed Requests: %d (%.2f%%)\n", summary.FailedRequests, summary.ErrorRate)

	statuses := make([]int, 0, len(summary.StatusCounts))
	for status := range summary.StatusCounts {
		statuses = append(statuses, status)
	}
	slices.Sort(statuses)
	for _, status := range statuses {
		label := http.StatusText(status)
		if status == 0 {
			label = "transport error"
		}
		fmt.Printf("  %d %s: %d\n", status, label, summary.StatusCounts[status])
	}

	fmt.Printf("Total Duration: %v\n", summary.TotalDuration)
	fmt.Printf("Requests per Second: %.2f\n", summary.RequestsPerSecond)
	fmt.Printf("Response Time avg/min/max: %v / %v / %v\n",
		summary.AverageResponseTime, summary.MinResponseTime, summary.MaxResponseTime)
	fmt.Printf("Response Time p50/p95/p99: %v / %v / %v\n",
		summary.ResponseTime50th, summary.ResponseTime95th, summary.ResponseTime99th)

	fmt.Println("\n=== Performance Assessment ===")
	assess(summary.ErrorRate <= 5.0, fmt.Sprintf("Error rate: %.2f%% (target: < 5%%)", summary.ErrorRate))
	assess(summary.AverageResponseTime <= 2*time.Second, fmt.Sprintf("Average response time: %v (target: < 2s)", summary.AverageResponseTime))
	assess(summary.RequestsPerSecond >= 10, fmt.Sprintf("Throughput: %.2f req/s (target: > 10 req/s)", summary.RequestsPerSecond))
	if summary.StatusCounts[http.StatusTooManyRequests] > 0 {
		color.Yellow("Rate limiter rejected %d requests; raise RATE_LIMIT_BURST for load tests", summary.StatusCounts[http.StatusTooManyRequests])
	}
}

func assess(ok bool, line string) {
	if ok {
		color.Green("OK   %s", line)
		return
	}
	color.Red("WARN %s", line)
}
