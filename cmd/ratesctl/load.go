package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

type loadConfig struct {
	URL             string
	Path            string
	ConcurrentUsers int
	RequestsPerUser int
	Timeout         time.Duration
	ThinkTime       time.Duration
}

type loadResult struct {
	StatusCode int
	Duration   time.Duration
	Success    bool
}

type loadSummary struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	RateLimited         int
	TotalDuration       time.Duration
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
	RequestsPerSecond   float64
	ErrorRate           float64
	ResponseTime95th    time.Duration
	ResponseTime99th    time.Duration
}

func runLoadTest(ctx context.Context, config loadConfig) loadSummary {
	results := make(chan loadResult, config.ConcurrentUsers*config.RequestsPerUser)
	client := &http.Client{Timeout: config.Timeout}
	start := time.Now()

	var wg sync.WaitGroup
	for user := 0; user < config.ConcurrentUsers; user++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < config.RequestsPerUser; i++ {
				if ctx.Err() != nil {
					return
				}
				results <- makeRequest(ctx, client, config.URL)
				if config.ThinkTime > 0 {
					time.Sleep(config.ThinkTime)
				}
			}
		}()
	}

	wg.Wait()
	close(results)

	return summarize(results, time.Since(start))
}

func makeRequest(ctx context.Context, client *http.Client, url string) loadResult {
	start := time.Now()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return loadResult{Duration: time.Since(start)}
	}

	response, err := client.Do(request)
	duration := time.Since(start)
	if err != nil {
		return loadResult{Duration: duration}
	}
	_, _ = io.Copy(io.Discard, response.Body)
	response.Body.Close()

	return loadResult{
		StatusCode: response.StatusCode,
		Duration:   duration,
		Success:    response.StatusCode >= 200 && response.StatusCode < 300,
	}
}

func summarize(results <-chan loadResult, totalDuration time.Duration) loadSummary {
	summary := loadSummary{TotalDuration: totalDuration}
	var responseTimes []time.Duration

	for result := range results {
		summary.TotalRequests++
		responseTimes = append(responseTimes, result.Duration)

		switch {
		case result.Success:
			summary.SuccessfulRequests++
		case result.StatusCode == http.StatusTooManyRequests:
			summary.RateLimited++
			summary.FailedRequests++
		default:
			summary.FailedRequests++
		}
	}

	if summary.TotalRequests == 0 {
		return summary
	}

	summary.ErrorRate = float64(summary.FailedRequests) / float64(summary.TotalRequests) * 100
	if totalDuration > 0 {
		summary.RequestsPerSecond = float64(summary.TotalRequests) / totalDuration.Seconds()
	}

	sort.Slice(responseTimes, func(i, j int) bool { return responseTimes[i] < responseTimes[j] })
	var total time.Duration
	for _, rt := range responseTimes {
		total += rt
	}
	summary.MinResponseTime = responseTimes[0]
	summary.MaxResponseTime = responseTimes[len(responseTimes)-1]
	summary.AverageResponseTime = total / time.Duration(len(responseTimes))
	summary.ResponseTime95th = percentile(responseTimes, 95)
	summary.ResponseTime99th = percentile(responseTimes, 99)

	return summary
}

// percentile expects sorted input
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * float64(p) / 100.0)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func printSummary(out io.Writer, summary loadSummary) {
	fmt.Fprintln(out, "=== Load Test Results ===")
	fmt.Fprintf(out, "Total Requests: %d\n", summary.TotalRequests)
	if summary.TotalRequests == 0 {
		return
	}
	fmt.Fprintf(out, "Successful Requests: %d (%.2f%%)\n", summary.SuccessfulRequests,
		float64(summary.SuccessfulRequests)/float64(summary.TotalRequests)*100)
	fmt.Fprintf(out, "Failed Requests: %d (%.2f%%), rate limited: %d\n", summary.FailedRequests, summary.ErrorRate, summary.RateLimited)
	fmt.Fprintf(out, "Total Duration: %v\n", summary.TotalDuration)
	fmt.Fprintf(out, "Requests per Second: %.2f\n", summary.RequestsPerSecond)
	fmt.Fprintf(out, "Average Response Time: %v\n", summary.AverageResponseTime)
	fmt.Fprintf(out, "Min Response Time: %v\n", summary.MinResponseTime)
	fmt.Fprintf(out, "Max Response Time: %v\n", summary.MaxResponseTime)
	fmt.Fprintf(out, "95th Percentile Response Time: %v\n", summary.ResponseTime95th)
	fmt.Fprintf(out, "99th Percentile Response Time: %v\n", summary.ResponseTime99th)
}
