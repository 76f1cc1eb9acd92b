package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

var ErrUnavailable = errors.New("gemini unavailable: circuit breaker open")

// GeminiClient wraps the Generative AI SDK with a circuit breaker and a
// client-side rate limiter. Both RAG stages share one client; structured
// output is requested as JSON and parsed by the caller, which owns the
// deterministic fallback when parsing fails.
type GeminiClient struct {
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	tier        string
}

type RateLimits struct {
	RPM int // Requests per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, RPD: 250}
	}
}

func NewGeminiClient(apiKey string, tier string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1))

	return &GeminiClient{
		client:      client,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		tier:        tier,
	}, nil
}

// GenerateJSON runs a single prompt against the given model, requesting a
// JSON-structured response, and returns the raw response text.
func (gc *GeminiClient) GenerateJSON(ctx context.Context, modelName, prompt string, temperature float32, maxTokens int32) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_json")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", modelName),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(modelName)
		model.SetTemperature(temperature)
		model.SetMaxOutputTokens(maxTokens)
		model.ResponseMIMEType = "application/json"

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		text := extractText(resp)
		if text == "" {
			return nil, fmt.Errorf("empty response from model %s", modelName)
		}
		return text, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", ErrUnavailable
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
		return "", err
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return result.(string), nil
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}

// extractText concatenates all text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	var out string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
		break
	}
	return out
}
