// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package intervention

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/driftline/driftline/internal/models"
)

// PushDispatcher delivers a push notification to a user's devices.
type PushDispatcher interface {
	Send(ctx context.Context, userID string, content models.InterventionContent) error
}

// LoyaltyLedger credits loyalty points to a user's account.
type LoyaltyLedger interface {
	Award(ctx context.Context, userID string, points int, reason string) error
}

// DiscountIssuer creates a redeemable discount code scoped to a billing
// surface (e.g. "renewal"). Returns the code for inclusion in messaging.
type DiscountIssuer interface {
	Issue(ctx context.Context, userID string, percent int, scope string) (string, error)
}

// Channels bundles the outbound intervention surfaces.
type Channels struct {
	Push     PushDispatcher
	Loyalty  LoyaltyLedger
	Discount DiscountIssuer
}

// breakerSettings returns the shared circuit breaker tuning for outbound
// channels: trip after 5 consecutive failures, probe again after 30s.
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// HTTPChannels implements all three outbound surfaces against first-party
// HTTP services, each behind its own circuit breaker so a dead downstream
// fails fast instead of burning the dispatch timeout on every call.
type HTTPChannels struct {
	pushURL    string
	loyaltyURL string
	billingURL string
	http       *http.Client
	logger     zerolog.Logger

	pushBreaker     *gobreaker.CircuitBreaker[struct{}]
	loyaltyBreaker  *gobreaker.CircuitBreaker[struct{}]
	discountBreaker *gobreaker.CircuitBreaker[string]
}

// NewHTTPChannels creates the production channel set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPChannels(pushURL, loyaltyURL, billingURL string, timeout time.Duration, logger zerolog.Logger) *HTTPChannels {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChannels{
		pushURL:         pushURL,
		loyaltyURL:      loyaltyURL,
		billingURL:      billingURL,
		http:            &http.Client{Timeout: timeout},
		logger:          logger.With().Str("component", "intervention-channels").Logger(),
		pushBreaker:     gobreaker.NewCircuitBreaker[struct{}](breakerSettings("push")),
		loyaltyBreaker:  gobreaker.NewCircuitBreaker[struct{}](breakerSettings("loyalty")),
		discountBreaker: gobreaker.NewCircuitBreaker[string](breakerSettings("discount")),
	}
}

// BuildChannels assembles the channel set from configured endpoint URLs.
// A surface with no URL falls back to log-only dispatch.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func BuildChannels(pushURL, loyaltyURL, billingURL string, timeout time.Duration, logger zerolog.Logger) Channels {
	logOnly := NewLogChannels(logger)
	ch := Channels{Push: logOnly, Loyalty: logOnly, Discount: logOnly}

	if pushURL == "" && loyaltyURL == "" && billingURL == "" {
		return ch
	}

	httpCh := NewHTTPChannels(pushURL, loyaltyURL, billingURL, timeout, logger)
	if pushURL != "" {
		ch.Push = httpCh
	}
	if loyaltyURL != "" {
		ch.Loyalty = httpCh
	}
	if billingURL != "" {
		ch.Discount = httpCh
	}
	return ch
}

// Send implements PushDispatcher.
func (c *HTTPChannels) Send(ctx context.Context, userID string, content models.InterventionContent) error {
	_, err := c.pushBreaker.Execute(func() (struct{}, error) {
		payload := map[string]any{
			"user_id":        userID,
			"title":          content.Title,
			"message":        content.Message,
			"call_to_action": content.CallToAction,
		}
		return struct{}{}, c.postJSON(ctx, c.pushURL+"/v1/push", payload, nil)
	})
	if err != nil {
		return fmt.Errorf("push dispatch: %w", err)
	}
	return nil
}

// Award implements LoyaltyLedger.
func (c *HTTPChannels) Award(ctx context.Context, userID string, points int, reason string) error {
	_, err := c.loyaltyBreaker.Execute(func() (struct{}, error) {
		payload := map[string]any{
			"user_id": userID,
			"points":  points,
			"reason":  reason,
		}
		return struct{}{}, c.postJSON(ctx, c.loyaltyURL+"/v1/loyalty/awards", payload, nil)
	})
	if err != nil {
		return fmt.Errorf("loyalty award: %w", err)
	}
	return nil
}

// Issue implements DiscountIssuer.
func (c *HTTPChannels) Issue(ctx context.Context, userID string, percent int, scope string) (string, error) {
	code, err := c.discountBreaker.Execute(func() (string, error) {
		payload := map[string]any{
			"user_id": userID,
			"percent": percent,
			"scope":   scope,
		}
		var resp struct {
			Code string `json:"code"`
		}
		if err := c.postJSON(ctx, c.billingURL+"/v1/discounts", payload, &resp); err != nil {
			return "", err
		}
		if resp.Code == "" {
			return "", fmt.Errorf("discount service returned empty code")
		}
		return resp.Code, nil
	})
	if err != nil {
		return "", fmt.Errorf("discount issue: %w", err)
	}
	return code, nil
}

func (c *HTTPChannels) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// LogChannels is a log-only channel set for standalone development mode.
// Every dispatch succeeds and is recorded in the application log.
type LogChannels struct {
	logger zerolog.Logger
}

// NewLogChannels creates the development channel set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLogChannels(logger zerolog.Logger) *LogChannels {
	return &LogChannels{logger: logger.With().Str("component", "intervention-channels").Logger()}
}

// Send implements PushDispatcher.
func (c *LogChannels) Send(_ context.Context, userID string, content models.InterventionContent) error {
	c.logger.Info().Str("user_id", userID).Str("title", content.Title).Msg("push dispatch (log only)")
	return nil
}

// Award implements LoyaltyLedger.
func (c *LogChannels) Award(_ context.Context, userID string, points int, reason string) error {
	c.logger.Info().Str("user_id", userID).Int("points", points).Str("reason", reason).Msg("loyalty award (log only)")
	return nil
}

// Issue implements DiscountIssuer.
func (c *LogChannels) Issue(_ context.Context, userID string, percent int, scope string) (string, error) {
	code := fmt.Sprintf("DEV-%s-%d", scope, percent)
	c.logger.Info().Str("user_id", userID).Str("code", code).Msg("discount issue (log only)")
	return code, nil
}
