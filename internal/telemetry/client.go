// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// Client is an HTTP implementation of Provider and SubscriptionProvider
// against the first-party telemetry service.
//
// Every call carries an explicit timeout; the upstream contract has none,
// but a stalled telemetry fetch must not stall an analysis forever.
type Client struct {
	baseURL         string
	subscriptionURL string
	http            *http.Client
}

// NewClient creates a telemetry client. subscriptionURL may equal baseURL
// when one service answers both surfaces.
func NewClient(baseURL, subscriptionURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if subscriptionURL == "" {
		subscriptionURL = baseURL
	}
	return &Client{
		baseURL:         baseURL,
		subscriptionURL: subscriptionURL,
		http:            &http.Client{Timeout: timeout},
	}
}

// Snapshot fetches the usage/engagement snapshot for a user.
func (c *Client) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	var snap Snapshot
	endpoint := fmt.Sprintf("%s/v1/users/%s/telemetry", c.baseURL, url.PathEscape(userID))
	if err := c.getJSON(ctx, endpoint, &snap); err != nil {
		return nil, fmt.Errorf("fetch telemetry snapshot: %w", err)
	}
	snap.UserID = userID
	return &snap, nil
}

// Subscription fetches the current subscription status for a user.
func (c *Client) Subscription(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	endpoint := fmt.Sprintf("%s/v1/users/%s/subscription", c.subscriptionURL, url.PathEscape(userID))
	if err := c.getJSON(ctx, endpoint, &sub); err != nil {
		return nil, fmt.Errorf("fetch subscription status: %w", err)
	}
	sub.UserID = userID
	return &sub, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StaticProvider serves fixed snapshots and subscriptions from memory.
// Used in tests and standalone development mode.
type StaticProvider struct {
	Snapshots     map[string]*Snapshot
	Subscriptions map[string]*Subscription
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		Snapshots:     make(map[string]*Snapshot),
		Subscriptions: make(map[string]*Subscription),
	}
}

// Snapshot implements Provider.
func (p *StaticProvider) Snapshot(_ context.Context, userID string) (*Snapshot, error) {
	snap, ok := p.Snapshots[userID]
	if !ok {
		return nil, fmt.Errorf("no telemetry for user %s", userID)
	}
	cp := *snap
	return &cp, nil
}

// Subscription implements SubscriptionProvider.
func (p *StaticProvider) Subscription(_ context.Context, userID string) (*Subscription, error) {
	sub, ok := p.Subscriptions[userID]
	if !ok {
		return nil, fmt.Errorf("no subscription for user %s", userID)
	}
	cp := *sub
	return &cp, nil
}
