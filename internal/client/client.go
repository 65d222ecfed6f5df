// Package client implements a client delivering ledger events to the notification webhook.
package client

import (
	"context"
	"fmt"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client defines attributes of a struct available to its methods.
type Client struct {
	client *resty.Client
	cfg    *config.NotifierConfig
	log    *zerolog.Logger
}

// InitClient initializes a resty client.
func InitClient(cfg *config.NotifierConfig, log *zerolog.Logger) *Client {
	webhookClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	log.Info().Msg(fmt.Sprintf("notification client initialized for %s", cfg.WebhookURL))
	return &Client{client: webhookClient, cfg: cfg, log: log}
}

// Notify posts one event; any non-2xx answer is an error.
func (c *Client) Notify(ctx context.Context, event modelqueue.LedgerEvent) error {
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Event-ID", event.ID).
		SetBody(event).
		Post(c.cfg.WebhookURL)
	if err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("event %s delivery failed", event.ID))
		return err
	}
	if response.IsError() {
		return fmt.Errorf("event %s rejected by webhook with status %d", event.ID, response.StatusCode())
	}
	return nil
}
