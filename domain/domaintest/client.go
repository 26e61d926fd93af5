// Package domaintest provides in-memory doubles for domain interfaces.
package domaintest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/HMasataka/sensorlink/domain"
)

// Client records every frame written to it.
type Client struct {
	id string

	mu      sync.Mutex
	open    bool
	closed  int
	sent    [][]byte
	sendErr error
}

var _ domain.Client = (*Client)(nil)

func NewClient(id string) *Client {
	return &Client{id: id, open: true}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Send(_ context.Context, message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return errors.New("connection is closed")
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), message...))
	return nil
}

func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closed++
	return nil
}

// SetOpen flips the writable state without counting a Close.
func (c *Client) SetOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
}

// FailSends makes every later Send return err.
func (c *Client) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *Client) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Decoded unmarshals every sent frame into a generic map.
func (c *Client) Decoded() []map[string]any {
	var out []map[string]any
	for _, raw := range c.Sent() {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
