package sensorlink

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/gorilla/websocket"
)

// Client is a line-oriented WebSocket client for the relay.
type Client struct {
	conn *websocket.Conn
	done chan struct{}
}

func NewClient(u url.URL) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Handshake sends the structured identity frame and waits for the
// connection acknowledgement. It must be called before Read.
func (c *Client) Handshake(userID string, timeout time.Duration) (domain.ConnectionAck, error) {
	var ack domain.ConnectionAck

	frame, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return ack, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return ack, err
	}

	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return ack, err
	}
	if err := json.Unmarshal(message, &ack); err != nil {
		return ack, fmt.Errorf("unexpected handshake reply %q: %w", message, err)
	}
	if ack.Type != domain.EnvelopeTypeConnection {
		return ack, fmt.Errorf("unexpected handshake reply %q", message)
	}

	return ack, nil
}

// Read copies every received frame to w, one per line, until the
// connection closes.
func (c *Client) Read(w io.Writer) error {
	defer close(c.done)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		if _, err := fmt.Fprintf(w, "%s\n", message); err != nil {
			return err
		}
	}
}

// Send writes content as a chat message.
func (c *Client) Send(content string) error {
	frame, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a normal closure and waits briefly for the server to close
// the connection.
func (c *Client) Close() error {
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return c.conn.Close()
	}

	c.waitCloseConnection()
	return c.conn.Close()
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) waitCloseConnection() {
	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
}
