package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"machinecraft.ai/internal/protocol"
)

// Client is a replica-side connection to a server's replica endpoint.
type Client struct {
	conn    *websocket.Conn
	welcome protocol.WelcomeMsg
}

// Dial connects to url, sends HELLO and waits for WELCOME.
func Dial(ctx context.Context, url, replicaName string, queue int) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ReplicaName:     replicaName,
		MaxQueue:        queue,
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	base, err := protocol.DecodeBase(msg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	switch base.Type {
	case protocol.TypeWelcome:
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		_ = conn.Close()
		return nil, fmt.Errorf("server refused: %s: %s", e.Code, e.Message)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", base.Type)
	}

	c := &Client{conn: conn}
	if err := json.Unmarshal(msg, &c.welcome); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

// Run hands every server message to apply until ctx ends, the connection
// drops or apply fails. It closes the connection on return.
func (c *Client) Run(ctx context.Context, apply func([]byte) error) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	defer c.conn.Close()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := apply(msg); err != nil {
			return err
		}
	}
}

func (c *Client) Close() error { return c.conn.Close() }
