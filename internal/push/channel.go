// Package push serves the broker's live status feed: one WebSocket
// connection per subscriber, framed as JSON-RPC notifications, carrying an
// initial snapshot of active tasks followed by incremental updates and a
// periodic engine-wide stats tick.
package push

import (
	"context"

	cws "github.com/coder/websocket"
)

// wsChannel adapts a coder/websocket connection to the jrpc2 Channel
// interface (Send/Recv/Close), the same bridge the teacher's RPC transport
// uses to run a jrpc2.Server directly over a WebSocket instead of HTTP
// request/response.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
