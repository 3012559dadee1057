// Package transport implements the minimal reply-delivery surface consumed
// by the daemon: send and file_send over the underlying messaging
// transport, via a gorilla/websocket RPC connection.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gorilla/websocket"
)

const maxFileSize = 1 << 30 // 1 GiB

// Response is the {ok, errorCode?, errorMessage?} shape returned by both RPCs.
type Response struct {
	OK           bool   `json:"ok"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Client wraps a websocket RPC connection to the messaging transport.
type Client struct {
	conn *websocket.Conn
}

// NewClient wraps an already-dialed websocket connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// Send implements send({chat_guid, text}).
func (c *Client) Send(chatGUID, text string) error {
	resp, err := c.call(map[string]interface{}{
		"method": "send",
		"params": map[string]string{"chat_guid": chatGUID, "text": text},
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("transport: send failed: %s: %s", resp.ErrorCode, resp.ErrorMessage)
	}
	return nil
}

// FileSend implements file_send({chat_guid, path, caption?, mime?}),
// enforcing the 1 GiB size limit before dispatch.
func (c *Client) FileSend(chatGUID, path, caption, mime string) Response {
	info, err := os.Stat(path)
	if err != nil {
		return Response{OK: false, ErrorCode: "SEND_FAILED", ErrorMessage: err.Error()}
	}
	if info.Size() > maxFileSize {
		return Response{OK: false, ErrorCode: "SIZE_EXCEEDED", ErrorMessage: "file exceeds 1 GiB limit"}
	}

	resp, err := c.call(map[string]interface{}{
		"method": "file_send",
		"params": map[string]string{"chat_guid": chatGUID, "path": path, "caption": caption, "mime": mime},
	})
	if err != nil {
		return Response{OK: false, ErrorCode: "SEND_FAILED", ErrorMessage: err.Error()}
	}
	return resp
}

func (c *Client) call(req map[string]interface{}) (Response, error) {
	if err := c.conn.WriteJSON(req); err != nil {
		return Response{}, fmt.Errorf("transport: write: %w", err)
	}
	var raw json.RawMessage
	if err := c.conn.ReadJSON(&raw); err != nil {
		return Response{}, fmt.Errorf("transport: read: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("transport: decode response: %w", err)
	}
	return resp, nil
}

// InboundEvent is one pushed event off the transport's event stream (spec
// C16's ingestion subscription). Only "message" events carry a payload the
// daemon cares about; others (presence, typing, ...) are ignored by Watch.
type InboundEvent struct {
	Event       string   `json:"event"`
	ChatGUID    string   `json:"chatGuid"`
	Sender      string   `json:"sender"`
	Text        string   `json:"text"`
	RowID       int64    `json:"rowId"`
	MessageID   string   `json:"messageId"`
	IsFromMe    bool     `json:"isFromMe"`
	Attachments []string `json:"attachments,omitempty"`
}

// Watcher wraps a dedicated websocket connection carrying the transport's
// pushed event stream, kept separate from Client's request/response RPC
// connection so a blocking event read never steals a byte meant for an
// in-flight Send/FileSend reply.
type Watcher struct {
	conn *websocket.Conn
}

// NewWatcher wraps an already-dialed websocket connection subscribed to the
// transport's event stream.
func NewWatcher(conn *websocket.Conn) *Watcher {
	return &Watcher{conn: conn}
}

// Watch reads events until ctx is cancelled or the connection fails,
// invoking handler for each "message" event. It blocks the calling
// goroutine; callers run it via `go`.
func (w *Watcher) Watch(ctx context.Context, handler func(InboundEvent)) error {
	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = w.conn.Close()
		case <-closed:
		}
	}()
	defer close(closed)

	for {
		var ev InboundEvent
		if err := w.conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: watch read: %w", err)
		}
		if ev.Event != "message" {
			continue
		}
		handler(ev)
	}
}

// DialRPC opens only the request/response RPC connection, for one-shot CLI
// commands (`msgcode file send`) that never need the pushed event
// stream Watcher subscribes to.
func DialRPC(ctx context.Context, rpcURL string) (*Client, error) {
	rpcConn, _, err := websocket.DefaultDialer.DialContext(ctx, rpcURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial rpc: %w", err)
	}
	return NewClient(rpcConn), nil
}

// Dial opens the RPC connection and the event-stream connection the daemon
// needs: rpcURL for Client (Send/FileSend), eventURL for Watcher (inbound
// messages). A single transport process is expected to serve both.
func Dial(ctx context.Context, rpcURL, eventURL string) (*Client, *Watcher, error) {
	rpcConn, _, err := websocket.DefaultDialer.DialContext(ctx, rpcURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: dial rpc: %w", err)
	}
	eventConn, _, err := websocket.DefaultDialer.DialContext(ctx, eventURL, nil)
	if err != nil {
		_ = rpcConn.Close()
		return nil, nil, fmt.Errorf("transport: dial events: %w", err)
	}
	return NewClient(rpcConn), NewWatcher(eventConn), nil
}
