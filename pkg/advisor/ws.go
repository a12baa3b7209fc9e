package advisor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the chat over a websocket: every question frame gets the echo, the typing
// indicator and, after Delay, the answer.
type Handler struct {
	Delay  time.Duration
	logger *log.Logger
}

// NewHandler builds a handler with the default typing delay.
func NewHandler(logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stdout, "[advisor] ", log.LstdFlags)
	}
	return &Handler{Delay: DefaultDelay, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("advisor: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Printf("advisor: read: %v", err)
			}
			return
		}
		var t Transcript
		if !t.Ask(in.Text) {
			continue
		}
		for _, m := range t.Messages {
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		}
		select {
		case <-time.After(h.Delay):
		case <-r.Context().Done():
			return
		}
		if err := conn.WriteJSON(t.Resolve()); err != nil {
			return
		}
	}
}

// Client talks to a Handler.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a ws:// or wss:// advisor endpoint. jar carries the login session and may be nil.
func Dial(ctx context.Context, url string, jar http.CookieJar) (*Client, error) {
	dialer := *websocket.DefaultDialer
	dialer.Jar = jar
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("advisor: dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Ask sends a question and calls onMessage for every frame until the answer arrives.
func (c *Client) Ask(ctx context.Context, question string, onMessage func(Message)) (Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	if err := c.conn.WriteJSON(Message{Kind: KindUser, Text: question}); err != nil {
		return Message{}, fmt.Errorf("advisor: send: %w", err)
	}
	for {
		var m Message
		if err := c.conn.ReadJSON(&m); err != nil {
			return Message{}, fmt.Errorf("advisor: receive: %w", err)
		}
		if onMessage != nil {
			onMessage(m)
		}
		if m.Kind == KindAnswer || m.Kind == KindError {
			return m, nil
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}
