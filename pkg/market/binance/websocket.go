package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// StreamClient manages lightweight streaming from Binance public websockets.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client; testnet toggles the host.
func NewStreamClient(testnet bool) *StreamClient {
	host := "stream.binance.com:9443"
	if testnet {
		host = "testnet.binance.vision"
	}
	return &StreamClient{
		StreamURL: (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String(),
		dialer:    websocket.DefaultDialer,
	}
}

// SubscribeTicker streams 24h rolling ticker updates; Price is the last price.
func (c *StreamClient) SubscribeTicker(ctx context.Context, symbol string) (<-chan Ticker, func(), error) {
	stream := fmt.Sprintf("%s@ticker", strings.ToLower(symbol))
	return subscribe(ctx, c, stream, parseTickerMessage)
}

// subscribe dials one stream and pumps parsed messages into a channel until
// ctx ends, the connection drops, or stop is called. The channel is closed
// exactly once on exit, so consumers can range over it to detect a drop.
func subscribe[T any](ctx context.Context, c *StreamClient, stream string, parse func([]byte) (T, error)) (<-chan T, func(), error) {
	u := fmt.Sprintf("%s/%s", c.StreamURL, stream)

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial binance ws %s: %w", stream, err)
	}

	out := make(chan T, 100)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	// Unblock ReadMessage when the caller's context ends.
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer stop()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-done:
					return
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				log.Printf("binance ws %s read error: %v", stream, err)
				return
			}

			parsed, err := parse(msg)
			if err != nil {
				log.Printf("binance ws %s parse error: %v", stream, err)
				continue
			}
			select {
			case out <- parsed:
			case <-done:
				return
			}
		}
	}()

	return out, stop, nil
}

func parseTickerMessage(msg []byte) (Ticker, error) {
	var raw struct {
		Symbol string `json:"s"`
		Last   any    `json:"c"`
		CloseT int64  `json:"C"` // close time
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Ticker{}, err
	}
	if raw.Symbol == "" {
		return Ticker{}, fmt.Errorf("not a ticker message: %s", string(msg))
	}
	return Ticker{
		Symbol: raw.Symbol,
		Price:  toFloat(raw.Last),
		Time:   raw.CloseT,
	}, nil
}
