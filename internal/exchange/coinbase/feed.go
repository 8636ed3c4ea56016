package coinbase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// OrderUpdate is one user-channel event for an order this account owns.
// The feed is a wake-up hint for the confirmation loop; the REST order
// state stays the source of truth.
type OrderUpdate struct {
	OrderID string
	Type    string
}

type Feed struct {
	conn *websocket.Conn
}

type subscribeRequest struct {
	Type       string           `json:"type"`
	Channels   []subscribeEntry `json:"channels"`
	Key        string           `json:"key,omitempty"`
	Passphrase string           `json:"passphrase,omitempty"`
	Timestamp  string           `json:"timestamp,omitempty"`
	Signature  string           `json:"signature,omitempty"`
}

type subscribeEntry struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

type feedMessage struct {
	Type         string `json:"type"`
	OrderID      string `json:"order_id"`
	MakerOrderID string `json:"maker_order_id"`
	TakerOrderID string `json:"taker_order_id"`
	Message      string `json:"message"`
}

// NewFeed opens the websocket feed and subscribes to the authenticated user
// channel for productID, so fills on this account's orders arrive as events.
func (c *Client) NewFeed(ctx context.Context, productID string) (*Feed, error) {
	if c.wsFeedURL == "" {
		return nil, errors.New("ws feed url required")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsFeedURL, nil)
	if err != nil {
		return nil, err
	}
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature, err := sign(c.apiSecret, timestamp, "GET", "/users/self/verify", nil)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sub := subscribeRequest{
		Type: "subscribe",
		Channels: []subscribeEntry{
			{Name: "user", ProductIDs: []string{productID}},
			{Name: "heartbeat", ProductIDs: []string{productID}},
		},
		Key:        c.apiKey,
		Passphrase: c.passphrase,
		Timestamp:  timestamp,
		Signature:  signature,
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Feed{conn: conn}, nil
}

// Updates streams user-channel order events until ctx ends or the
// connection breaks. Errors are delivered best effort; a broken feed only
// costs the early wake-up, never correctness.
func (f *Feed) Updates(ctx context.Context) (<-chan OrderUpdate, <-chan error) {
	updates := make(chan OrderUpdate)
	errCh := make(chan error, 1)

	reportErr := func(err error) {
		if err == nil {
			return
		}
		select {
		case errCh <- err:
		default:
		}
	}

	const readTimeout = 30 * time.Second
	f.conn.SetPongHandler(func(string) error {
		return f.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(updates)
		defer f.conn.Close()
		for {
			_ = f.conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, data, err := f.conn.ReadMessage()
			if err != nil {
				reportErr(err)
				return
			}
			var msg feedMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "error":
				reportErr(errors.New("feed error: " + msg.Message))
				return
			case "received", "open", "done", "activate":
				if msg.OrderID == "" {
					continue
				}
				select {
				case updates <- OrderUpdate{OrderID: msg.OrderID, Type: msg.Type}:
				case <-ctx.Done():
					return
				}
			case "match":
				for _, id := range []string{msg.MakerOrderID, msg.TakerOrderID} {
					if id == "" {
						continue
					}
					select {
					case updates <- OrderUpdate{OrderID: id, Type: msg.Type}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return updates, errCh
}

func (f *Feed) Close() error {
	return f.conn.Close()
}
