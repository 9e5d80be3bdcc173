// Package network provides a WebSocket client for driving a remote keyboard bridge.
package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"sendkeys/internal/input"
	"sendkeys/internal/protocol"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned for calls on a closed or disconnected client
var ErrClosed = errors.New("connection to bridge closed")

// WSClient sends calls to a bridge server and matches results by ID.
// It implements input.Controller.
type WSClient struct {
	hostAddr string
	conn     *websocket.Conn

	// Timeout bounds each Controller call (default: 10s)
	Timeout time.Duration

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan protocol.Result
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the bridge at hostAddr ("host:port")
func Dial(ctx context.Context, hostAddr, token string) (*WSClient, error) {
	u := url.URL{Scheme: "ws", Host: hostAddr, Path: "/ws"}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w (status %d)", u.String(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}

	c := &WSClient{
		hostAddr: hostAddr,
		conn:     conn,
		Timeout:  10 * time.Second,
		pending:  make(map[uint64]chan protocol.Result),
		done:     make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

func (c *WSClient) readPump() {
	for {
		var res protocol.Result
		if err := c.conn.ReadJSON(&res); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WS Client: Read error: %v", err)
			}
			c.fail(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[res.ID]
		delete(c.pending, res.ID)
		c.mu.Unlock()

		if !ok {
			log.Printf("WS Client: Dropping result for unknown call %d", res.ID)
			continue
		}
		ch <- res
	}
}

// fail records the terminal error and releases every waiting call
func (c *WSClient) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.pending = make(map[uint64]chan protocol.Result)
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
}

// Call sends one call and waits for its result
func (c *WSClient) Call(ctx context.Context, op protocol.Op, args ...int) (protocol.Result, error) {
	id := c.nextID.Add(1)
	ch := make(chan protocol.Result, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return protocol.Result{}, fmt.Errorf("%w: %v", ErrClosed, err)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(protocol.NewCall(id, op, args...))
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return protocol.Result{}, fmt.Errorf("failed to send %s: %w", op, err)
	}

	return c.await(ctx, id, ch)
}

// await waits for the result of call id, preferring a delivered result over
// a connection that closed at the same moment
func (c *WSClient) await(ctx context.Context, id uint64, ch <-chan protocol.Result) (protocol.Result, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		c.forget(id)
		return protocol.Result{}, ctx.Err()
	case <-c.done:
		// the result may have arrived just before the connection dropped
		select {
		case res := <-ch:
			return res, nil
		default:
			return protocol.Result{}, ErrClosed
		}
	}
}

func (c *WSClient) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WSClient) call(op protocol.Op, arg int) (protocol.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	res, err := c.Call(ctx, op, arg)
	if err != nil {
		return res, err
	}
	return res, ResultError(res)
}

// KeyDown presses a key on the remote bridge
func (c *WSClient) KeyDown(vk int) error {
	_, err := c.call(protocol.OpKeyDown, vk)
	return err
}

// KeyUp releases a key on the remote bridge
func (c *WSClient) KeyUp(vk int) error {
	_, err := c.call(protocol.OpKeyUp, vk)
	return err
}

// ToggleNumLock drives NUMLOCK on the remote bridge and returns its prior state
func (c *WSClient) ToggleNumLock(on bool) (bool, error) {
	arg := 0
	if on {
		arg = 1
	}
	res, err := c.call(protocol.OpToggleNumLock, arg)
	if err != nil {
		return false, err
	}
	if res.Value == nil {
		return false, fmt.Errorf("%s: bridge returned no value", protocol.OpToggleNumLock)
	}
	return *res.Value != 0, nil
}

// Close closes the connection
func (c *WSClient) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.fail(ErrClosed)
	return err
}

// ResultError converts a failed result back into the error the bridge raised
func ResultError(res protocol.Result) error {
	if res.OK() {
		return nil
	}

	switch res.Kind {
	case protocol.KindArgument:
		return &protocol.ArgumentError{Reason: res.Error}
	case protocol.KindRange:
		return fmt.Errorf("%w (remote: %s)", input.ErrKeyCodeRange, res.Error)
	case protocol.KindOS:
		return fmt.Errorf("%w (remote: %s)", input.ErrInjectFailed, res.Error)
	case protocol.KindState:
		return fmt.Errorf("%w (remote: %s)", input.ErrStateUnavailable, res.Error)
	case protocol.KindUnsupported:
		return fmt.Errorf("%w (remote: %s)", input.ErrUnsupported, res.Error)
	default:
		return fmt.Errorf("remote %s failed: %s", res.Op, res.Error)
	}
}

var _ input.Controller = (*WSClient)(nil)
