// Package remote implements types.Backend as a client of the listings HTTP
// server. Reads and writes are JSON requests; listeners are websocket
// streams, one connection per listener.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/server"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

const (
	requestTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
	readTimeout    = 2 * time.Minute
)

// Client is a remote types.Backend.
type Client struct {
	mu       sync.RWMutex
	attached bool
	base     *url.URL
	http     *http.Client
	dialer   *websocket.Dialer

	// ctx is cancelled on Detach, closing every listener.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient returns a detached client. httpClient may be nil.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{http: httpClient, dialer: websocket.DefaultDialer}
}

// Attach points the client at config.RemoteURL and checks the server is
// reachable.
func (c *Client) Attach(config types.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.RemoteURL == "" {
		return types.ErrRemoteURLEmpty
	}
	base, err := url.Parse(strings.TrimSuffix(config.RemoteURL, "/"))
	if err != nil {
		return fmt.Errorf("parsing remote url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String()+server.HealthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health check returned %s", types.ErrUnavailable, resp.Status)
	}

	c.base = base
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.attached = true
	glog.V(1).Infof("remote backend attached at %s", base)
	return nil
}

// Detach closes every listener. Idempotent.
func (c *Client) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return nil
	}
	c.cancel()
	c.attached = false
	return nil
}

func (c *Client) endpoint() (*url.URL, context.Context, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.attached {
		return nil, nil, types.ErrBackendDetached
	}
	return c.base, c.ctx, nil
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// do sends a request and decodes a 2xx JSON response into out, which may be
// nil. Failures become errors matching the layer's sentinels.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	base, _, err := c.endpoint()
	if err != nil {
		return err
	}

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base.String()+path, rd)
	if err != nil {
		return err
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", types.ErrInvalidData, err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	var er server.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Code != "" {
		return types.ErrorForCode(er.Error.Code, er.Error.Message)
	}
	return types.ErrorForCode(server.CodeForStatus(resp.StatusCode), resp.Status)
}

// GetDoc fetches a document.
func (c *Client) GetDoc(ctx context.Context, loc types.Locator) (types.DocSnapshot, error) {
	var snap types.DocSnapshot
	err := c.do(ctx, http.MethodGet, server.DocsPrefix+escapePath(loc.Path()), nil, &snap)
	return snap, err
}

// GetQuery evaluates a query on the server.
func (c *Client) GetQuery(ctx context.Context, loc types.Locator) (types.QuerySnapshot, error) {
	var snap types.QuerySnapshot
	if err := c.do(ctx, http.MethodPost, server.QueryPath, loc, &snap); err != nil {
		return types.QuerySnapshot{}, err
	}
	if snap.Docs == nil {
		snap.Docs = []types.Document{}
	}
	return snap, nil
}

// Set creates or overwrites a document.
func (c *Client) Set(ctx context.Context, loc types.Locator, data json.RawMessage) error {
	return c.do(ctx, http.MethodPut, server.DocsPrefix+escapePath(loc.Path()), data, nil)
}

// Create adds a document to a collection.
func (c *Client) Create(ctx context.Context, loc types.Locator, data json.RawMessage) (string, error) {
	var out server.CreateResponse
	if err := c.do(ctx, http.MethodPost, server.CollectionsPrefix+escapePath(loc.Path()), data, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Update merges fields into a document.
func (c *Client) Update(ctx context.Context, loc types.Locator, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, server.DocsPrefix+escapePath(loc.Path()), fields, nil)
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, loc types.Locator) error {
	return c.do(ctx, http.MethodDelete, server.DocsPrefix+escapePath(loc.Path()), nil, nil)
}

// WatchDoc streams document snapshots.
func (c *Client) WatchDoc(loc types.Locator, onNext func(types.DocSnapshot), onErr func(error)) func() {
	return c.watch(loc, func(f server.Frame) bool {
		if f.Doc == nil {
			return false
		}
		onNext(*f.Doc)
		return true
	}, onErr)
}

// WatchQuery streams query snapshots.
func (c *Client) WatchQuery(loc types.Locator, onNext func(types.QuerySnapshot), onErr func(error)) func() {
	return c.watch(loc, func(f server.Frame) bool {
		if f.Query == nil {
			return false
		}
		if f.Query.Docs == nil {
			f.Query.Docs = []types.Document{}
		}
		onNext(*f.Query)
		return true
	}, onErr)
}

func (c *Client) watchURL(base *url.URL) string {
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + server.WatchPath
	return u.String()
}

// watch dials in the background so attaching never blocks. deliver returns
// false for frames of the wrong shape.
func (c *Client) watch(loc types.Locator, deliver func(server.Frame) bool, onErr func(error)) func() {
	base, parent, err := c.endpoint()
	if err != nil {
		go onErr(err)
		return func() {}
	}
	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer cancel()
		fail := func(err error) {
			if ctx.Err() == nil {
				onErr(err)
			}
		}

		ws, _, err := c.dialer.DialContext(ctx, c.watchURL(base), nil)
		if err != nil {
			fail(fmt.Errorf("%w: %v", types.ErrUnavailable, err))
			return
		}
		defer ws.Close()
		go func() {
			<-ctx.Done()
			ws.Close()
		}()

		if err := ws.WriteJSON(loc); err != nil {
			fail(fmt.Errorf("%w: %v", types.ErrUnavailable, err))
			return
		}
		ws.SetPingHandler(func(data string) error {
			ws.SetReadDeadline(time.Now().Add(readTimeout))
			return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(pingTimeout))
		})

		for {
			ws.SetReadDeadline(time.Now().Add(readTimeout))
			var f server.Frame
			if err := ws.ReadJSON(&f); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					fail(types.ErrBackendDetached)
				} else {
					fail(fmt.Errorf("%w: %v", types.ErrUnavailable, err))
				}
				return
			}
			if f.Error != nil {
				fail(types.ErrorForCode(f.Error.Code, f.Error.Message))
				return
			}
			if ctx.Err() != nil {
				return
			}
			if !deliver(f) {
				glog.Warningf("watch %s: unexpected frame", loc)
			}
		}
	}()

	return cancel
}
