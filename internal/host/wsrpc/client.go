package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jask/hyprshell/internal/host"
	"github.com/jask/hyprshell/internal/session"
)

// Client is a host.Runtime backed by a websocket connection.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	err     error

	done chan struct{}
}

var _ host.Runtime = (*Client)(nil)

// Dial connects to a host served by NewHandler.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial host %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		log:     logger,
		pending: make(map[uint64]chan response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.fail(err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if !ok {
			c.log.Debug("wsrpc: response for unknown call", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, websocket.ErrCloseSent) {
		err = ErrClosed
	}
	c.err = fmt.Errorf("%w: %v", ErrNotConnected, err)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends method with params and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return host.Wrap(method, fmt.Errorf("encode params: %w", err))
		}
		raw = b
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return host.Wrap(method, err)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	err := c.conn.WriteJSON(request{ID: id, Method: method, Params: raw})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return host.Wrap(method, fmt.Errorf("send: %w", err))
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			return host.Wrap(method, err)
		}
		if resp.Error != nil {
			if resp.Error.Code == CodeUnsupported {
				return host.Wrap(method, fmt.Errorf("%w: %s", host.ErrUnsupported, resp.Error.Message))
			}
			return host.Wrap(method, resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return host.Wrap(method, fmt.Errorf("decode result: %w", err))
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return host.Wrap(method, ctx.Err())
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) LoadState(ctx context.Context) (session.State, error) {
	var st session.State
	err := c.call(ctx, host.CallLoadState, nil, &st)
	return st, err
}

func (c *Client) SaveState(ctx context.Context, req host.SaveRequest) error {
	return c.call(ctx, host.CallSaveState, req, nil)
}

func (c *Client) Navigate(ctx context.Context, req host.NavigateRequest) error {
	return c.call(ctx, host.CallNavigate, req, nil)
}

func (c *Client) DuplicateTab(ctx context.Context, index int) error {
	return c.call(ctx, host.CallDuplicateTab, host.IndexRequest{Index: index}, nil)
}

func (c *Client) PinTab(ctx context.Context, index int) error {
	return c.call(ctx, host.CallPinTab, host.IndexRequest{Index: index}, nil)
}

func (c *Client) ToggleIncognito(ctx context.Context) error {
	return c.call(ctx, host.CallToggleIncognito, nil, nil)
}

func (c *Client) ToggleAdblock(ctx context.Context) error {
	return c.call(ctx, host.CallToggleAdblock, nil, nil)
}

func (c *Client) ToggleVPN(ctx context.Context) error {
	return c.call(ctx, host.CallToggleVPN, nil, nil)
}

func (c *Client) SetTheme(ctx context.Context, theme session.Theme) error {
	return c.call(ctx, host.CallSetTheme, host.ThemeRequest{Theme: theme}, nil)
}

func (c *Client) EvaluateExpression(ctx context.Context, expr string) (any, error) {
	var out any
	err := c.call(ctx, host.CallEvaluateExpression, host.ExpressionRequest{Expr: expr}, &out)
	return out, err
}

func (c *Client) WindowControl(ctx context.Context, op host.WindowOp) error {
	return c.call(ctx, host.CallWindowControl, host.WindowRequest{Op: op}, nil)
}

func (c *Client) History(ctx context.Context, q host.HistoryQuery) ([]host.Visit, error) {
	var out []host.Visit
	err := c.call(ctx, host.CallGetHistory, q, &out)
	return out, err
}

func (c *Client) ClearHistory(ctx context.Context) error {
	return c.call(ctx, host.CallClearHistory, nil, nil)
}

func (c *Client) Downloads(ctx context.Context) ([]host.Download, error) {
	var out []host.Download
	err := c.call(ctx, host.CallGetDownloads, nil, &out)
	return out, err
}

func (c *Client) StartDownload(ctx context.Context, url string) (host.Download, error) {
	var d host.Download
	err := c.call(ctx, host.CallStartDownload, host.URLRequest{URL: url}, &d)
	return d, err
}

func (c *Client) PauseDownload(ctx context.Context, id string) error {
	return c.call(ctx, host.CallPauseDownload, host.IDRequest{ID: id}, nil)
}

func (c *Client) ResumeDownload(ctx context.Context, id string) error {
	return c.call(ctx, host.CallResumeDownload, host.IDRequest{ID: id}, nil)
}

func (c *Client) CancelDownload(ctx context.Context, id string) error {
	return c.call(ctx, host.CallCancelDownload, host.IDRequest{ID: id}, nil)
}

func (c *Client) SearchModules(ctx context.Context, query string) ([]host.ModuleResult, error) {
	var out []host.ModuleResult
	err := c.call(ctx, host.CallSearchModules, host.QueryRequest{Query: query}, &out)
	return out, err
}

func (c *Client) Modules(ctx context.Context) ([]host.Module, error) {
	var out []host.Module
	err := c.call(ctx, host.CallGetModules, nil, &out)
	return out, err
}

func (c *Client) InstallModule(ctx context.Context, repo string) (host.Module, error) {
	var m host.Module
	err := c.call(ctx, host.CallInstallModule, host.RepoRequest{Repo: repo}, &m)
	return m, err
}

func (c *Client) UninstallModule(ctx context.Context, name string) error {
	return c.call(ctx, host.CallUninstallModule, host.NameRequest{Name: name}, nil)
}

func (c *Client) EnableModule(ctx context.Context, name string) error {
	return c.call(ctx, host.CallEnableModule, host.NameRequest{Name: name}, nil)
}

func (c *Client) DisableModule(ctx context.Context, name string) error {
	return c.call(ctx, host.CallDisableModule, host.NameRequest{Name: name}, nil)
}

func (c *Client) CheckUpdates(ctx context.Context) (host.UpdateInfo, error) {
	var info host.UpdateInfo
	err := c.call(ctx, host.CallCheckUpdates, nil, &info)
	return info, err
}

func (c *Client) ApplyUpdate(ctx context.Context) (string, error) {
	var out host.PathResult
	err := c.call(ctx, host.CallApplyUpdate, nil, &out)
	return out.Path, err
}
