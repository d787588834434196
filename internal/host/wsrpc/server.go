package wsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jask/hyprshell/internal/host"
)

const saveBacklog = 16

// Handler serves a host.Runtime to websocket clients.
type Handler struct {
	rt       host.Runtime
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(rt host.Runtime, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rt:  rt,
		log: logger,
		upgrader: websocket.Upgrader{
			// The shell connects from a terminal, not a browser page.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()
	h.log.Info("shell connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	write := func(resp response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			h.log.Warn("write response failed", "id", resp.ID, "err", err)
		}
	}

	// save_state runs one at a time in arrival order; everything else is
	// dispatched concurrently.
	saves := make(chan request, saveBacklog)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for req := range saves {
			write(h.dispatch(ctx, req))
		}
	}()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("read request failed", "remote", r.RemoteAddr, "err", err)
			}
			break
		}
		if req.Method == host.CallSaveState {
			saves <- req
			continue
		}
		wg.Add(1)
		go func(req request) {
			defer wg.Done()
			write(h.dispatch(ctx, req))
		}(req)
	}
	close(saves)
	cancel()
	wg.Wait()
	h.log.Info("shell disconnected", "remote", r.RemoteAddr)
}

func (h *Handler) dispatch(ctx context.Context, req request) response {
	result, err := h.invoke(ctx, req.Method, req.Params)
	resp := response{ID: req.ID}
	if err != nil {
		h.log.Debug("call failed", "method", req.Method, "err", err)
		resp.Error = toRemoteError(err)
		return resp
	}
	b, err := json.Marshal(result)
	if err != nil {
		resp.Error = &RemoteError{Code: CodeCallFailed, Message: "encode result: " + err.Error()}
		return resp
	}
	resp.Result = b
	return resp
}

type paramsError struct{ err error }

func (e paramsError) Error() string { return "invalid params: " + e.err.Error() }

type methodError struct{ method string }

func (e methodError) Error() string { return "unknown method " + e.method }

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, paramsError{err}
	}
	return v, nil
}

func (h *Handler) invoke(ctx context.Context, method string, raw json.RawMessage) (any, error) {
	switch method {
	case host.CallLoadState:
		return h.rt.LoadState(ctx)
	case host.CallSaveState:
		req, err := decode[host.SaveRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.rt.SaveState(ctx, req)
	case host.CallNavigate:
		req, err := decode[host.NavigateRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.rt.Navigate(ctx, req)
	case host.CallDuplicateTab:
		req, err := decode[host.IndexRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.rt.DuplicateTab(ctx, req.Index)
	case host.CallPinTab:
		req, err := decode[host.IndexRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.rt.PinTab(ctx, req.Index)
	case host.CallToggleIncognito:
		return nil, h.rt.ToggleIncognito(ctx)
	case host.CallToggleAdblock:
		return nil, h.rt.ToggleAdblock(ctx)
	case host.CallToggleVPN:
		return nil, h.rt.ToggleVPN(ctx)
	case host.CallSetTheme:
		req, err := decode[host.ThemeRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.rt.SetTheme(ctx, req.Theme)
	case host.CallEvaluateExpression:
		req, err := decode[host.ExpressionRequest](raw)
		if err != nil {
			return nil, err
		}
		return h.rt.EvaluateExpression(ctx, req.Expr)
	case host.CallWindowControl:
		req, err := decode[host.WindowRequest](raw)
		if err != nil {
			return nil, err
		}
		return nil, h.rt.WindowControl(ctx, req.Op)
	case host.CallGetHistory:
		q, err := decode[host.HistoryQuery](raw)
		if err != nil {
			return nil, err
		}
		return h.rt.History(ctx, q)
	case host.CallClearHistory:
		return nil, h.rt.ClearHistory(ctx)
	case host.CallGetDownloads:
		return h.rt.Downloads(ctx)
	case host.CallStartDownload:
		req, err := decode[host.URLRequest](raw)
		if err != nil {
			return nil, err
		}
		return h.rt.StartDownload(ctx, req.URL)
	case host.CallPauseDownload, host.CallResumeDownload, host.CallCancelDownload:
		req, err := decode[host.IDRequest](raw)
		if err != nil {
			return nil, err
		}
		switch method {
		case host.CallPauseDownload:
			return nil, h.rt.PauseDownload(ctx, req.ID)
		case host.CallResumeDownload:
			return nil, h.rt.ResumeDownload(ctx, req.ID)
		}
		return nil, h.rt.CancelDownload(ctx, req.ID)
	case host.CallSearchModules:
		req, err := decode[host.QueryRequest](raw)
		if err != nil {
			return nil, err
		}
		return h.rt.SearchModules(ctx, req.Query)
	case host.CallGetModules:
		return h.rt.Modules(ctx)
	case host.CallInstallModule:
		req, err := decode[host.RepoRequest](raw)
		if err != nil {
			return nil, err
		}
		return h.rt.InstallModule(ctx, req.Repo)
	case host.CallUninstallModule, host.CallEnableModule, host.CallDisableModule:
		req, err := decode[host.NameRequest](raw)
		if err != nil {
			return nil, err
		}
		switch method {
		case host.CallUninstallModule:
			return nil, h.rt.UninstallModule(ctx, req.Name)
		case host.CallEnableModule:
			return nil, h.rt.EnableModule(ctx, req.Name)
		}
		return nil, h.rt.DisableModule(ctx, req.Name)
	case host.CallCheckUpdates:
		return h.rt.CheckUpdates(ctx)
	case host.CallApplyUpdate:
		path, err := h.rt.ApplyUpdate(ctx)
		if err != nil {
			return nil, err
		}
		return host.PathResult{Path: path}, nil
	}
	return nil, methodError{method}
}

func toRemoteError(err error) *RemoteError {
	var (
		pe paramsError
		me methodError
	)
	switch {
	case errors.As(err, &pe):
		return &RemoteError{Code: CodeInvalidParams, Message: err.Error()}
	case errors.As(err, &me):
		return &RemoteError{Code: CodeUnknownMethod, Message: err.Error()}
	case errors.Is(err, host.ErrUnsupported):
		return &RemoteError{Code: CodeUnsupported, Message: err.Error()}
	}
	return &RemoteError{Code: CodeCallFailed, Message: err.Error()}
}
