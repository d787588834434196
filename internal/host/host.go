// Package host defines the contract between the shell and the host runtime
// that renders pages, persists state and evaluates expressions.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jask/hyprshell/internal/session"
)

// Call names as they appear on the wire.
const (
	CallLoadState          = "load_state"
	CallSaveState          = "save_state"
	CallNavigate           = "navigate"
	CallDuplicateTab       = "duplicate_tab"
	CallPinTab             = "pin_tab"
	CallToggleIncognito    = "toggle_incognito"
	CallToggleAdblock      = "toggle_adblock"
	CallToggleVPN          = "toggle_vpn"
	CallSetTheme           = "set_theme"
	CallEvaluateExpression = "evaluate_expression"
	CallWindowControl      = "window_control"
	CallGetHistory         = "get_history"
	CallClearHistory       = "clear_history"
	CallGetDownloads       = "get_downloads"
	CallStartDownload      = "start_download"
	CallPauseDownload      = "pause_download"
	CallResumeDownload     = "resume_download"
	CallCancelDownload     = "cancel_download"
	CallSearchModules      = "search_modules"
	CallGetModules         = "get_modules"
	CallInstallModule      = "install_module"
	CallUninstallModule    = "uninstall_module"
	CallEnableModule       = "enable_module"
	CallDisableModule      = "disable_module"
	CallCheckUpdates       = "check_updates"
	CallApplyUpdate        = "apply_update"
)

// WindowOp is a window-chrome request forwarded to the host.
type WindowOp string

const (
	WindowClose    WindowOp = "close"
	WindowMinimize WindowOp = "minimize"
	WindowMaximize WindowOp = "maximize"
)

// ErrUnsupported is returned by hosts that cannot perform a call.
var ErrUnsupported = errors.New("host: call not supported")

// Request payloads.
type (
	// SaveRequest carries a state snapshot stamped by its writer. A host
	// drops a request whose version is not newer than the last one it
	// stored from the same writer.
	SaveRequest struct {
		Writer  string        `json:"writer,omitempty"`
		Version uint64        `json:"version,omitempty"`
		State   session.State `json:"state"`
	}
	NavigateRequest struct {
		URL       string `json:"url"`
		Incognito bool   `json:"incognito,omitempty"`
	}
	IndexRequest struct {
		Index int `json:"index"`
	}
	ThemeRequest struct {
		Theme session.Theme `json:"theme"`
	}
	ExpressionRequest struct {
		Expr string `json:"expr"`
	}
	WindowRequest struct {
		Op WindowOp `json:"op"`
	}
	HistoryQuery struct {
		Query string `json:"query,omitempty"`
		Limit int    `json:"limit,omitempty"`
	}
	URLRequest struct {
		URL string `json:"url"`
	}
	IDRequest struct {
		ID string `json:"id"`
	}
	QueryRequest struct {
		Query string `json:"query"`
	}
	RepoRequest struct {
		Repo string `json:"repo"`
	}
	NameRequest struct {
		Name string `json:"name"`
	}
	PathResult struct {
		Path string `json:"path"`
	}
)

// Visit is one entry of the host's browsing history.
type Visit struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	VisitedAt time.Time `json:"visited_at"`
}

// Runtime is everything the shell asks of its host.
type Runtime interface {
	LoadState(ctx context.Context) (session.State, error)
	SaveState(ctx context.Context, req SaveRequest) error
	Navigate(ctx context.Context, req NavigateRequest) error
	DuplicateTab(ctx context.Context, index int) error
	PinTab(ctx context.Context, index int) error
	ToggleIncognito(ctx context.Context) error
	ToggleAdblock(ctx context.Context) error
	ToggleVPN(ctx context.Context) error
	SetTheme(ctx context.Context, theme session.Theme) error
	// EvaluateExpression returns the JSON-compatible result, nil for null.
	EvaluateExpression(ctx context.Context, expr string) (any, error)
	WindowControl(ctx context.Context, op WindowOp) error
	History(ctx context.Context, q HistoryQuery) ([]Visit, error)
	ClearHistory(ctx context.Context) error

	DownloadHost
	ModuleHost
	UpdateHost
}

// CallError ties a failure to the call that produced it.
type CallError struct {
	Call string
	Err  error
}

func (e *CallError) Error() string { return fmt.Sprintf("host %s: %v", e.Call, e.Err) }
func (e *CallError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise a *CallError.
func Wrap(call string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) && ce.Call == call {
		return err
	}
	return &CallError{Call: call, Err: err}
}
