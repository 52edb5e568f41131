package dav

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/document"
	"github.com/airlur/boxysync/internal/store"
)

const (
	syncFolder   = "Boxy"
	dataFileName = "boxy_data.json"
)

// ErrNoServer is returned when a sync operation runs without a configured
// server URL.
var ErrNoServer = errors.New("no server configured")

// PullOutcome describes what a pull did.
type PullOutcome int

const (
	// PullUpdated means the cloud copy was newer and was adopted locally.
	PullUpdated PullOutcome = iota
	// PullLocalCurrent means the local copy is as new or newer; nothing changed.
	PullLocalCurrent
	// PullNoCloudData means the remote file does not exist yet.
	PullNoCloudData
)

// PullResult reports the outcome of a pull.
type PullResult struct {
	Outcome PullOutcome
	Message string
}

// Engine orchestrates push, pull, connection testing and backups.
type Engine struct {
	store  *store.Store
	db     *db.DB
	status *Status
}

// NewEngine creates a sync engine.
func NewEngine(st *store.Store, database *db.DB, status *Status) *Engine {
	return &Engine{store: st, db: database, status: status}
}

// Endpoints derives the sync folder and data file URLs from the configured
// base URL. Trailing slashes are stripped and the fixed folder segment is
// appended unless already present, so repeated syncs always target the same
// remote path.
func Endpoints(baseURL string) (folder, file string) {
	folder = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(folder, "/"+syncFolder) {
		folder += "/" + syncFolder
	}
	return folder, folder + "/" + dataFileName
}

// Push uploads the document to the remote store. A 403/404/409 on the first
// PUT is taken as a missing collection (403 is how at least one provider
// answers) and triggers exactly one MKCOL followed by one retry PUT; any
// further failure is terminal. On success a backup snapshot is taken
// best-effort.
func (e *Engine) Push(ctx context.Context, doc *document.Document, cfg store.WebDavConfig) error {
	start := time.Now()
	e.status.SetSyncing("pushing")

	err := e.push(ctx, doc, cfg)
	e.finish(db.OpPush, start, err, "document pushed")
	return err
}

func (e *Engine) push(ctx context.Context, doc *document.Document, cfg store.WebDavConfig) error {
	if cfg.URL == "" {
		return ErrNoServer
	}

	body, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	folder, file := Endpoints(cfg.URL)
	client := NewClient(cfg.User, cfg.Pass)

	res, err := client.Do(ctx, http.MethodPut, file, body, "")
	if err != nil {
		return err
	}

	if res.Status == http.StatusForbidden ||
		res.Status == http.StatusNotFound ||
		res.Status == http.StatusConflict {
		log.Printf("Push got %d, attempting to create sync folder", res.Status)
		mk, err := client.Do(ctx, "MKCOL", folder, nil, "")
		if err != nil {
			return err
		}
		// 405 means the collection already exists; retry the PUT either way.
		if mk.OK || mk.Status == http.StatusMethodNotAllowed {
			res, err = client.Do(ctx, http.MethodPut, file, body, "")
			if err != nil {
				return err
			}
		}
	}

	if !res.OK {
		return statusError(res)
	}

	e.backupAfterPush(ctx, client, folder, body, cfg)
	return nil
}

// Pull downloads the remote document and adopts it iff its timestamp is
// strictly newer than the local one (a missing timestamp counts as 0, and
// ties keep local). The adopted copy is committed without re-stamping and
// without scheduling an auto-sync push.
func (e *Engine) Pull(ctx context.Context, cfg store.WebDavConfig) (*PullResult, error) {
	start := time.Now()
	e.status.SetSyncing("pulling")

	result, err := e.pull(ctx, cfg)
	msg := ""
	if result != nil {
		msg = result.Message
	}
	if err == nil && result != nil && result.Outcome != PullUpdated {
		e.finishSkipped(db.OpPull, start, msg)
	} else {
		e.finish(db.OpPull, start, err, msg)
	}
	return result, err
}

func (e *Engine) pull(ctx context.Context, cfg store.WebDavConfig) (*PullResult, error) {
	if cfg.URL == "" {
		return nil, ErrNoServer
	}

	_, file := Endpoints(cfg.URL)
	client := NewClient(cfg.User, cfg.Pass)

	res, err := client.Do(ctx, http.MethodGet, file, nil, "")
	if err != nil {
		return nil, err
	}

	if res.Status == http.StatusNotFound {
		// Not an error: there is simply nothing in the cloud yet.
		return &PullResult{
			Outcome: PullNoCloudData,
			Message: "no cloud data yet, push first",
		}, nil
	}
	if !res.OK {
		return nil, statusError(res)
	}

	raw := res.JSON
	if raw == nil {
		raw = []byte(res.Text)
	}
	cloud, err := document.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: cloud document unreadable: %w", ErrSyncFailed, err)
	}

	local := e.store.Local()
	if cloud.UpdatedAt > local.UpdatedAt {
		if err := e.store.CommitRemote(cloud); err != nil {
			return nil, fmt.Errorf("failed to adopt cloud document: %w", err)
		}
		return &PullResult{
			Outcome: PullUpdated,
			Message: "synced newer cloud data",
		}, nil
	}

	return &PullResult{
		Outcome: PullLocalCurrent,
		Message: "local data is up to date",
	}, nil
}

// TestConnection probes the sync folder with a PROPFIND and maps the common
// failure modes to actionable messages.
func (e *Engine) TestConnection(ctx context.Context, cfg store.WebDavConfig) error {
	start := time.Now()
	err := e.testConnection(ctx, cfg)
	e.logOp(db.OpTest, start, err, "connection ok")
	return err
}

func (e *Engine) testConnection(ctx context.Context, cfg store.WebDavConfig) error {
	if cfg.URL == "" {
		return ErrNoServer
	}

	folder, _ := Endpoints(cfg.URL)
	client := NewClient(cfg.User, cfg.Pass)

	res, err := client.Do(ctx, "PROPFIND", folder, nil, "")
	if err != nil {
		return fmt.Errorf("%w: server unreachable, check the address and your connection", ErrNetworkUnavailable)
	}
	switch {
	case res.OK:
		return nil
	case res.Status == http.StatusUnauthorized:
		return fmt.Errorf("%w: check the username and password", ErrAuthFailed)
	case res.Status == http.StatusNotFound:
		return fmt.Errorf("%w: sync folder not found, it is created on first push", ErrRemoteNotFound)
	default:
		return statusError(res)
	}
}

// statusError converts a non-2xx normalized response into a taxonomy error.
func statusError(res *Response) error {
	switch res.Status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: check the username and password", ErrAuthFailed)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRemoteNotFound, res.ErrorMessage())
	default:
		return fmt.Errorf("%w: status %d: %s", ErrSyncFailed, res.Status, res.ErrorMessage())
	}
}

// finish records the operation outcome in both the status cell and the log.
func (e *Engine) finish(op db.SyncOperation, start time.Time, err error, okMsg string) {
	if err != nil {
		e.status.SetError(err.Error())
	} else {
		e.status.SetSuccess(okMsg)
	}
	e.logOp(op, start, err, okMsg)
}

// finishSkipped records a pull that completed without adopting anything.
func (e *Engine) finishSkipped(op db.SyncOperation, start time.Time, msg string) {
	e.status.SetSuccess(msg)
	entry := &db.SyncLog{
		Operation: op,
		Status:    db.SyncStatusSkipped,
		Message:   msg,
		Duration:  time.Since(start),
	}
	if err := e.db.CreateSyncLog(entry); err != nil {
		log.Printf("Failed to create sync log: %v", err)
	}
}

func (e *Engine) logOp(op db.SyncOperation, start time.Time, err error, okMsg string) {
	entry := &db.SyncLog{
		Operation: op,
		Status:    db.SyncStatusSuccess,
		Message:   okMsg,
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Status = db.SyncStatusError
		entry.Message = err.Error()
	}
	if dbErr := e.db.CreateSyncLog(entry); dbErr != nil {
		log.Printf("Failed to create sync log: %v", dbErr)
	}
}
