package dav

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/airlur/boxysync/internal/db"
	"github.com/airlur/boxysync/internal/document"
	"github.com/airlur/boxysync/internal/store"
)

// Snapshot filenames encode a UTC timestamp with second resolution in a
// fixed-width form, so lexicographic order equals chronological order.
const snapshotTimeLayout = "060102-150405"

// snapshotNameRe scrapes names out of raw listing bodies and is deliberately
// unanchored; exactSnapshotNameRe validates caller-supplied filenames.
var (
	snapshotNameRe      = regexp.MustCompile(`boxy_data_(\d{6}-\d{6})\.json`)
	exactSnapshotNameRe = regexp.MustCompile(`^boxy_data_\d{6}-\d{6}\.json$`)
)

// Backup identifies one immutable snapshot on the remote store.
type Backup struct {
	Filename string    `json:"filename"`
	Time     time.Time `json:"time"`
}

func snapshotName(t time.Time) string {
	return "boxy_data_" + t.UTC().Format(snapshotTimeLayout) + ".json"
}

// backupAfterPush uploads a timestamped snapshot of the just-pushed document
// and prunes old ones. Everything here is best-effort: a backup failure must
// never fail the push that triggered it.
func (e *Engine) backupAfterPush(ctx context.Context, client *Client, folder string, body []byte, cfg store.WebDavConfig) {
	start := time.Now()
	name := snapshotName(start)

	res, err := client.Do(ctx, http.MethodPut, folder+"/"+name, body, "")
	if err != nil {
		log.Printf("Backup upload failed: %v", err)
		return
	}
	if !res.OK {
		log.Printf("Backup upload failed: status %d", res.Status)
		return
	}
	e.logOp(db.OpBackup, start, nil, "snapshot "+name)

	if err := e.prune(ctx, client, folder, cfg.BackupLimit); err != nil {
		log.Printf("Backup pruning failed: %v", err)
	}
}

// ListBackups lists the remote snapshots, newest first. Filenames are
// recognized by the fixed naming convention rather than by parsing WebDAV
// metadata; the subsystem only ever needs to find its own snapshots.
func (e *Engine) ListBackups(ctx context.Context, cfg store.WebDavConfig) ([]Backup, error) {
	if cfg.URL == "" {
		return nil, ErrNoServer
	}

	folder, _ := Endpoints(cfg.URL)
	client := NewClient(cfg.User, cfg.Pass)
	return listSnapshots(ctx, client, folder)
}

func listSnapshots(ctx context.Context, client *Client, folder string) ([]Backup, error) {
	res, err := client.Do(ctx, "PROPFIND", folder, nil, "")
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		// No sync folder yet means no backups, not a failure.
		return []Backup{}, nil
	}
	if !res.OK {
		return nil, statusError(res)
	}

	body := res.Text
	if body == "" && res.JSON != nil {
		body = string(res.JSON)
	}
	return parseSnapshotNames(body), nil
}

// parseSnapshotNames extracts snapshot filenames from a raw directory
// listing body, de-duplicates them and sorts newest first.
func parseSnapshotNames(body string) []Backup {
	seen := make(map[string]bool)
	backups := make([]Backup, 0)

	for _, name := range snapshotNameRe.FindAllString(body, -1) {
		if seen[name] {
			continue
		}
		seen[name] = true

		stamp := snapshotNameRe.FindStringSubmatch(name)[1]
		t, err := time.Parse(snapshotTimeLayout, stamp)
		if err != nil {
			continue
		}
		backups = append(backups, Backup{Filename: name, Time: t.UTC()})
	}

	// Fixed-width timestamps sort the same by name and by time.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Filename > backups[j].Filename
	})
	return backups
}

// prune deletes the oldest snapshots beyond the retention limit. Deletes run
// sequentially and a single failure does not abort the rest.
func (e *Engine) prune(ctx context.Context, client *Client, folder string, limit int) error {
	if limit < store.MinBackupLimit {
		limit = store.MinBackupLimit
	}
	if limit > store.MaxBackupLimit {
		limit = store.MaxBackupLimit
	}

	backups, err := listSnapshots(ctx, client, folder)
	if err != nil {
		return err
	}
	if len(backups) <= limit {
		return nil
	}

	// backups is newest-first; everything past the limit goes.
	for _, b := range backups[limit:] {
		res, err := client.Do(ctx, http.MethodDelete, folder+"/"+b.Filename, nil, "")
		if err != nil {
			log.Printf("Failed to delete backup %s: %v", b.Filename, err)
			continue
		}
		if !res.OK {
			log.Printf("Failed to delete backup %s: status %d", b.Filename, res.Status)
		}
	}
	return nil
}

// RestoreBackup downloads a snapshot and commits it as the new current
// document through the normal commit path (so the usual auto-sync trigger
// applies, but nothing is pushed beyond that).
func (e *Engine) RestoreBackup(ctx context.Context, filename string, cfg store.WebDavConfig) (*document.Document, error) {
	start := time.Now()
	doc, err := e.restore(ctx, filename, cfg)
	e.logOp(db.OpRestore, start, err, "restored "+filename)
	return doc, err
}

func (e *Engine) restore(ctx context.Context, filename string, cfg store.WebDavConfig) (*document.Document, error) {
	if cfg.URL == "" {
		return nil, ErrNoServer
	}
	if !exactSnapshotNameRe.MatchString(filename) {
		return nil, fmt.Errorf("%w: not a snapshot file: %s", ErrSyncFailed, filename)
	}

	folder, _ := Endpoints(cfg.URL)
	client := NewClient(cfg.User, cfg.Pass)

	res, err := client.Do(ctx, http.MethodGet, folder+"/"+filename, nil, "")
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, statusError(res)
	}

	raw := res.JSON
	if raw == nil {
		raw = []byte(res.Text)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot unreadable: %w", ErrSyncFailed, err)
	}

	committed, err := e.store.Commit(doc, false)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// DeleteBackup removes one snapshot. It has no retention side effects.
func (e *Engine) DeleteBackup(ctx context.Context, filename string, cfg store.WebDavConfig) error {
	if cfg.URL == "" {
		return ErrNoServer
	}
	if !exactSnapshotNameRe.MatchString(filename) {
		return fmt.Errorf("%w: not a snapshot file: %s", ErrSyncFailed, filename)
	}

	folder, _ := Endpoints(cfg.URL)
	client := NewClient(cfg.User, cfg.Pass)

	res, err := client.Do(ctx, http.MethodDelete, folder+"/"+filename, nil, "")
	if err != nil {
		return err
	}
	if !res.OK {
		return statusError(res)
	}
	return nil
}
