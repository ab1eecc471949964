package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/stewartcelani/screen2scp/internal/event"
	"github.com/stewartcelani/screen2scp/internal/history"
)

// BulkResult counts the outcome of DeleteAll.
type BulkResult struct {
	Deleted int
	Failed  int
}

// minPrefix is the shortest ID prefix Resolve accepts.
const minPrefix = 4

// Resolve returns the record for id. An empty id or "last" selects the
// newest upload; otherwise id is a full record ID or a unique prefix of one.
func (p *Pipeline) Resolve(id string) (*history.Record, error) {
	if id == "" || id == "last" {
		r, ok := p.history.Latest()
		if !ok {
			return nil, ErrNoHistory
		}
		return r, nil
	}
	if r, ok := p.history.Get(id); ok {
		return r, nil
	}
	if len(id) < minPrefix {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var match *history.Record
	for _, r := range p.history.Snapshot() {
		if !strings.HasPrefix(r.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
		}
		match = r
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Delete removes rec from the remote store, then from history and the dedup
// log so an identical screenshot can be uploaded again. If the remote delete
// fails nothing local changes and the error wraps remote.ErrDeleteFailed.
func (p *Pipeline) Delete(rec *history.Record) error {
	if err := p.delete(rec); err != nil {
		return err
	}
	p.notify("Screenshot Deleted", rec.Filename)
	return nil
}

// DeleteID resolves id (see Resolve) and deletes the record.
func (p *Pipeline) DeleteID(id string) (*history.Record, error) {
	rec, err := p.Resolve(id)
	if err != nil {
		return nil, err
	}
	return rec, p.Delete(rec)
}

// DeleteAll deletes every record independently. Records whose remote delete
// fails stay in history.
func (p *Pipeline) DeleteAll() BulkResult {
	var res BulkResult
	for _, rec := range p.history.Snapshot() {
		if err := p.delete(rec); err != nil {
			res.Failed++
			continue
		}
		res.Deleted++
	}

	slog.Info("bulk delete finished", "deleted", res.Deleted, "failed", res.Failed)
	if res.Failed == 0 && res.Deleted > 0 {
		p.notify("All Screenshots Deleted", fmt.Sprintf("%d %s removed", res.Deleted, plural(res.Deleted, "screenshot")))
	} else if res.Failed > 0 {
		p.notify("Delete Incomplete", fmt.Sprintf("Deleted %d, failed %d", res.Deleted, res.Failed))
	}
	return res
}

func (p *Pipeline) delete(rec *history.Record) error {
	if err := p.writer.Delete(rec.RemotePath); err != nil {
		slog.Warn("remote delete failed", "path", rec.RemotePath, "err", err)
		p.events.Publish(event.Failed("Could not delete "+rec.Filename, err))
		return err
	}

	p.history.Remove(rec.ID)
	if err := p.dedup.Remove(rec.Fingerprint); err != nil {
		slog.Warn("fingerprint log not rewritten", "fingerprint", rec.Fingerprint, "err", err)
		p.events.Publish(event.Failed("Fingerprint log not saved", err))
	}
	p.events.Publish(event.Deleted(rec))
	slog.Info("screenshot deleted", "file", rec.Filename, "path", rec.RemotePath)
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
