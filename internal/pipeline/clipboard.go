package pipeline

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/stewartcelani/screen2scp/internal/fingerprint"
	"github.com/stewartcelani/screen2scp/internal/history"
	"github.com/stewartcelani/screen2scp/internal/imaging"
)

// QuotePath wraps p in double quotes if it contains a space.
func QuotePath(p string) string {
	if strings.Contains(p, " ") {
		return `"` + p + `"`
	}
	return p
}

// JoinPaths joins the quoted remote paths of recs with single spaces.
func JoinPaths(recs []*history.Record) string {
	parts := make([]string, len(recs))
	for i, r := range recs {
		parts[i] = QuotePath(r.RemotePath)
	}
	return strings.Join(parts, " ")
}

// CopyPath puts the remote path of the record selected by id on the
// clipboard.
func (p *Pipeline) CopyPath(id string) (*history.Record, error) {
	if p.clipboard == nil {
		return nil, ErrNoClipboard
	}
	rec, err := p.Resolve(id)
	if err != nil {
		return nil, err
	}
	if err := p.clipboard.SetText(QuotePath(rec.RemotePath)); err != nil {
		return nil, fmt.Errorf("set clipboard: %w", err)
	}
	return rec, nil
}

// CopyAllPaths puts every remote path, newest first, on the clipboard and
// returns how many were copied.
func (p *Pipeline) CopyAllPaths() (int, error) {
	if p.clipboard == nil {
		return 0, ErrNoClipboard
	}
	recs := p.history.Snapshot()
	if len(recs) == 0 {
		return 0, ErrNoHistory
	}
	if err := p.clipboard.SetText(JoinPaths(recs)); err != nil {
		return 0, fmt.Errorf("set clipboard: %w", err)
	}
	p.notify("Paths Copied", fmt.Sprintf("%d screenshot %s copied to clipboard", len(recs), plural(len(recs), "path")))
	return len(recs), nil
}

// CopyBase64 downloads the record's file and puts its base64 encoding on the
// clipboard. It returns the encoded length.
func (p *Pipeline) CopyBase64(id string) (*history.Record, int, error) {
	if p.clipboard == nil {
		return nil, 0, ErrNoClipboard
	}
	rec, err := p.Resolve(id)
	if err != nil {
		return nil, 0, err
	}
	data, err := p.writer.Download(rec.RemotePath)
	if err != nil {
		return nil, 0, err
	}
	enc := base64.StdEncoding.EncodeToString(data)
	if err := p.clipboard.SetText(enc); err != nil {
		return nil, 0, fmt.Errorf("set clipboard: %w", err)
	}
	return rec, len(enc), nil
}

// CopyImage downloads the record's file and puts the decoded image on the
// clipboard as PNG.
func (p *Pipeline) CopyImage(id string) (*history.Record, error) {
	if p.clipboard == nil {
		return nil, ErrNoClipboard
	}
	rec, err := p.Resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := p.writer.Download(rec.RemotePath)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	pngData, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	// The image is about to become the clipboard candidate; mark it seen so
	// the next cycle does not upload it a second time.
	if fp, err := fingerprint.Of(img); err == nil {
		p.markSeen(fp)
	}
	if err := p.clipboard.SetImage(pngData); err != nil {
		return nil, fmt.Errorf("set clipboard: %w", err)
	}
	return rec, nil
}
