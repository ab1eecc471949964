package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/stewartcelani/screen2scp/internal/dedup"
	"github.com/stewartcelani/screen2scp/internal/event"
	"github.com/stewartcelani/screen2scp/internal/message"
	"github.com/stewartcelani/screen2scp/internal/pipeline"
)

type daemonInfo struct {
	version string
	source  string
	remote  string
	started time.Time
}

// controller answers control requests from the CLI tools by calling into
// the pipeline.
type controller struct {
	p     *pipeline.Pipeline
	bus   *event.Bus
	dedup *dedup.Store
	info  daemonInfo
}

func (c *controller) Handle(req *message.Message) *message.Message {
	switch req.Type {
	case message.TypeList:
		resp := message.Result()
		for _, r := range c.p.History().Snapshot() {
			resp.Records = append(resp.Records, message.FromRecord(r, req.Thumbnails))
		}
		return resp

	case message.TypeDelete:
		rec, err := c.p.DeleteID(req.ID)
		if err != nil {
			return errorMsg(err)
		}
		resp := message.Result()
		resp.Records = []message.Record{message.FromRecord(rec, false)}
		resp.Deleted = 1
		return resp

	case message.TypeDeleteAll:
		res := c.p.DeleteAll()
		resp := message.Result()
		resp.Deleted, resp.Failed = res.Deleted, res.Failed
		return resp

	case message.TypeCopy:
		return c.copy(req)

	case message.TypeToggle:
		var on bool
		switch req.Target {
		case message.ToggleMonitor:
			on = c.p.ToggleMonitoring()
		case message.ToggleAutoCopy:
			on = c.p.ToggleAutoCopy()
		default:
			return message.Errorf("unknown toggle %q (want %s or %s)", req.Target, message.ToggleMonitor, message.ToggleAutoCopy)
		}
		resp := message.Result()
		resp.Enabled = &on
		return resp

	case message.TypeStatus:
		resp := message.Result()
		resp.Status = c.status()
		return resp

	default:
		return message.Errorf("unsupported request %q", req.Type)
	}
}

func (c *controller) copy(req *message.Message) *message.Message {
	resp := message.Result()
	switch req.Mode {
	case message.CopyPath, "":
		rec, err := c.p.CopyPath(req.ID)
		if err != nil {
			return errorMsg(err)
		}
		resp.Records = []message.Record{message.FromRecord(rec, false)}
		resp.Text = pipeline.QuotePath(rec.RemotePath)

	case message.CopyAll:
		n, err := c.p.CopyAllPaths()
		if err != nil {
			return errorMsg(err)
		}
		resp.Text = pipeline.JoinPaths(c.p.History().Snapshot())
		slog.Debug("copied all paths", "count", n)

	case message.CopyBase64:
		rec, n, err := c.p.CopyBase64(req.ID)
		if err != nil {
			return errorMsg(err)
		}
		resp.Records = []message.Record{message.FromRecord(rec, false)}
		resp.Text = humanChars(n)

	case message.CopyImage:
		rec, err := c.p.CopyImage(req.ID)
		if err != nil {
			return errorMsg(err)
		}
		resp.Records = []message.Record{message.FromRecord(rec, false)}

	default:
		return message.Errorf("unknown copy mode %q", req.Mode)
	}
	return resp
}

func (c *controller) status() *message.Status {
	st := c.p.State()
	out := &message.Status{
		Version:    c.info.version,
		Source:     c.info.source,
		Remote:     c.info.remote,
		Monitoring: st.Monitoring,
		AutoCopy:   st.AutoCopy,
		Stage:      string(st.Stage),
		Uploads:    c.p.History().Len(),
		Logged:     c.dedup.Len(),
		Dropped:    c.bus.Dropped(),
		StartedAt:  c.info.started,
	}
	if st.LastSeen != nil {
		out.LastSeen = st.LastSeen.String()
	}
	return out
}

func errorMsg(err error) *message.Message {
	switch {
	case errors.Is(err, pipeline.ErrNoHistory):
		return message.Errorf("no screenshots uploaded yet")
	case errors.Is(err, pipeline.ErrNoClipboard):
		return message.Errorf("no clipboard available on the daemon host")
	default:
		return message.Errorf("%v", err)
	}
}
