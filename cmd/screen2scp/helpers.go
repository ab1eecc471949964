package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/stewartcelani/screen2scp/internal/ipc"
	"github.com/stewartcelani/screen2scp/internal/message"
)

// call sends req to the running daemon.
func call(ctx context.Context, req *message.Message) (*message.Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, ipc.CallTimeout)
	defer cancel()
	return ipc.Call(ctx, req)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(w io.Writer, recs []message.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No screenshots uploaded.")
		return
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tFILE\tSIZE\tCAPTURED\tREMOTE PATH\n")
	_, _ = fmt.Fprintf(tw, "--\t----\t----\t--------\t-----------\n")
	for _, r := range recs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.Filename, humanize.Bytes(uint64(r.ByteSize)),
			humanize.Time(r.CaptureTime), r.RemotePath,
		)
	}
	_ = tw.Flush()
}

// shortID trims a UUID to its first group for display. The daemon accepts
// any unique prefix back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func humanChars(n int) string {
	return humanize.Comma(int64(n)) + " characters"
}
