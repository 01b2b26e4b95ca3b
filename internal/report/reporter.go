package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"austage/internal/staging"
)

// Output MIME types accepted by the --output switch.
const (
	OutputText = "text/plain"
	OutputJSON = "application/json"
)

// Reporter turns the engine's event stream into human-readable progress
// lines and a single machine-parseable terminal result.
//
// Progress is "notice" output: it goes to stderr whenever the terminal
// result must own stdout (JSON mode), and to stdout otherwise. The terminal
// ok event is the only event ever rendered as JSON.
type Reporter struct {
	Verbose int
	Output  string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Notify consumes one transfer event. Pass this method to the engine.
func (r *Reporter) Notify(ev staging.Event) {
	if ev.Kind == staging.EventOK {
		r.terminal(ev)
		return
	}
	if ev.Level > r.Verbose {
		return
	}

	prefix, message := r.format(ev)
	if prefix == "" {
		return
	}
	if ev.DryRun {
		prefix = "(dry run) " + prefix
	}
	fmt.Fprintln(r.progressStream(), prefix, message)
}

func (r *Reporter) format(ev staging.Event) (prefix, message string) {
	switch ev.Kind {
	case staging.EventUploaded:
		return ">>>", ev.Name
	case staging.EventDownloaded:
		return "<<<", ev.Name
	case staging.EventExcluded:
		return "---", "excluded " + ev.Name
	case staging.EventRemoved:
		return "rm", ev.Name
	case staging.EventChdir:
		if ev.Pair == nil {
			return "", ""
		}
		dir := ev.Pair.Remote
		if !strings.Contains(dir, "/") {
			dir = "./" + dir
		}
		return "...", "cd " + dir
	default:
		return "", ""
	}
}

// progressStream returns where notice output belongs for the configured
// output type.
func (r *Reporter) progressStream() io.Writer {
	if r.Output == OutputJSON {
		return r.Stderr
	}
	return r.Stdout
}

// terminal renders the final ok event: a bare JSON object in JSON mode, a
// tab-separated block otherwise.
func (r *Reporter) terminal(ev staging.Event) {
	if ev.Summary == nil {
		return
	}
	if r.Output == OutputJSON {
		enc := json.NewEncoder(r.Stdout)
		if err := enc.Encode(ev.Summary); err != nil {
			fmt.Fprintln(r.Stderr, "encoding result:", err)
		}
		return
	}

	fmt.Fprintf(r.Stdout, "ok\tstaged to %s (%s)\n", ev.Summary.StagedTo, ev.Summary.Protocol)
	fmt.Fprintf(r.Stdout, "uploaded\t%d file(s), %d byte(s)\n", ev.Summary.FilesUploaded, ev.Summary.BytesUploaded)
	if ev.Summary.BackupPath != "" {
		fmt.Fprintf(r.Stdout, "backup\t%s (%d file(s))\n", ev.Summary.BackupPath, ev.Summary.FilesDownloaded)
	}
	for _, key := range sortedKeys(ev.Summary.Package) {
		fmt.Fprintf(r.Stdout, "%s\t%v\n", key, ev.Summary.Package[key])
	}
	// The next pipeline stage greps for this line.
	data, err := json.Marshal(ev.Summary)
	if err != nil {
		fmt.Fprintln(r.Stderr, "encoding result:", err)
		return
	}
	fmt.Fprintf(r.Stdout, "JSON PACKET:\t%s\n", data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
