package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Provenance links a dataset back to the remote resource it came from.
// Every build records a fresh retrieval time, even for a URL fetched before,
// because upstream files get replaced.
type Provenance struct {
	DataURL   string
	Retrieved time.Time
	Tool      string
	Version   string
}

// Timestamp formats the retrieval time as RFC 3339 UTC at second precision.
func (p Provenance) Timestamp() string {
	return p.Retrieved.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// CreationEntry is the history line recorded for a build.
func (p Provenance) CreationEntry() string {
	return fmt.Sprintf("%s - data set creation by %s, version %s", p.Timestamp(), p.Tool, p.Version)
}

// Stamp writes data_url, data_url_datetime and history into attrs. An
// existing history is kept and the creation entry is appended after it.
func (p Provenance) Stamp(attrs map[string]string) {
	attrs[AttrDataURL] = p.DataURL
	attrs[AttrDataURLDatetime] = p.Timestamp()
	attrs[AttrHistory] = appendHistory(attrs[AttrHistory], p.CreationEntry())
}

// HistoryEntries splits a dataset's history log into lines, oldest first.
func HistoryEntries(d *Dataset) []string {
	h := strings.TrimSpace(d.attrs[AttrHistory])
	if h == "" {
		return nil
	}
	return strings.Split(h, "\n")
}

func appendHistory(history, entry string) string {
	history = strings.TrimSpace(history)
	if history == "" {
		return entry
	}
	return history + "\n" + entry
}
