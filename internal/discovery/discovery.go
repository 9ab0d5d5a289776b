// Package discovery inspects the remote mirror's HTML directory
// listings to report which daily dump files actually exist, so a caller
// can sanity-check a date range before committing to a long fetch.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/chairdump/chairdump/internal/catalog"
)

var dumpNameRe = regexp.MustCompile(`blockchair_bitcoin_([a-z]+)_(\d{4}-\d{2}-\d{2})\.tsv\.gz$`)

// Availability summarises what the mirror publishes for one table.
type Availability struct {
	Table    string
	Count    int
	Earliest time.Time
	Latest   time.Time
}

// ListDates fetches the directory index for one table and returns the
// published days, sorted ascending.
func ListDates(ctx context.Context, client *http.Client, baseURL, table string, logger *slog.Logger) ([]time.Time, error) {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	indexURL := baseURL + table + "/"
	l := logger.With(slog.String("index_url", indexURL))
	l.Debug("fetching table index")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", indexURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", indexURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status %q fetching index %s", resp.Status, indexURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", indexURL, err)
	}

	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse index html %s: %w", indexURL, err)
	}

	var dates []time.Time
	for _, link := range parseLinks(root, ".tsv.gz") {
		m := dumpNameRe.FindStringSubmatch(link)
		if m == nil || m[1] != table {
			continue
		}
		d, err := catalog.ParseDate(m[2])
		if err != nil {
			l.Warn("unparseable date in listing", "link", link)
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	l.Debug("index parsed", slog.Int("files", len(dates)))
	return dates, nil
}

// Check summarises availability for one table.
func Check(ctx context.Context, client *http.Client, baseURL, table string, logger *slog.Logger) (Availability, error) {
	dates, err := ListDates(ctx, client, baseURL, table, logger)
	if err != nil {
		return Availability{}, err
	}
	av := Availability{Table: table, Count: len(dates)}
	if len(dates) > 0 {
		av.Earliest = dates[0]
		av.Latest = dates[len(dates)-1]
	}
	return av, nil
}

// parseLinks finds hrefs ending with suffix in an HTML node tree, via a
// depth-first search for <a> tags.
func parseLinks(n *html.Node, suffix string) []string {
	var out []string
	var walk func(*html.Node)

	walk = func(nd *html.Node) {
		if nd.Type == html.ElementNode && nd.Data == "a" {
			for _, a := range nd.Attr {
				if a.Key == "href" {
					if strings.HasSuffix(strings.ToLower(a.Val), strings.ToLower(suffix)) && a.Val != "/" {
						out = append(out, a.Val)
					}
					break
				}
			}
		}
		for c := nd.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return out
}
