package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/opds-community/libopds2-go/opds1"
)

const (
	linkTypeAtom = "application/atom+xml"
	linkRelNext  = "next"

	maxFeedBytes = 16 << 20
)

// Entry is a single acquisition feed entry reduced to what a book needs
type Entry struct {
	Id         string
	Title      string
	AuthorName string
	// Year is 0 when the entry has no usable issued date
	Year int
}

type Stats struct {
	Pages          int
	AuthorsCreated int
	BooksCreated   int
	Skipped        int
}

func (s *Stats) add(o Stats) {
	s.AuthorsCreated += o.AuthorsCreated
	s.BooksCreated += o.BooksCreated
	s.Skipped += o.Skipped
}

// Importer walks an OPDS 1 acquisition feed page by page and hands entries
// to its Consumer
type Importer struct {
	Client   *http.Client
	Logger   *slog.Logger
	Consumer Consumer
}

// Import follows rel="next" links from feed until a page has none or a page
// repeats. Entries with an id already seen in this run are skipped.
func (im *Importer) Import(ctx context.Context, feed *url.URL) (Stats, error) {
	var stats Stats

	seenPages := make(map[string]struct{})
	seenEntries := make(map[string]struct{})

	for page := feed; page != nil; {
		if _, ok := seenPages[page.String()]; ok {
			im.Logger.Warn("Feed pages form a loop, stopping at " + page.String())
			break
		}
		seenPages[page.String()] = struct{}{}

		f, err := im.fetch(ctx, page)
		if err != nil {
			return stats, err
		}
		stats.Pages++

		l := im.Logger.With(slog.String("feed", page.String()))

		var entries []*Entry
		for _, entry := range f.Entries {
			e := parseEntry(&entry, l)

			if e.Id != "" {
				if _, ok := seenEntries[e.Id]; ok {
					l.Warn("Found duplicate of entry " + e.Id)
					stats.Skipped++
					continue
				}
				seenEntries[e.Id] = struct{}{}
			}

			entries = append(entries, e)
		}

		if len(entries) == 0 {
			l.Warn("No entries parsed from feed")
		} else {
			s, err := im.Consumer.ConsumeEntries(ctx, entries)
			stats.add(s)
			if err != nil {
				return stats, fmt.Errorf("consuming entries of %s: %w", page, err)
			}
		}

		next := chooseLink(f.Links, func(link *opds1.Link) string {
			if link.Rel != linkRelNext {
				return "unknown rel " + link.Rel
			}

			if link.TypeLink != "" && !strings.HasPrefix(link.TypeLink, linkTypeAtom) {
				return "unknown type: " + link.TypeLink
			}

			return ""
		}, l)

		if next == nil {
			break
		}

		nextUrl, err := url.Parse(next.Href)
		if err != nil {
			l.Error("Failed to parse next page link " + next.Href + ": " + err.Error())
			break
		}

		l.Debug("Found link to the next page")
		page = page.ResolveReference(nextUrl)
	}

	return stats, nil
}

func (im *Importer) fetch(ctx context.Context, feed *url.URL) (*opds1.Feed, error) {
	im.Logger.Debug("Begin processing feed " + feed.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	res, err := im.Client.Do(req)
	if err != nil {
		im.Logger.Error("Failed to fetch feed " + feed.String() + ": " + err.Error())
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		bs, err = io.ReadAll(io.LimitReader(res.Body, maxFeedBytes))
	}()

	if err != nil {
		im.Logger.Error("Failed to read body of feed " + feed.String() + ": " + err.Error())
		return nil, fmt.Errorf("fetching feed (reading response): %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching feed %s: unexpected status %s", feed, res.Status)
	}

	l := im.Logger.With(slog.String("feed", feed.String()))

	var f opds1.Feed
	err = xml.Unmarshal(removeDisallowedCodepoints(bs, l), &f)
	if err != nil {
		im.Logger.Error("Failed to unmarshal feed " + feed.String() + ": " + err.Error())
		return nil, fmt.Errorf("unmarshalling feed: %w", err)
	}

	return &f, nil
}

func parseEntry(entry *opds1.Entry, l *slog.Logger) *Entry {
	e := &Entry{
		Id:    strings.TrimSpace(entry.ID),
		Title: strings.TrimSpace(entry.Title),
	}

	for _, a := range entry.Author {
		if name := strings.TrimSpace(a.Name); name != "" {
			e.AuthorName = name
			break
		}
	}

	if issued := strings.TrimSpace(entry.Issued); issued != "" {
		// issued is either a bare year or a date starting with one
		y, err := strconv.Atoi(strings.SplitN(issued, "-", 2)[0])
		if err == nil {
			e.Year = y
		} else {
			l.Warn("Failed to parse entry " + e.Id + " year: " + err.Error())
		}
	}

	return e
}

func chooseLink(links []opds1.Link, matcher func(link *opds1.Link) string, l *slog.Logger) *opds1.Link {
	var ret *opds1.Link

	for _, link := range links {
		link.Rel = strings.TrimSpace(link.Rel)
		link.TypeLink = strings.TrimSpace(link.TypeLink)

		if mismatch := matcher(&link); mismatch != "" {
			l.Debug("Skip non-matching link: " + mismatch)
			continue
		}

		if ret != nil {
			l.Warn("Skip duplicate matching link: " + link.Href)
			continue
		}

		ret = &link
	}

	return ret
}

// Inspect each rune for being a disallowed character.
// Some catalogs include control characters XML does not allow.
func removeDisallowedCodepoints(bs []byte, l *slog.Logger) []byte {
	ret := bs[:0]
	buf := bs

	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size == 1 {
			l.Warn("Going to fail XML parsing because the bytes do not represent valid UTF8")
			return bs
		}

		if isInCharacterRange(r) {
			ret = append(ret, buf[:size]...)
		} else {
			l.Warn("Removed invalid rune from XML")
		}

		buf = buf[size:]
	}

	return ret
}

// Decide whether the given rune is in the XML Character Range, per
// the Char production of https://www.xml.com/axml/testaxml.htm,
// Section 2.2 Characters.
//
// Taken from encoding/xml
func isInCharacterRange(r rune) (inrange bool) {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
