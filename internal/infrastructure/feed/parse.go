package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// entry is a feed item in a format-neutral shape.
type entry struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time
}

type rssDoc struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			GUID        string `xml:"guid"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
			Date        string `xml:"http://purl.org/dc/elements/1.1/ date"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDoc struct {
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		ID        string `xml:"id"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseFeed decodes RSS 2.0 or Atom into entries.
func parseFeed(r io.Reader) ([]entry, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	root, err := rootElement(raw)
	if err != nil {
		return nil, err
	}

	switch root {
	case "rss":
		var doc rssDoc
		if err := decode(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode rss: %w", err)
		}
		out := make([]entry, 0, len(doc.Channel.Items))
		for _, item := range doc.Channel.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" && strings.HasPrefix(item.GUID, "http") {
				link = strings.TrimSpace(item.GUID)
			}
			date := item.PubDate
			if date == "" {
				date = item.Date
			}
			out = append(out, entry{
				Title:       cleanText(item.Title),
				Link:        link,
				Summary:     cleanText(item.Description),
				PublishedAt: parseDate(date),
			})
		}
		return out, nil

	case "feed":
		var doc atomDoc
		if err := decode(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode atom: %w", err)
		}
		out := make([]entry, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			link := ""
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			summary := e.Summary
			if summary == "" {
				summary = e.Content
			}
			date := e.Published
			if date == "" {
				date = e.Updated
			}
			out = append(out, entry{
				Title:       cleanText(e.Title),
				Link:        strings.TrimSpace(link),
				Summary:     cleanText(summary),
				PublishedAt: parseDate(date),
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported feed root <%s>", root)
	}
}

func decode(raw []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

func rootElement(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("find feed root: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// cleanText strips markup that feeds embed in titles and descriptions.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
