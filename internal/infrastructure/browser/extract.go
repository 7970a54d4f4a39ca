package browser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxLinks = 20

// PageContent is the readable part of a page handed to the model.
type PageContent struct {
	Title string
	Text  string
	Links []Link
}

type Link struct {
	Text string
	Href string
}

// Extract pulls the title, readable text and outbound links from html.
// Text is cut to limit bytes when limit is positive.
func Extract(html, baseURL string, limit int) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	doc.Find("script, style, noscript, svg, iframe").Remove()

	out := &PageContent{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	var text strings.Builder
	doc.Find("h1, h2, h3, h4, p, li, pre, code, td").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, pre, td").Length() > 0 {
			return
		}
		t := strings.Join(strings.Fields(s.Text()), " ")
		if t == "" {
			return
		}
		text.WriteString(t)
		text.WriteString("\n")
	})
	out.Text = text.String()
	if limit > 0 && len(out.Text) > limit {
		out.Text = out.Text[:limit] + "\n[Content truncated...]"
	}

	base, _ := url.Parse(baseURL)
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		abs := resolve(base, href)
		if abs == "" || seen[abs] {
			return true
		}
		seen[abs] = true
		out.Links = append(out.Links, Link{
			Text: strings.Join(strings.Fields(s.Text()), " "),
			Href: abs,
		})
		return len(out.Links) < maxLinks
	})
	return out, nil
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
