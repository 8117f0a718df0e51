package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/valpere/pantolingo/internal/deferred"
	"github.com/valpere/pantolingo/internal/pattern"
	"github.com/valpere/pantolingo/internal/segment"
)

// collectLinkPaths returns the distinct normalised original paths of
// every same-origin <a href> in doc, the candidate set for forward
// pathname translation (§4.11 step 3).
func collectLinkPaths(doc *goquery.Document, originHostname string) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		path, ok := samOriginPath(href, originHostname)
		if !ok || path == "" || path == "/" {
			return
		}
		norm := pattern.Apply(path).Normalised
		if seen[norm] {
			return
		}
		seen[norm] = true
		out = append(out, norm)
	})
	return out
}

// rewriteLinks rewrites every same-origin <a href> in doc whose
// normalised path has a known translation in pathCache (normalised
// original → normalised translated). Links with no entry are left as the
// original path, to be resolved on a future request (§4.11 step 5).
func rewriteLinks(doc *goquery.Document, originHostname string, pathCache map[string]string) {
	if len(pathCache) == 0 {
		return
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		path, rest, ok := splitHrefPathAndRest(href, originHostname)
		if !ok || path == "" || path == "/" {
			return
		}
		norm := pattern.Apply(path)
		translatedNorm, found := pathCache[norm.Normalised]
		if !found {
			return
		}
		translatedPath := pattern.Restore(translatedNorm, norm.Replacements, norm.IsUpperCase)
		a.SetAttr("href", translatedPath+rest)
	})
}

// samOriginPath is the ok-only counterpart of splitHrefPathAndRest.
func samOriginPath(href, originHostname string) (string, bool) {
	path, _, ok := splitHrefPathAndRest(href, originHostname)
	return path, ok
}

// splitHrefPathAndRest decides whether href refers to the same origin
// (a bare path, or an absolute URL whose host matches originHostname),
// and if so splits it into the path and the trailing query/fragment.
// Absolute URLs to a different host, and non-HTTP schemes, are left
// alone (ok == false).
func splitHrefPathAndRest(href, originHostname string) (path, rest string, ok bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", "", false
	}
	if strings.Contains(href, "://") {
		schemeSep := strings.Index(href, "://")
		after := href[schemeSep+3:]
		hostEnd := strings.IndexAny(after, "/?#")
		host := after
		tail := ""
		if hostEnd >= 0 {
			host = after[:hostEnd]
			tail = after[hostEnd:]
		}
		if !strings.EqualFold(host, originHostname) {
			return "", "", false
		}
		href = tail
		if href == "" {
			href = "/"
		}
	}
	if !strings.HasPrefix(href, "/") {
		return "", "", false
	}
	cut := strings.IndexAny(href, "?#")
	if cut < 0 {
		return href, "", true
	}
	return href[:cut], href[cut:], true
}

// addLanguageMetadata sets <html lang> to targetLang (§4.11 step 6).
func addLanguageMetadata(doc *goquery.Document, targetLang string) {
	doc.Find("html").First().SetAttr("lang", targetLang)
}

// injectDeferredAssets appends the deferred-mode client script and the
// pending-segment payload to the end of <body> (§4.10, §6).
func injectDeferredAssets(doc *goquery.Document, pending []segment.PendingSegment) {
	if len(pending) == 0 {
		return
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return
	}

	items := make([]deferred.PollItem, len(pending))
	for i, p := range pending {
		items[i] = deferred.PollItem{Hash: p.Hash, Kind: string(p.Kind), Content: p.RawContent, Attr: p.AttrName}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return
	}

	bodyNode := body.Get(0)
	dataScript := &html.Node{
		Type: html.ElementNode,
		Data: "script",
	}
	dataScript.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: "window.__PANTOLINGO_DEFERRED__ = " + string(payload) + ";",
	})
	bodyNode.AppendChild(dataScript)

	clientScript := &html.Node{
		Type: html.ElementNode,
		Data: "script",
		Attr: []html.Attribute{
			{Key: "src", Val: "/__pantolingo/deferred.js"},
			{Key: "defer"},
		},
	}
	bodyNode.AppendChild(clientScript)
}
