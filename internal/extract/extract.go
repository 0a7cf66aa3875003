// Package extract derives a ProblemContext from a problem page's rendered
// HTML. Each recognized site has its own selector set; unrecognized pages
// fall back to generic heuristics with a lower confidence ceiling.
package extract

import (
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/tabcoach/tabcoach/pkg/types"
)

// descriptionLimit bounds how much description text is kept.
const descriptionLimit = 8000

var converter = newConverter()

func newConverter() *md.Converter {
	c := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
	})
	c.Remove("script", "style", "meta", "link", "svg")
	return c
}

// DetectSite classifies a URL against the known problem-hosting sites.
func DetectSite(url string) types.Site {
	switch {
	case strings.Contains(url, "leetcode.com"):
		return types.SiteLeetCode
	case strings.Contains(url, "hackerrank.com"):
		return types.SiteHackerRank
	case strings.Contains(url, "codeforces.com"):
		return types.SiteCodeforces
	default:
		return types.SiteGeneric
	}
}

// Extract derives the problem context from a page. Confidence is always
// recomputed from the extracted fields, never carried over.
func Extract(url string, doc *goquery.Document) *types.ProblemContext {
	site := DetectSite(url)

	pctx := &types.ProblemContext{
		Site:        site,
		URL:         url,
		ExtractedAt: time.Now().UnixMilli(),
	}

	switch site {
	case types.SiteLeetCode:
		extractLeetCode(doc, pctx)
	case types.SiteHackerRank:
		extractHackerRank(doc, pctx)
	case types.SiteCodeforces:
		extractCodeforces(doc, pctx)
	default:
		extractGeneric(doc, pctx)
	}

	if len(pctx.Description) > descriptionLimit {
		pctx.Description = pctx.Description[:descriptionLimit]
	}

	pctx.Confidence = ComputeConfidence(pctx)
	return pctx
}

func extractLeetCode(doc *goquery.Document, pctx *types.ProblemContext) {
	pctx.Title = text(doc, `[data-cy="question-title"]`, ".text-title-large")
	pctx.Description = markdown(doc, `[data-track-load="description_content"]`, ".elfjS")

	// LeetCode folds constraints and examples into the description body.
	doc.Find(`[data-track-load="description_content"] pre`).Each(func(_ int, sel *goquery.Selection) {
		block := strings.TrimSpace(sel.Text())
		if block == "" {
			return
		}
		if pctx.Examples != "" {
			pctx.Examples += "\n\n"
		}
		pctx.Examples += block
	})
	pctx.Constraints = sectionAfterHeading(doc, "Constraints")
}

func extractHackerRank(doc *goquery.Document, pctx *types.ProblemContext) {
	pctx.Title = text(doc, ".challenge-page-label-wrapper h1", ".ui-icon-label.page-label", "h1.page-label")
	pctx.Description = markdown(doc, ".challenge-body-html .challenge_problem_statement", ".challenge-body-html")
	pctx.Constraints = markdown(doc, ".challenge_constraints")
	pctx.Examples = strings.TrimSpace(
		markdown(doc, ".challenge_sample_input") + "\n\n" + markdown(doc, ".challenge_sample_output"))
}

func extractCodeforces(doc *goquery.Document, pctx *types.ProblemContext) {
	pctx.Title = text(doc, ".problem-statement .title")
	// The first child div of the statement holds the narrative; the rest are
	// labeled sections.
	pctx.Description = markdown(doc, ".problem-statement > div:not([class])")
	if pctx.Description == "" {
		pctx.Description = markdown(doc, ".problem-statement")
	}
	pctx.Constraints = strings.TrimSpace(
		text(doc, ".problem-statement .time-limit") + "\n" + text(doc, ".problem-statement .memory-limit"))
	pctx.Examples = markdown(doc, ".problem-statement .sample-tests")
}

func extractGeneric(doc *goquery.Document, pctx *types.ProblemContext) {
	pctx.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	if pctx.Title == "" {
		pctx.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	// Longest <article>/<main>/body section wins as the description.
	for _, selector := range []string{"article", "main", "body"} {
		if body := markdown(doc, selector); len(body) > len(pctx.Description) {
			pctx.Description = body
		}
	}
}

// ComputeConfidence weighs the non-empty fields. Monotonically derived from
// content; downstream code must never hand-set it.
func ComputeConfidence(pctx *types.ProblemContext) float64 {
	score := 0.0
	if strings.TrimSpace(pctx.Title) != "" {
		score += 0.3
	}
	if strings.TrimSpace(pctx.Description) != "" {
		score += 0.4
	}
	if strings.TrimSpace(pctx.Constraints) != "" {
		score += 0.15
	}
	if strings.TrimSpace(pctx.Examples) != "" {
		score += 0.15
	}
	if pctx.Site == types.SiteGeneric {
		// Generic extraction is guesswork; cap what it can claim.
		score *= 0.6
	}
	return score
}

// text returns the first selector's trimmed text.
func text(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if t := strings.TrimSpace(doc.Find(s).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// markdown converts the first matching element's HTML to markdown.
func markdown(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		sel := doc.Find(s).First()
		if sel.Length() == 0 {
			continue
		}
		html, err := goquery.OuterHtml(sel)
		if err != nil {
			continue
		}
		out, err := converter.ConvertString(html)
		if err != nil {
			continue
		}
		if out = strings.TrimSpace(out); out != "" {
			return out
		}
	}
	return ""
}

// sectionAfterHeading collects the text block following a heading whose text
// contains the given word.
func sectionAfterHeading(doc *goquery.Document, word string) string {
	var out string
	doc.Find("strong, b, h2, h3, h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(sel.Text(), word) {
			return true
		}
		out = strings.TrimSpace(sel.Parent().NextFiltered("ul, p, pre").Text())
		return false
	})
	return out
}
