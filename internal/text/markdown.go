package text

import (
	"regexp"
	"strings"
)

var (
	editLinkRe   = regexp.MustCompile(`(?mi)^\[edit[^\]]*\]\([^\)]+\)\s*$`)
	tocRe        = regexp.MustCompile(`(?mi)^#{1,3}\s+(?:table of )?contents?\s*\n(?:\s*[-*]\s*\[.*?\]\(#.*?\)\s*\n)*`)
	skipLinkRe   = regexp.MustCompile(`(?mi)^\[skip to [^\]]*\]\([^\)]*\)\s*$`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// CleanMarkdownNoise strips page chrome left over after HTML conversion:
// "edit this page" links, skip links and generated tables of contents.
func CleanMarkdownNoise(md string) string {
	md = editLinkRe.ReplaceAllString(md, "")
	md = skipLinkRe.ReplaceAllString(md, "")
	md = tocRe.ReplaceAllString(md, "")
	md = blankLinesRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}
