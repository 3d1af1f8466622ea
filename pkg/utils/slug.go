package utils

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}
	return slug.Make(text)
}

// SeriesSlug builds the series stats document id: slug(name)-id
func SeriesSlug(seriesName, seriesID string) string {
	name := NormalizeSlug(seriesName)
	if name == "" {
		name = "series"
	}
	id := NormalizeSlug(seriesID)
	if id == "" {
		return name
	}
	return name + "-" + id
}

// StatSlug converts a Cricbuzz statsType ("mostRuns") to a key ("most-runs")
func StatSlug(statsType string) string {
	if statsType == "" {
		return "stat"
	}

	var b strings.Builder
	for i, r := range statsType {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte(' ')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return NormalizeSlug(b.String())
}

// SeriesNameFromTitle strips the " Stats" suffix Cricbuzz puts on series stat page titles
func SeriesNameFromTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, suffix := range []string{" Stats", " Statistics", " stats"} {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}
