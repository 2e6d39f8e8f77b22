package offerings

import (
	"context"
	"strings"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
	"github.com/awesometech/webinar-backoffice/pkg/logger"
)

// Matcher resolves a form or offer title to a configured offering. Titles are
// matched against the offering name and every alias: an exact pass first, then
// a bidirectional substring pass. Candidates are scanned in repository order
// and the first hit wins.
type Matcher struct {
	logg *logger.Logger
}

func NewMatcher(logg *logger.Logger) *Matcher {
	return &Matcher{logg: logg}
}

// MatchWebinar returns the first webinar whose name or alias matches title.
func (m *Matcher) MatchWebinar(ctx context.Context, title string, webinars []models.Webinar) *models.Webinar {
	names := make([][]string, len(webinars))
	labels := make([]string, len(webinars))
	for i, w := range webinars {
		names[i] = webinarNames(w)
		labels[i] = w.Name
	}
	idx := m.match(ctx, title, names, labels)
	if idx < 0 {
		return nil
	}
	return &webinars[idx]
}

// MatchBundle returns the first bundle whose name or alias matches title.
func (m *Matcher) MatchBundle(ctx context.Context, title string, bundles []models.Bundle) *models.Bundle {
	names := make([][]string, len(bundles))
	labels := make([]string, len(bundles))
	for i, b := range bundles {
		names[i] = bundleNames(b)
		labels[i] = b.Name
	}
	idx := m.match(ctx, title, names, labels)
	if idx < 0 {
		return nil
	}
	return &bundles[idx]
}

func (m *Matcher) match(ctx context.Context, title string, names [][]string, labels []string) int {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" {
		return -1
	}

	exact := matchPass(lowered, names, func(name string) bool {
		return name == lowered
	})
	if len(exact) > 0 {
		m.warnAmbiguous(ctx, title, exact, labels)
		return exact[0]
	}

	partial := matchPass(lowered, names, func(name string) bool {
		return strings.Contains(lowered, name) || strings.Contains(name, lowered)
	})
	if len(partial) > 0 {
		m.warnAmbiguous(ctx, title, partial, labels)
		return partial[0]
	}

	return -1
}

func matchPass(lowered string, names [][]string, fn func(string) bool) []int {
	var hits []int
	for i, candidateNames := range names {
		for _, name := range candidateNames {
			if fn(strings.ToLower(name)) {
				hits = append(hits, i)
				break
			}
		}
	}
	return hits
}

func (m *Matcher) warnAmbiguous(ctx context.Context, title string, hits []int, labels []string) {
	if len(hits) < 2 || m.logg == nil {
		return
	}
	matched := make([]string, 0, len(hits))
	for _, idx := range hits {
		matched = append(matched, labels[idx])
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"title":      title,
		"candidates": matched,
	})
	m.logg.Warn(ctx, "offering title matched multiple candidates, using first")
}

func webinarNames(w models.Webinar) []string {
	names := make([]string, 0, len(w.Aliases)+1)
	names = append(names, w.Name)
	for _, alias := range w.Aliases {
		if trimmed := strings.TrimSpace(alias); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func bundleNames(b models.Bundle) []string {
	names := make([]string, 0, len(b.Aliases)+1)
	names = append(names, b.Name)
	for _, alias := range b.Aliases {
		if trimmed := strings.TrimSpace(alias); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
