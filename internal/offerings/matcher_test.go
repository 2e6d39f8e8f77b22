package offerings

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/awesometech/webinar-backoffice/pkg/db/models"
)

func TestMatchWebinarExactBeatsPartial(t *testing.T) {
	m := NewMatcher(nil)
	webinars := []models.Webinar{
		{Name: "Getting Started with WordPress Masterclass"},
		{Name: "Getting Started with WordPress"},
	}

	got := m.MatchWebinar(context.Background(), "getting started with wordpress", webinars)
	require.NotNil(t, got)
	require.Equal(t, "Getting Started with WordPress", got.Name)
}

func TestMatchWebinarViaAlias(t *testing.T) {
	m := NewMatcher(nil)
	webinars := []models.Webinar{
		{Name: "Advanced SQL", Aliases: pq.StringArray{"SQL Deep Dive", "Databases II"}},
	}

	got := m.MatchWebinar(context.Background(), "SQL Deep Dive", webinars)
	require.NotNil(t, got)
	require.Equal(t, "Advanced SQL", got.Name)
}

func TestMatchWebinarBidirectionalSubstring(t *testing.T) {
	m := NewMatcher(nil)
	webinars := []models.Webinar{
		{Name: "Intro to Python"},
	}

	got := m.MatchWebinar(context.Background(), "Register: Intro to Python (June cohort)", webinars)
	require.NotNil(t, got)

	got = m.MatchWebinar(context.Background(), "Python", webinars)
	require.NotNil(t, got)
}

func TestMatchWebinarFirstWinsOnAmbiguity(t *testing.T) {
	m := NewMatcher(nil)
	webinars := []models.Webinar{
		{Name: "WordPress Basics"},
		{Name: "WordPress Basics Live"},
	}

	got := m.MatchWebinar(context.Background(), "WordPress Basics Live Stream", webinars)
	require.NotNil(t, got)
	require.Equal(t, "WordPress Basics", got.Name)
}

func TestMatchWebinarNoMatch(t *testing.T) {
	m := NewMatcher(nil)
	webinars := []models.Webinar{
		{Name: "Getting Started with WordPress"},
	}

	require.Nil(t, m.MatchWebinar(context.Background(), "Kubernetes for Beginners", webinars))
	require.Nil(t, m.MatchWebinar(context.Background(), "", webinars))
}

func TestMatchBundle(t *testing.T) {
	m := NewMatcher(nil)
	bundles := []models.Bundle{
		{Name: "Web Development Bundle", Aliases: pq.StringArray{"WebDev Pack"}},
	}

	got := m.MatchBundle(context.Background(), "webdev pack", bundles)
	require.NotNil(t, got)
	require.Equal(t, "Web Development Bundle", got.Name)
}
