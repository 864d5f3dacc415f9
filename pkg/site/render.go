package site

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/pkg/errors"
	"github.com/quayside/deckhand/pkg/decks"
)

//go:embed templates/*
var templateFS embed.FS

var landingTmpl, landingTmplErr = template.ParseFS(templateFS, "templates/index.html.tmpl")

type deckCard struct {
	Title string
	Info  string
	Href  string
}

type landingData struct {
	RepoName   string
	CountLabel string
	Decks      []deckCard
}

// RenderLandingPage produces the HTML landing page linking to every built
// deck under /{repoName}/{slug}/. Titles and descriptions pass through
// html/template, so reserved characters in deck metadata come out as
// entities rather than markup. Pure: identical inputs produce identical
// output bytes.
func RenderLandingPage(deckList []decks.Deck, repoName string) (string, error) {
	if landingTmplErr != nil {
		return "", errors.Wrap(landingTmplErr, "parsing landing page template")
	}

	data := landingData{
		RepoName:   repoName,
		CountLabel: countLabel(len(deckList)),
	}
	for _, d := range deckList {
		data.Decks = append(data.Decks, deckCard{
			Title: d.Title,
			Info:  d.Info,
			Href:  "/" + repoName + "/" + d.Slug + "/",
		})
	}

	var buf strings.Builder
	if err := landingTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "rendering landing page")
	}
	return buf.String(), nil
}

func countLabel(n int) string {
	if n == 1 {
		return "1 deck"
	}
	return fmt.Sprintf("%d decks", n)
}
