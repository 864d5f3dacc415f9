// Package site builds the deployable static tree for a deck repository:
// one externally compiled bundle per deck plus a generated landing page.
package site

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/quayside/deckhand/pkg/decks"
	"github.com/quayside/deckhand/pkg/logger"
	"github.com/quayside/deckhand/pkg/repoinfo"
)

// DeckBuildFunc compiles a single deck source file into outDir with its
// assets rooted at baseURL. The production implementation shells out to
// slidev; tests substitute a fake.
type DeckBuildFunc func(ctx context.Context, sourcePath, outDir, baseURL string) error

// Builder orchestrates a full site build: a linear, single-pass batch
// pipeline with no retries and no partial-success mode.
type Builder struct {
	sourceDir string
	outputDir string
	baseDir   string
	buildDeck DeckBuildFunc
}

// Option configures a Builder.
type Option func(*Builder) error

// WithDeckBuildFunc replaces the external deck build step.
func WithDeckBuildFunc(fn DeckBuildFunc) Option {
	return func(b *Builder) error {
		if fn == nil {
			return errors.New("deck build func cannot be nil")
		}
		b.buildDeck = fn
		return nil
	}
}

// WithBaseDir sets the repository root consulted for name resolution
// (package.json, git remote). Defaults to the current directory.
func WithBaseDir(dir string) Option {
	return func(b *Builder) error {
		b.baseDir = dir
		return nil
	}
}

// NewBuilder creates a Builder reading deck sources from sourceDir and
// writing the site into outputDir.
func NewBuilder(sourceDir, outputDir string, opts ...Option) (*Builder, error) {
	b := &Builder{
		sourceDir: sourceDir,
		outputDir: outputDir,
		baseDir:   ".",
		buildDeck: BuildDeckWithSlidev,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Build runs the whole pipeline: resolve the repository name, recreate the
// output directory, discover decks, compile each one, then write the
// landing page and the .nojekyll hosting marker. The first deck compile
// failure aborts the run. Returns the decks that were built.
func (b *Builder) Build(ctx context.Context) ([]decks.Deck, error) {
	log := logger.G(ctx)

	repoName := repoinfo.Resolve(ctx, b.baseDir)
	log.WithField("repoName", repoName).Info("building deck site")

	// Recreate the output directory so stale artifacts from previous
	// runs never leak into this one.
	if err := os.RemoveAll(b.outputDir); err != nil {
		return nil, errors.Wrapf(err, "removing previous output directory %s", b.outputDir)
	}
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", b.outputDir)
	}

	found, err := decks.FindDecks(b.sourceDir)
	if err != nil {
		return nil, err
	}

	for _, deck := range found {
		outDir := filepath.Join(b.outputDir, deck.Slug)
		baseURL := "/" + repoName + "/" + deck.Slug + "/"

		log.WithField("slug", deck.Slug).WithField("title", deck.Title).Info("building deck")
		if err := b.buildDeck(ctx, deck.SourcePath, outDir, baseURL); err != nil {
			return nil, errors.Wrapf(err, "building deck %s", deck.Slug)
		}
	}

	html, err := RenderLandingPage(found, repoName)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(b.outputDir, "index.html"), []byte(html), 0o644); err != nil {
		return nil, errors.Wrap(err, "writing landing page")
	}

	// Static hosting marker: tells GitHub Pages not to run Jekyll over
	// the output.
	if err := os.WriteFile(filepath.Join(b.outputDir, ".nojekyll"), []byte{}, 0o644); err != nil {
		return nil, errors.Wrap(err, "writing .nojekyll marker")
	}

	log.WithField("decks", len(found)).Info("deck site built")
	return found, nil
}
