// Package document loads the static character document the session state is
// tracked against
package document

//go:generate mockgen -destination=mock/mock_client.go -package=documentmock github.com/KirkDiggler/rpg-sheet/internal/clients/document Client

import (
	"context"
	"log/slog"
	"os"

	"github.com/KirkDiggler/rpg-sheet/internal/assets"
	"github.com/KirkDiggler/rpg-sheet/internal/entities/sheet"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// Client defines how the character document is obtained
type Client interface {
	// Load reads and parses the character document
	Load(ctx context.Context) (*sheet.Document, error)
}

// Config configures the document client
type Config struct {
	// Path to a character document on disk (optional, defaults to the bundled document)
	Path string
}

// Validate validates the Config
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config is required")
	}
	return nil
}

type client struct {
	path string
}

// New creates a document client
func New(cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &client{path: cfg.Path}, nil
}

// Load implements Client
func (c *client) Load(ctx context.Context) (*sheet.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "document load cancelled")
	}

	if c.path == "" {
		slog.DebugContext(ctx, "Loading bundled character document", "name", assets.DefaultDocumentName)
		doc, err := sheet.ParseDocument(assets.DefaultDocument())
		if err != nil {
			return nil, errors.Wrap(err, "bundled character document is invalid")
		}
		return doc, nil
	}

	slog.DebugContext(ctx, "Loading character document", "path", c.path)
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("character document %s not found", c.path).
				WithMeta("path", c.path)
		}
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to read character document %s", c.path)
	}

	doc, err := sheet.ParseDocument(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse character document %s", c.path).
			WithMeta("path", c.path)
	}

	slog.InfoContext(ctx, "Loaded character document",
		"name", doc.Name,
		"max_hit_points", doc.MaxHitPoints(),
		"artifacts", doc.ArtifactCount)

	return doc, nil
}
