// Package prompt loads and renders the text templates that drive AI
// content generation. Parsed templates are cached in a small LRU so the
// generation cron does not re-parse files every cycle. The cache evicts
// by capacity only, so editing a template on disk takes effect after a
// process restart.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"FlapBoard/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 32

// Loader reads prompt templates from a directory tree.
//
// Templates live at {dir}/{kind}/{filename}, falling back to
// {dir}/{filename} for templates shared across generator kinds.
type Loader struct {
	dir    string
	cache  *lru.Cache[string, *template.Template]
	logger *log.Helper
}

// NewLoader creates a prompt loader rooted at the configured directory.
func NewLoader(cfg *conf.Prompt, logger log.Logger) (*Loader, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *template.Template](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	return &Loader{
		dir:    cfg.Dir,
		cache:  cache,
		logger: log.NewHelper(logger),
	}, nil
}

// LoadPromptWithVariables loads the named template for a generator kind
// and renders it with the given variables. Missing variables referenced
// by the template fail the render rather than emitting "<no value>".
func (l *Loader) LoadPromptWithVariables(kind, filename string, vars map[string]any) (string, error) {
	tmpl, err := l.load(kind, filename)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", kind, filename, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (l *Loader) load(kind, filename string) (*template.Template, error) {
	key := kind + "/" + filename
	if tmpl, ok := l.cache.Get(key); ok {
		return tmpl, nil
	}

	path := filepath.Join(l.dir, kind, filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read prompt %s: %w", path, err)
		}
		// Shared templates sit directly under the prompt directory.
		path = filepath.Join(l.dir, filename)
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt %s/%s: %w", kind, filename, err)
		}
	}

	tmpl, err := template.New(key).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", path, err)
	}

	l.cache.Add(key, tmpl)
	l.logger.Debugw("prompt template loaded", "template", key, "path", path)
	return tmpl, nil
}
