package docxcompose

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Engine creates composers and caches the templates they are built from.
// An Engine is safe for concurrent use; the composers it returns are not.
type Engine struct {
	config *Config
	cache  *TemplateCache

	mu     sync.RWMutex
	logger *zap.Logger
}

// New creates an engine configured from the environment.
func New() *Engine {
	return NewWithConfig(ConfigFromEnvironment())
}

// NewWithConfig creates an engine with a custom configuration.
func NewWithConfig(config *Config) *Engine {
	config = NewConfigWithDefaults(config)
	return &Engine{
		config: config,
		cache: NewTemplateCache(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		logger: loggerFromConfig(config),
	}
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return *e.config
}

// SetLogger replaces the logger handed to composers that get no
// WithLogger option.
func (e *Engine) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	e.mu.Lock()
	e.logger = l
	e.mu.Unlock()
}

func (e *Engine) log() *zap.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// LoadTemplate loads the template at path, serving it from the cache when
// the file is unchanged.
func (e *Engine) LoadTemplate(path string) (*StyleTemplate, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewTemplateError(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, NewTemplateError(path, err)
	}

	if tmpl, ok := e.cache.Get(abs, info.Size(), info.ModTime()); ok {
		e.log().Debug("template cache hit", zap.String("path", abs))
		return tmpl, nil
	}

	tmpl, err := LoadTemplateFile(abs)
	if err != nil {
		return nil, err
	}
	e.cache.Set(abs, tmpl, info.Size(), info.ModTime())
	return tmpl, nil
}

// NewComposer opens the template at path and starts a session. Options
// override the engine configuration for this composer only.
func (e *Engine) NewComposer(path string, opts ...Option) (*Composer, error) {
	tmpl, err := e.LoadTemplate(path)
	if err != nil {
		return nil, err
	}
	o := newComposerOptions(e.config)
	o.logger = e.log()
	for _, opt := range opts {
		opt(o)
	}
	return newComposer(tmpl, o)
}

// ClearCache removes all templates from the cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// composerOptions collects the per-composer settings.
type composerOptions struct {
	cfg    Config
	logger *zap.Logger
}

func newComposerOptions(cfg *Config) *composerOptions {
	return &composerOptions{cfg: *NewConfigWithDefaults(cfg)}
}

// Option configures a composer.
type Option func(*composerOptions)

// WithConfig replaces the configuration a composer starts from.
func WithConfig(config *Config) Option {
	return func(o *composerOptions) {
		o.cfg = *NewConfigWithDefaults(config)
	}
}

// WithLogger sets the logger a composer reports to.
func WithLogger(l *zap.Logger) Option {
	return func(o *composerOptions) {
		o.logger = l
	}
}

// WithCoverPage enables or disables inserting the template's cover page.
func WithCoverPage(enabled bool) Option {
	return func(o *composerOptions) {
		o.cfg.SkipCoverPage = !enabled
	}
}

// WithScratchDir sets the parent directory of the session scratch area.
func WithScratchDir(dir string) Option {
	return func(o *composerOptions) {
		o.cfg.ScratchDir = dir
	}
}

// WithImageDPI sets the resolution used to size pictures.
func WithImageDPI(dpi int) Option {
	return func(o *composerOptions) {
		o.cfg.ImageDPI = dpi
	}
}

// DefaultEngine is the engine used by the package-level NewComposer.
var DefaultEngine = New()
