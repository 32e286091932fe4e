package temper

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Collection holds named, compiled templates and renders them, resolving
// include directives against the other templates it holds.
//
// A Collection can safely be used by multiple goroutines. Renders see
// either the templates from before or after a concurrent Add or Reload,
// never a mix within a single template.
type Collection struct {
	cfg Config

	// templateDir is where Load and Reload read templates from. It's nil
	// for collections built with New or LoadCache.
	templateDir fs.FS

	programs   map[string]*Program
	programsMu sync.RWMutex
}

// New returns an empty Collection. Templates can be added to it with Add.
func New(cfg Config) *Collection {
	return &Collection{
		cfg:      cfg,
		programs: map[string]*Program{},
	}
}

// Load compiles every regular file in the root of fsys, or in its whole
// tree if cfg.Recursive is set, into a Collection. Templates are named by
// their slash-separated path relative to the root of fsys.
//
// If cfg.IgnoreBadTemplates is set, files that fail to compile are logged
// and left out; otherwise the first one fails the load.
func Load(ctx context.Context, fsys fs.FS, cfg Config) (*Collection, error) {
	c := New(cfg)
	c.templateDir = fsys
	if err := c.Reload(ctx, false); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the Collection's template directory. When discard is
// set, templates whose files are gone are dropped; otherwise they're kept.
// If the reload fails, the Collection is left as it was.
func (c *Collection) Reload(ctx context.Context, discard bool) (err error) {
	ctx, span := startSpan(ctx, "temper.Load",
		attribute.Bool("temper.recursive", c.cfg.Recursive),
		attribute.Bool("temper.discard", discard))
	defer func() { endSpan(span, err) }()

	if c.templateDir == nil {
		return ErrNoTemplateDir
	}
	loaded, err := loadPrograms(ctx, c.templateDir, c.cfg)
	if err != nil {
		return err
	}

	c.programsMu.Lock()
	defer c.programsMu.Unlock()
	next := loaded
	if !discard {
		next = maps.Clone(c.programs)
		maps.Copy(next, loaded)
	}
	if err := checkIncludes(ctx, next, c.cfg); err != nil {
		return err
	}
	c.programs = next
	return nil
}

func loadPrograms(ctx context.Context, fsys fs.FS, cfg Config) (map[string]*Program, error) {
	var files []string
	if cfg.Recursive {
		err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error listing templates: %w", err)
		}
	} else {
		entries, err := fs.ReadDir(fsys, ".")
		if err != nil {
			return nil, fmt.Errorf("error listing templates: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				files = append(files, entry.Name())
			}
		}
	}

	programs := make(map[string]*Program, len(files))
	for _, file := range files {
		contents, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("error reading %q: %w", file, err)
		}
		prog, err := Compile(string(contents))
		if err != nil {
			if !cfg.IgnoreBadTemplates {
				return nil, fmt.Errorf("error compiling %q: %w", file, err)
			}
			logger(ctx).WarnContext(ctx, "skipping template that failed to compile",
				"template", file, "error", err)
			meters.skipped.Add(ctx, 1, metric.WithAttributes(templateAttr(file)))
			continue
		}
		logger(ctx).DebugContext(ctx, "loaded template", "template", file,
			"instructions", len(prog.instructions))
		programs[file] = prog
	}
	return programs, nil
}

// checkIncludes looks for include cycles among programs, failing if
// cfg.RejectIncludeCycles is set and logging otherwise.
func checkIncludes(ctx context.Context, programs map[string]*Program, cfg Config) error {
	_, err := walkGraph(ctx, buildIncludeGraph(programs))
	if err == nil {
		return nil
	}
	if cfg.RejectIncludeCycles {
		return err
	}
	logger(ctx).WarnContext(ctx, "templates include each other in a cycle; renders will skip includes that re-enter a template",
		"error", err)
	return nil
}

// Add compiles src and stores it under name, replacing any template
// already using that name. If cfg.RejectIncludeCycles is set and the new
// template closes an include cycle, Add returns an error wrapping
// ErrIncludeCycle and leaves the Collection unchanged.
func (c *Collection) Add(ctx context.Context, name, src string) error {
	prog, err := Compile(src)
	if err != nil {
		return fmt.Errorf("error compiling %q: %w", name, err)
	}
	c.programsMu.Lock()
	defer c.programsMu.Unlock()
	next := maps.Clone(c.programs)
	next[name] = prog
	if err := checkIncludes(ctx, next, c.cfg); err != nil {
		return fmt.Errorf("error adding %q: %w", name, err)
	}
	c.programs = next
	return nil
}

// Lookup returns the compiled template stored under name.
func (c *Collection) Lookup(name string) (*Program, bool) {
	c.programsMu.RLock()
	defer c.programsMu.RUnlock()
	prog, ok := c.programs[name]
	return prog, ok
}

// Names returns the names of every template in the Collection, sorted.
func (c *Collection) Names() []string {
	c.programsMu.RLock()
	defer c.programsMu.RUnlock()
	return slices.Sorted(maps.Keys(c.programs))
}

// IncludeOrder returns the Collection's template names ordered so that
// every template comes after the templates it includes. If templates
// include each other in a cycle, it returns an error wrapping
// ErrIncludeCycle.
func (c *Collection) IncludeOrder(ctx context.Context) ([]string, error) {
	c.programsMu.RLock()
	g := buildIncludeGraph(c.programs)
	c.programsMu.RUnlock()
	return walkGraph(ctx, g)
}

// Render renders the template stored under name with bindings. Include
// directives render the named template from the Collection with the same
// bindings; includes that fail for any reason render as nothing. An
// include fails when it re-enters a template already being rendered on
// its include path, nests deeper than cfg.MaxIncludeDepth, or exceeds the
// render's cfg.MaxIncludes budget.
//
// Render returns an error wrapping ErrTemplateNotFound if the Collection
// has no template named name.
func (c *Collection) Render(ctx context.Context, name string, bindings Bindings) (string, error) {
	return c.render(ctx, name, &renderState{bindings: bindings})
}

// renderState is shared by a top-level render and every include it
// expands.
type renderState struct {
	bindings Bindings

	// path holds the templates being rendered, outermost first.
	path []string

	// includes counts the includes expanded so far.
	includes int
}

func (c *Collection) render(ctx context.Context, name string, st *renderState) (_ string, err error) {
	ctx, span := startSpan(ctx, "temper.Render", templateAttr(name),
		attribute.Int("temper.include_depth", len(st.path)))
	defer func() { endSpan(span, err) }()

	prog, ok := c.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	meters.renders.Add(ctx, 1, metric.WithAttributes(templateAttr(name)))

	st.path = append(st.path, name)
	defer func() { st.path = st.path[:len(st.path)-1] }()

	include := func(target string, out *strings.Builder) {
		c.renderInclude(ctx, name, target, st, out)
	}
	res, err := Execute(prog, newBindingResolver(prog, st.bindings, include))
	if err != nil {
		return "", fmt.Errorf("error rendering %q: %w", name, err)
	}
	return res, nil
}

func (c *Collection) renderInclude(ctx context.Context, from, target string, st *renderState, out *strings.Builder) {
	depth := len(st.path)
	var res string
	var err error
	switch {
	case slices.Contains(st.path, target):
		err = fmt.Errorf("%w: %s -> %s", ErrIncludeCycle, strings.Join(st.path, " -> "), target)
	case depth > c.cfg.maxIncludeDepth():
		err = fmt.Errorf("%w: %d", ErrIncludeDepthExceeded, c.cfg.maxIncludeDepth())
	case st.includes >= c.cfg.maxIncludes():
		err = fmt.Errorf("%w: %d", ErrIncludeLimitExceeded, c.cfg.maxIncludes())
	default:
		st.includes++
		res, err = c.render(ctx, target, st)
	}
	if err != nil {
		// includes are best-effort; the including template keeps going
		logger(ctx).WarnContext(ctx, "include rendered nothing",
			"template", from, "include", target, "depth", depth, "error", err)
		meters.includeFailures.Add(ctx, 1, metric.WithAttributes(templateAttr(from)))
		return
	}
	out.WriteString(res)
}
