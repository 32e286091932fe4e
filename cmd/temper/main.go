// temper renders a template from a directory of templates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"impractical.co/temper"
)

func main() {
	dir := flag.String("dir", ".", "Directory to load templates from")
	configPath := flag.String("config", "", "TOML config file (optional)")
	dataPath := flag.String("data", "", "YAML file of variable bindings (optional)")
	recursive := flag.Bool("r", false, "Load templates from subdirectories too")
	strict := flag.Bool("strict", false, "Fail if any template doesn't compile")
	disasm := flag.Bool("disasm", false, "Print the template's bytecode instead of rendering it")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: temper [options] NAME\n\n")
		fmt.Fprintf(os.Stderr, "Loads the templates in -dir and renders NAME to stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  temper -dir ./templates -data vars.yaml page.txt\n")
		fmt.Fprintf(os.Stderr, "  temper -dir ./templates -r -disasm partials/header.txt\n")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	name := flag.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	ctx := temper.LoggingContext(context.Background(),
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := temper.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = temper.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *recursive {
		cfg.Recursive = true
	}
	if *strict {
		cfg.IgnoreBadTemplates = false
	}

	bindings, err := loadBindings(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	coll, err := temper.Load(ctx, os.DirFS(*dir), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading templates from %s: %v\n", *dir, err)
		os.Exit(1)
	}

	if *disasm {
		prog, ok := coll.Lookup(name)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: %v: %q\n", temper.ErrTemplateNotFound, name)
			os.Exit(1)
		}
		fmt.Print(prog.Disassemble())
		return
	}

	out, err := coll.Render(ctx, name, bindings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}

func loadBindings(path string) (temper.Bindings, error) {
	if path == "" {
		return temper.Bindings{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	bindings, err := temper.NewBindings(raw)
	if err != nil {
		return nil, fmt.Errorf("bad bindings in %s: %w", path, err)
	}
	return bindings, nil
}
