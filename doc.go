// Package temper provides a small text templating engine that compiles
// templates to bytecode.
//
// A template is literal text with directives between "$(" and ")":
//
//	$(name)                 substitutes the value bound to name
//	$(if name) ... $(end)   renders its body if name is bound
//	$(for x in xs) ... $(end)
//	                        renders its body once per element of xs, with
//	                        x bound to the element
//	$(include path)         renders another template from the Collection
//
// A backslash before "$(" renders the opener literally. Two backslashes
// render one backslash followed by a live directive.
//
// Compile turns template source into a Program: tables of literal
// fragments, variable names, and include targets, plus a sequence of
// 16-bit instructions. Execute runs a Program against a Resolver, which
// answers questions about variables by index, so the virtual machine never
// sees how values are stored. Bindings, a map of names to Values, is the
// Resolver most callers want, through Program.Render.
//
// Conditions test presence, not truthiness: $(if flag) renders its body
// when flag is bound to false, 0, or an empty string, and skips it only
// when flag isn't bound at all.
//
// A Collection holds named Programs, usually loaded from an fs.FS, and
// resolves include directives against them. Includes are best-effort: a
// missing or broken include renders as nothing, and so does an include
// that re-enters a template already on the render's include path. Nesting
// depth and the number of includes a render expands are limited by
// Config.MaxIncludeDepth and Config.MaxIncludes. Collections log
// through the *slog.Logger stored with LoggingContext and report spans and
// counters through the global OpenTelemetry providers.
package temper
