// Package cli dispatches the drift commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattepiu/drift/internal/config"
	"github.com/mattepiu/drift/internal/fsutil"
	"github.com/mattepiu/drift/internal/history"
	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/match"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/quickfix"
	"github.com/mattepiu/drift/internal/rules"
	"github.com/mattepiu/drift/internal/severity"
	"github.com/mattepiu/drift/internal/store"
	"github.com/mattepiu/drift/internal/variant"
	"github.com/mattepiu/drift/schemas"
)

// Run dispatches a command line to its handler.
func Run(args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "version", "--version", "-v":
		return cmdVersion()
	case "init":
		return cmdInit(args[1:])
	case "status":
		return cmdStatus(args[1:])
	case "list":
		return cmdList(args[1:])
	case "approve":
		return cmdApprove(args[1:])
	case "ignore":
		return cmdIgnore(args[1:])
	case "check":
		return cmdCheck(args[1:])
	case "variants":
		return cmdVariants(args[1:])
	case "feedback":
		return cmdFeedback(args[1:])
	case "noisy":
		return cmdNoisy(args[1:])
	case "help", "-h", "--help":
		return usage()
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func usage() error {
	fmt.Println(`drift commands: init | status | list | approve | ignore | check | variants | feedback | noisy

Examples:
  drift init
  drift list --status discovered --category api
  drift approve pat_1a2b3c4d --by alex
  drift approve --all-discovered
  drift check
  drift variants --deactivate var_9f8e7d6c
  drift feedback pat_1a2b3c4d false-positive --comment "matches generated code"`)
	return nil
}

// workspace bundles the long-lived components opened by most commands.
type workspace struct {
	root     string
	cfg      *config.Config
	store    *store.Store
	variants *variant.Manager
}

func openWorkspace(root string) (*workspace, error) {
	rootPath, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(rootPath)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LoggerLevel())

	patternsDir := filepath.Join(rootPath, config.DataDirName, "patterns")
	st := store.New(store.Options{
		Dir:        patternsDir,
		Debounce:   time.Duration(cfg.SaveDebounceMs) * time.Millisecond,
		MaxBackups: cfg.MaxBackups,
	})
	if err := st.Initialize(); err != nil {
		return nil, err
	}
	vm := variant.NewManager(variant.Options{
		Dir:        filepath.Join(patternsDir, "variants"),
		MaxBackups: cfg.MaxBackups,
	})
	if err := vm.Initialize(); err != nil {
		return nil, err
	}
	return &workspace{root: rootPath, cfg: cfg, store: st, variants: vm}, nil
}

func (w *workspace) close() error {
	if err := w.store.Close(); err != nil {
		return err
	}
	return w.variants.Close()
}

func (w *workspace) historyPath() string {
	return filepath.Join(w.root, config.DataDirName, "history.db")
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	dataDir := filepath.Join(rootPath, config.DataDirName)
	for _, d := range []string{
		dataDir,
		filepath.Join(dataDir, "patterns"),
		filepath.Join(dataDir, "patterns", "variants"),
		filepath.Join(dataDir, "schemas"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	if err := writeDefaultConfig(filepath.Join(dataDir, "config.jsonc")); err != nil {
		return err
	}
	if err := exportSchemas(filepath.Join(dataDir, "schemas")); err != nil {
		return err
	}

	// Initializing migrates a legacy layout if one is present.
	w, err := openWorkspace(rootPath)
	if err != nil {
		return err
	}
	if err := w.close(); err != nil {
		return err
	}
	fmt.Printf("initialized drift workspace in %s\n", dataDir)
	return nil
}

const defaultConfigTemplate = `{
	// drift engine configuration
	// Globs listed here extend the built-in ignore list.
	"ignoreGlobs": [],
	"maxBackups": 5,
	"saveDebounceMs": 1000,
	"maxViolationsPerFile": 100,
	"maxViolationsPerPattern": 50,
	"logLevel": "off",
	"severity": {
		"default": "warning",
		"escalationEnabled": false
	},
	"quickFix": {
		"minConfidence": 0.5,
		"maxFixesPerViolation": 5
	}
}
`

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(defaultConfigTemplate), 0o644)
}

// exportSchemas copies the embedded schemas into the workspace for
// transparency. The embedded copies remain canonical for validation.
func exportSchemas(dir string) error {
	all, err := schemas.List()
	if err != nil {
		return err
	}
	for name, data := range all {
		dest := filepath.Join(dir, name+".schema.json")
		if existing, err := os.ReadFile(dest); err == nil && string(existing) == string(data) {
			continue
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
	}
	return nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := openWorkspace(*root)
	if err != nil {
		return err
	}
	defer w.close()

	stats := w.store.Stats()
	fmt.Printf("patterns: %d (discovered %d, approved %d, ignored %d)\n",
		stats.TotalPatterns,
		stats.ByStatus[pattern.StatusDiscovered],
		stats.ByStatus[pattern.StatusApproved],
		stats.ByStatus[pattern.StatusIgnored])
	for category, n := range stats.ByCategory {
		fmt.Printf("  %-14s %d\n", category, n)
	}
	fmt.Printf("on disk: %d files, %d bytes\n", stats.FileCount, stats.DiskBytes)

	vs := w.variants.GetStats()
	fmt.Printf("variants: %d (%d active)\n", vs.Total, vs.Active)
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	category := fs.String("category", "", "filter by category")
	status := fs.String("status", "", "filter by status")
	file := fs.String("file", "", "filter by file membership")
	search := fs.String("search", "", "free-text search over name and description")
	sortField := fs.String("sort", "name", "sort field: name|confidence|severity|firstSeen|lastSeen|locationCount")
	desc := fs.Bool("desc", false, "sort descending")
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := openWorkspace(*root)
	if err != nil {
		return err
	}
	defer w.close()

	filter := store.Filter{File: *file, Search: *search}
	if *category != "" {
		filter.Categories = []pattern.Category{pattern.Category(*category)}
	}
	if *status != "" {
		filter.Statuses = []pattern.Status{pattern.Status(*status)}
	}
	res := w.store.Query(filter,
		store.Sort{Field: store.SortField(*sortField), Descending: *desc},
		store.Page{Offset: *offset, Limit: *limit})

	for _, p := range res.Patterns {
		fmt.Printf("%-14s %-12s %-10s %.2f  %s\n", p.ID, p.Category, p.Status, p.Confidence, p.Name)
	}
	fmt.Printf("%d of %d", len(res.Patterns), res.Total)
	if res.HasMore {
		fmt.Printf(" (more: --offset %d)", *offset+len(res.Patterns))
	}
	fmt.Println()
	return nil
}

func cmdApprove(args []string) error {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	by := fs.String("by", "", "approver recorded on the pattern")
	allDiscovered := fs.Bool("all-discovered", false, "approve every discovered pattern")
	minConfidence := fs.Float64("min-confidence", 0, "approve discovered patterns at or above this confidence")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := openWorkspace(*root)
	if err != nil {
		return err
	}
	defer w.close()

	if *minConfidence > 0 {
		result := w.store.BulkApproveAbove(*minConfidence, *by)
		fmt.Printf("approved %d pattern(s) at confidence >= %.2f\n", len(result.Approved), *minConfidence)
		return nil
	}

	ids := fs.Args()
	if *allDiscovered {
		res := w.store.Query(store.Filter{Statuses: []pattern.Status{pattern.StatusDiscovered}}, store.Sort{}, store.Page{})
		for _, p := range res.Patterns {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("approve: no pattern ids given")
	}
	result := w.store.BulkApprove(ids, *by)
	fmt.Printf("approved %d pattern(s)\n", len(result.Approved))
	for id, msg := range result.Failed {
		fmt.Printf("  %s: %s\n", id, msg)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("approve: %d of %d failed", len(result.Failed), len(ids))
	}
	return nil
}

func cmdIgnore(args []string) error {
	fs := flag.NewFlagSet("ignore", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("ignore: no pattern ids given")
	}
	w, err := openWorkspace(*root)
	if err != nil {
		return err
	}
	defer w.close()

	for _, id := range fs.Args() {
		if err := w.store.Ignore(id); err != nil {
			return err
		}
		fmt.Printf("ignored %s\n", id)
	}
	return nil
}

func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	noHistory := fs.Bool("no-history", false, "skip durable occurrence recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := openWorkspace(*root)
	if err != nil {
		return err
	}
	defer w.close()

	sevMgr := severity.NewManager(w.cfg.SeverityManagerConfig())
	engine := rules.NewEngine(match.NewRegexMatcher(), nil, sevMgr, rules.Options{
		MaxViolationsPerFile:    w.cfg.MaxViolationsPerFile,
		MaxViolationsPerPattern: w.cfg.MaxViolationsPerPattern,
		TrackOccurrences:        w.cfg.Severity.EscalationEnabled,
	})
	pipeline := &rules.Pipeline{
		Engine:   engine,
		Variants: w.variants,
		Fixes: quickfix.NewGenerator(quickfix.Options{
			MinConfidence:        w.cfg.QuickFix.MinConfidence,
			MaxFixesPerViolation: w.cfg.QuickFix.MaxFixesPerViolation,
		}),
	}
	if !*noHistory {
		hs, err := history.Open(w.historyPath())
		if err != nil {
			return err
		}
		defer hs.Close()
		pipeline.History = hs
		if w.cfg.Severity.EscalationEnabled {
			byPattern, byCategory, err := hs.Counts(context.Background())
			if err != nil {
				return err
			}
			sevMgr.SeedCounts(byPattern, byCategory)
		}
	}

	inputs, err := collectInputs(w.root, w.cfg.IgnoreGlobs)
	if err != nil {
		return err
	}
	approved := w.store.Query(store.Filter{Statuses: []pattern.Status{pattern.StatusApproved}}, store.Sort{}, store.Page{})

	result := pipeline.Run(context.Background(), inputs, approved.Patterns)
	printViolations(result.Violations)
	fmt.Printf("%d file(s), %d pattern(s): %d violation(s), %d suppressed\n",
		result.Summary.FilesEvaluated, len(approved.Patterns), len(result.Violations), result.Suppressed)
	for _, e := range result.Summary.Errors {
		fmt.Printf("  warning [%s]: %s\n", e.Code, e.Message)
	}

	blocking := severity.FilterByMinSeverity(result.Violations, pattern.SeverityError)
	if len(blocking) > 0 {
		return fmt.Errorf("check: %d blocking violation(s)", len(blocking))
	}
	return nil
}

func printViolations(violations []*pattern.Violation) {
	severity.SortBySeverity(violations)
	for _, v := range violations {
		fmt.Printf("%s:%d:%d  %-7s  %s  [%s]\n",
			v.File, v.Range.Start.Line+1, v.Range.Start.Character+1, v.Severity, v.Message, v.PatternID)
		if v.QuickFix != nil {
			fmt.Printf("    fix: %s (%.2f)\n", v.QuickFix.Title, v.QuickFix.Confidence)
		}
	}
}

// collectInputs reads every non-ignored file under root.
func collectInputs(root string, ignoreGlobs []string) ([]rules.Input, error) {
	files, err := fsutil.ListFiles(root, ignoreGlobs)
	if err != nil {
		return nil, err
	}
	inputs := make([]rules.Input, 0, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			logger.Error("read %s: %v", rel, err)
			continue
		}
		inputs = append(inputs, rules.Input{
			File:        rel,
			Content:     string(data),
			Language:    languageFor(rel),
			ProjectRoot: root,
		})
	}
	return inputs, nil
}

func languageFor(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".rb":
		return "ruby"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	default:
		return ""
	}
}

func cmdVariants(args []string) error {
	fs := flag.NewFlagSet("variants", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	patternID := fs.String("pattern", "", "filter by pattern id")
	activate := fs.String("activate", "", "activate a variant by id")
	deactivate := fs.String("deactivate", "", "deactivate a variant by id")
	remove := fs.String("delete", "", "delete a variant by id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w, err := openWorkspace(*root)
	if err != nil {
		return err
	}
	defer w.close()

	switch {
	case *activate != "":
		if err := w.variants.Activate(*activate); err != nil {
			return err
		}
		fmt.Printf("activated %s\n", *activate)
	case *deactivate != "":
		if err := w.variants.Deactivate(*deactivate); err != nil {
			return err
		}
		fmt.Printf("deactivated %s\n", *deactivate)
	case *remove != "":
		if err := w.variants.Delete(*remove); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", *remove)
	default:
		for _, v := range w.variants.Find(variant.Query{PatternID: *patternID}) {
			state := "active"
			if !v.Active {
				state = "inactive"
			}
			fmt.Printf("%-14s %-14s %-9s %-10s %s\n", v.ID, v.PatternID, v.Scope, state, v.Name)
		}
	}
	return nil
}

func cmdFeedback(args []string) error {
	fs := flag.NewFlagSet("feedback", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	comment := fs.String("comment", "", "optional note stored with the verdict")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("feedback: usage: drift feedback <pattern-id> <confirmed|fixed|dismissed|false-positive>")
	}
	verdict := fs.Arg(1)
	if verdict == "false-positive" {
		verdict = history.VerdictFalsePositive
	}

	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	hs, err := history.Open(filepath.Join(rootPath, config.DataDirName, "history.db"))
	if err != nil {
		return err
	}
	defer hs.Close()
	if err := hs.RecordFeedback(context.Background(), fs.Arg(0), verdict, *comment); err != nil {
		return err
	}
	fmt.Printf("recorded %s for %s\n", verdict, fs.Arg(0))
	return nil
}

func cmdNoisy(args []string) error {
	fs := flag.NewFlagSet("noisy", flag.ContinueOnError)
	root := fs.String("root", ".", "workspace root")
	threshold := fs.Float64("threshold", 0.1, "false-positive rate alert line")
	minFeedback := fs.Int("min-feedback", 5, "minimum verdicts before a pattern is reported")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rootPath, err := filepath.Abs(*root)
	if err != nil {
		return err
	}
	hs, err := history.Open(filepath.Join(rootPath, config.DataDirName, "history.db"))
	if err != nil {
		return err
	}
	defer hs.Close()

	noisy, err := hs.NoisyPatterns(context.Background(), *minFeedback, *threshold)
	if err != nil {
		return err
	}
	if len(noisy) == 0 {
		fmt.Println("no noisy patterns")
		return nil
	}
	for _, np := range noisy {
		fmt.Printf("%-14s %5.1f%% false positives over %d verdict(s)\n", np.PatternID, np.Rate*100, np.Feedback)
	}
	return nil
}
