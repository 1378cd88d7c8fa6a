package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/joshharrison/loomplan/internal/auth"
	"github.com/joshharrison/loomplan/internal/claude"
	"github.com/joshharrison/loomplan/internal/config"
	"github.com/joshharrison/loomplan/internal/confirm"
	"github.com/joshharrison/loomplan/internal/cpm"
	"github.com/joshharrison/loomplan/internal/export"
	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/ingest"
	"github.com/joshharrison/loomplan/internal/regen"
	"github.com/joshharrison/loomplan/internal/reporter"
	"github.com/joshharrison/loomplan/internal/server"
	"github.com/joshharrison/loomplan/internal/store"
	"github.com/joshharrison/loomplan/internal/suggest"
	"github.com/joshharrison/loomplan/internal/ui"
)

var (
	flagConfig       string
	flagDB           string
	flagJSON         bool
	flagActor        string
	flagDisciplines  string
	flagCapabilities string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loomplan",
		Short: "Critical-path scheduling for project task graphs",
		Long: `Loomplan computes and maintains a critical-path schedule (WBS) for a
project's tasks: cycle detection, forward/backward pass scheduling,
dependency suggestions with a confirmation workflow, calendar export,
and an append-only audit trail of every regeneration.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "cli", "Acting user id")
	rootCmd.PersistentFlags().StringVar(&flagDisciplines, "disciplines", "", "Actor discipline scopes, comma-separated (empty: unrestricted)")
	rootCmd.PersistentFlags().StringVar(&flagCapabilities, "capabilities", "scheduler", "Actor capabilities, comma-separated")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(wbsCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(tasksCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired services every command needs.
type app struct {
	cfg      *config.Config
	store    *store.Store
	logger   *log.Logger
	regen    *regen.Service
	workflow *confirm.Workflow
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database = flagDB
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:  level,
		Prefix: "loomplan",
	})

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	rg := regen.New(st, logger)
	return &app{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		regen:    rg,
		workflow: confirm.New(st, rg, logger),
	}, nil
}

func cliActor() auth.Actor {
	return auth.Actor{
		ID:           flagActor,
		Disciplines:  splitList(flagDisciplines),
		Capabilities: splitList(flagCapabilities),
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveWorkingDays prefers the command-line flag over the configured
// default working days.
func resolveWorkingDays(flagValue string, cfg *config.Config) []string {
	if days := splitList(flagValue); len(days) > 0 {
		return days
	}
	return cfg.WorkingDays
}

// resolveModel prefers the command-line flag over the configured Claude model.
func resolveModel(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Claude.Model
}

// mergeSuggestions appends the AI-inferred edges to the heuristic ones and
// restores the confidence-descending order of the combined list.
func mergeSuggestions(heuristic, inferred []suggest.Suggestion) []suggest.Suggestion {
	out := append(heuristic, inferred...)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Confidence > out[b].Confidence
	})
	return out
}

func serveCmd() *cobra.Command {
	var flagListen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			if flagListen == "" {
				flagListen = app.cfg.Listen
			}

			srv := &http.Server{
				Addr:    flagListen,
				Handler: server.New(app.store, app.regen, app.workflow, app.logger).Handler(),
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			if !flagJSON {
				ui.PrintLogo()
			}
			app.logger.Info("listening", "addr", flagListen, "db", app.cfg.Database)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (default from config)")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <project-id>",
		Short: "Recompute and replace a project's WBS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			nodes, err := app.regen.Regenerate(cmd.Context(), args[0], cliActor())
			if err != nil {
				return err
			}

			rpt := reporter.New(args[0], nodes, false)
			if flagJSON {
				return printReportJSON(rpt)
			}
			fmt.Printf("✅ %s %s nodes for %s\n", ui.BoldGreen("Regenerated"), ui.Bold(len(nodes)), ui.BoldMagenta(args[0]))
			rpt.PrintSchedule(os.Stdout)
			return nil
		},
	}
	return cmd
}

func wbsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wbs <project-id>",
		Short: "Show the stored schedule for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			nodes, err := app.store.NodesByProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				return fmt.Errorf("no schedule stored for project %s (run: loomplan generate %s)", args[0], args[0])
			}
			stale, err := app.store.IsStale(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rpt := reporter.New(args[0], nodes, stale)
			if flagJSON {
				return printReportJSON(rpt)
			}
			rpt.PrintSchedule(os.Stdout)
			return nil
		},
	}
	return cmd
}

func suggestCmd() *cobra.Command {
	var (
		flagAI    bool
		flagModel string
	)

	cmd := &cobra.Command{
		Use:   "suggest <project-id>",
		Short: "Suggest missing task dependencies",
		Long: `Scores every ordered task pair with temporal, resource, discipline, and
title-sequence heuristics. With --ai, Claude-inferred edges are appended
to the heuristic results. Suggestions are advisory — apply them with
'loomplan confirm'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			projectID := args[0]

			tasks, err := app.store.TasksByProject(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks found for project %s", projectID)
			}

			facts := make([]suggest.TaskFacts, len(tasks))
			known := make(map[string]bool, len(tasks))
			for i := range tasks {
				facts[i] = suggest.Facts(tasks[i])
				known[tasks[i].ID] = true
			}
			suggestions := suggest.Suggest(facts)

			if flagAI {
				client, err := claude.NewClient("", resolveModel(flagModel, app.cfg))
				if err != nil {
					return err
				}
				summaries := make([]claude.TaskSummary, len(tasks))
				for i := range tasks {
					summaries[i] = claude.TaskSummary{
						ID:         tasks[i].ID,
						Title:      tasks[i].Title,
						Discipline: tasks[i].Discipline,
					}
				}
				fmt.Fprintf(os.Stderr, "🔍 Sending %s tasks to Claude for dependency inference...\n", ui.Bold(len(summaries)))
				result, err := client.InferDeps(cmd.Context(), summaries)
				if err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
				suggestions = mergeSuggestions(suggestions, result.Suggestions(known))
			}

			if flagJSON {
				return outputJSON(suggestions)
			}

			if len(suggestions) == 0 {
				fmt.Printf("%s No dependency suggestions for %s.\n", ui.Dim("∅"), ui.BoldMagenta(projectID))
				return nil
			}
			fmt.Printf("🔗 %s for %s:\n\n", ui.BoldCyan("Dependency suggestions"), ui.BoldMagenta(projectID))
			for _, s := range suggestions {
				fmt.Printf("  %s %s → %s  %s  %s\n",
					ui.Cyan("→"), ui.BoldMagenta(s.FromTask), ui.BoldMagenta(s.ToTask),
					ui.Bold(fmt.Sprintf("%.2f", s.Confidence)),
					ui.Dim(strings.Join(s.Reasons, ", ")))
			}
			fmt.Printf("\n🎯 %s\n", ui.Yellow("Advisory only — use 'loomplan confirm' to apply."))
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().BoolVar(&flagAI, "ai", false, "Append Claude-inferred edges to the heuristic suggestions")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (default: Sonnet)")
	return cmd
}

func confirmCmd() *cobra.Command {
	var (
		flagAccept []string
		flagReject []string
	)

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Accept or reject suggested dependencies",
		Long: `Applies a batch of dependency decisions. Each edge is written as
from:to — accepting adds 'from' to 'to's predecessor list, rejecting
removes it. The affected projects are regenerated in the same
transaction as the edge mutations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			decisions, err := parseDecisions(flagAccept, flagReject)
			if err != nil {
				return err
			}
			if len(decisions) == 0 {
				return fmt.Errorf("nothing to do (use --accept from:to and/or --reject from:to)")
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			if err := app.workflow.Apply(cmd.Context(), decisions, cliActor()); err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(map[string]any{"applied": len(decisions)})
			}
			fmt.Printf("🏁 Applied %s decisions and regenerated affected schedules.\n", ui.BoldGreen(len(decisions)))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&flagAccept, "accept", nil, "Accept an edge (from:to), repeatable")
	cmd.Flags().StringArrayVar(&flagReject, "reject", nil, "Reject an edge (from:to), repeatable")
	return cmd
}

func parseDecisions(accepts, rejects []string) ([]confirm.Decision, error) {
	var decisions []confirm.Decision
	parse := func(raw string, accept bool) error {
		from, to, ok := strings.Cut(raw, ":")
		if !ok || from == "" || to == "" {
			return fmt.Errorf("invalid edge %q (expected from:to)", raw)
		}
		decisions = append(decisions, confirm.Decision{FromTask: from, ToTask: to, Accept: accept})
		return nil
	}
	for _, raw := range accepts {
		if err := parse(raw, true); err != nil {
			return nil, err
		}
	}
	for _, raw := range rejects {
		if err := parse(raw, false); err != nil {
			return nil, err
		}
	}
	return decisions, nil
}

func exportCmd() *cobra.Command {
	var (
		flagAnchor      string
		flagWorkingDays string
	)

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Map the schedule onto calendar dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			nodes, err := app.store.NodesByProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				return fmt.Errorf("no schedule stored for project %s", args[0])
			}

			doc, err := export.Build(args[0], nodes, export.Options{
				AnchorDate:  flagAnchor,
				WorkingDays: resolveWorkingDays(flagWorkingDays, app.cfg),
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(doc)
			}
			fmt.Printf("📅 %s %s (anchor %s)\n\n", ui.BoldCyan("Calendar export:"), ui.BoldMagenta(doc.ProjectID), ui.Bold(doc.AnchorDate))
			for _, t := range doc.Tasks {
				fmt.Printf("  %s %-16s %s → %s  %s\n",
					ui.CritIcon(t.IsCritical), t.TaskID, t.StartDate, t.FinishDate,
					ui.Dim(fmt.Sprintf("float %.1f", t.TotalFloat)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagAnchor, "anchor", "", "Anchor date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&flagWorkingDays, "working-days", "", "Working days, comma-separated (default all 7)")
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <project-id>",
		Short: "List regeneration audit entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			entries, err := app.store.AuditsByProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Printf("%s No audit entries for %s.\n", ui.Dim("∅"), ui.BoldMagenta(args[0]))
				return nil
			}
			fmt.Printf("📜 %s for %s:\n\n", ui.BoldCyan("Audit trail"), ui.BoldMagenta(args[0]))
			for _, e := range entries {
				fmt.Printf("  %s  %s by %s  %s\n",
					ui.Dim(e.ID.String()[:8]),
					e.Timestamp.Format(time.RFC3339),
					ui.Bold(e.Actor),
					ui.Dim(fmt.Sprintf("%d nodes", e.NodeCount)))
			}
			return nil
		},
	}
	return cmd
}

func vizCmd() *cobra.Command {
	var flagFormat string

	cmd := &cobra.Command{
		Use:   "viz <project-id>",
		Short: "Print the dependency graph (ascii or dot)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			tasks, err := app.store.TasksByProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks found for project %s", args[0])
			}

			g := graph.Build(tasks)
			if cycles := g.Cycles(); len(cycles) > 0 {
				fmt.Fprintf(os.Stderr, "%s dependency cycles present, schedule metrics unavailable:\n", ui.BoldRed("⚠"))
				for _, c := range cycles {
					fmt.Fprintf(os.Stderr, "  %s\n", ui.Red(strings.Join(c, " → ")))
				}
				return fmt.Errorf("dependency cycle detected")
			}

			durations := make(map[string]float64, len(tasks))
			for i := range tasks {
				durations[tasks[i].ID] = tasks[i].Duration()
			}
			result, err := cpm.Analyze(g, durations)
			if err != nil {
				return err
			}

			if flagFormat == "dot" {
				printDOT(g, result)
				return nil
			}
			printASCII(g, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format (ascii, dot)")
	return cmd
}

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task store helpers",
	}
	cmd.AddCommand(tasksImportCmd())
	return cmd
}

func tasksImportCmd() *cobra.Command {
	var flagProject string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from an exported JSON document",
		Long: `Reads a task export (a JSON array or a {"tasks": [...]} wrapper),
upserts the tasks, and regenerates the schedule of every affected
project. A regeneration failure leaves the import committed and the
project flagged stale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}

			tasks, err := ingest.ParseTasks(data, flagProject)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			app, err := newApp()
			if err != nil {
				return err
			}

			projects, err := ingest.Apply(cmd.Context(), app.store, app.regen, tasks, app.logger)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(map[string]any{"tasks": len(tasks), "projects": projects})
			}
			fmt.Printf("🏁 Imported %s tasks across %s projects.\n", ui.BoldGreen(len(tasks)), ui.Bold(len(projects)))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagProject, "project", "", "Project id for tasks that carry none")
	return cmd
}

// --- Output helpers ---

func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printReportJSON(rpt *reporter.Reporter) error {
	data, err := rpt.JSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printASCII(g *graph.DepGraph, result *cpm.Result) {
	fmt.Printf("🔗 %s\n", ui.BoldCyan("Task Dependency Graph"))
	fmt.Println(ui.Cyan("═══════════════════════"))
	fmt.Println()

	for _, id := range result.TopoOrder {
		ts := result.Tasks[id]
		fmt.Printf("  %s [%s] %s %s\n",
			ui.CritIcon(ts.IsCritical), ui.BoldMagenta(id), g.Tasks[id].Title,
			ui.Dim(fmt.Sprintf("ES %.1f  float %.1f", ts.EarlyStart, ts.TotalFloat)))
		for _, succ := range g.Succs[id] {
			fmt.Printf("      %s %s\n", ui.Dim("└──→"), ui.Magenta(succ))
		}
	}
	fmt.Println()
	fmt.Printf("⚡ Critical path: %s (%.1f days)\n",
		ui.BoldYellow(strings.Join(result.CriticalPath, " → ")), result.ProjectFinish)
}

func printDOT(g *graph.DepGraph, result *cpm.Result) {
	fmt.Println("digraph loomplan {")
	fmt.Println("  rankdir=LR;")
	fmt.Println("  node [shape=box, style=rounded];")
	fmt.Println()

	for _, id := range g.Order {
		label := fmt.Sprintf("%s\\n%s", id, g.Tasks[id].Title)
		attrs := fmt.Sprintf(`label="%s"`, label)
		if ts, ok := result.Tasks[id]; ok && ts.IsCritical {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Printf("  %q [%s];\n", id, attrs)
	}

	fmt.Println()

	for _, from := range g.Order {
		for _, to := range g.Succs[from] {
			style := ""
			if result.Tasks[from] != nil && result.Tasks[from].IsCritical &&
				result.Tasks[to] != nil && result.Tasks[to].IsCritical {
				style = ` [color=red, penwidth=2]`
			}
			fmt.Printf("  %q -> %q%s;\n", from, to, style)
		}
	}

	fmt.Println("}")
}
