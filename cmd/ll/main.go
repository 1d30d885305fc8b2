package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"lessonline/internal/config"
	"lessonline/internal/db"
	"lessonline/internal/engine"
	"lessonline/internal/library"
	"lessonline/internal/migrate"
	"lessonline/internal/repo"
	"lessonline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ll",
	Short: "Lessonline CLI",
	Long: `Lessonline plans learning sessions as a timeline of activities.
Core concepts:
- Workspace: your .lessonline directory holding the session database.
- Session: one lesson plan with a start state, a goal state and a time budget.
- State vector: where the learners are, one value per competence dimension.
- Library: the catalog of activity templates (effects, prerequisites, planes).
- Timeline: the ordered activities of a session; each placement recomputes
  every downstream state.
- Gaps: boundaries where the reached state falls short of what the next
  activity (or the goal) requires; hard gaps exceed the threshold.
- Recommendations: every template scored against a gap by distance removed
  per minute; auto add and auto complete apply the best ones for you.
- Event log: diary of changes, view with 'll log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LESSONLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(gapsCmd())
	rootCmd.AddCommand(recommendCmd())
	rootCmd.AddCommand(autoCmd())
	rootCmd.AddCommand(templatesCmd())
	rootCmd.AddCommand(libraryCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func sessionCmd() *cobra.Command {
	ses := &cobra.Command{Use: "session", Short: "Manage sessions"}
	ses.AddCommand(sessionCreateCmd())
	ses.AddCommand(sessionListCmd())
	ses.AddCommand(sessionShowCmd())
	ses.AddCommand(sessionRenameCmd())
	ses.AddCommand(sessionDeleteCmd())
	return ses
}

func sessionCreateCmd() *cobra.Command {
	var id, name, start, goal, libPath string
	var budget int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				var libYAML string
				if libPath != "" {
					data, err := os.ReadFile(libPath)
					if err != nil {
						return err
					}
					libYAML = string(data)
				}
				s, err := e.CreateSession(ctx, engine.SessionCreateOptions{
					ID:          id,
					Name:        name,
					Start:       start,
					Goal:        goal,
					TimeBudget:  budget,
					LibraryYAML: libYAML,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "session name")
	cmd.Flags().StringVar(&start, "start", "", "start state, e.g. (0.1;0.1)")
	cmd.Flags().StringVar(&goal, "goal", "", "goal state, e.g. (0.9;0.9)")
	cmd.Flags().IntVar(&budget, "time-budget", 0, "time budget in minutes")
	cmd.Flags().StringVar(&libPath, "library", "", "custom library YAML file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func sessionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSessions(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "Goal", "Budget", "Updated"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, vecString(s.Start), vecString(s.Goal), s.TimeBudget, s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func sessionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show session state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.State(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	return cmd
}

func sessionRenameCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "rename <session-id>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				s, err := e.RenameSession(ctx, args[0], name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func sessionDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.DeleteSession(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func timelineCmd() *cobra.Command {
	tl := &cobra.Command{
		Use:   "timeline",
		Short: "Edit a session timeline",
		Long:  "The timeline is the ordered list of placed activities. Every edit recomputes the state chain and the gap report.",
	}
	tl.AddCommand(timelineShowCmd())
	tl.AddCommand(timelineInsertCmd())
	tl.AddCommand(timelineRemoveCmd())
	tl.AddCommand(timelineExchangeCmd())
	tl.AddCommand(timelinePlaneCmd())
	tl.AddCommand(timelineResetCmd())
	return tl
}

func timelineShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show timeline as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.State(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Pos", "Activity", "Plane", "Start", "End", "State before", "State after"})
				for i, inst := range snap.Instances {
					tw.AppendRow(table.Row{i, inst.TemplateName, inst.PlaneName, inst.StartsAfter, inst.EndsAfter, vecString(inst.StateBefore), vecString(inst.StateAfter)})
				}
				tw.Render()
				fmt.Printf("Reached %s of goal %s, used %d/%d min, goal reached: %v\n",
					vecString(snap.Reached), vecString(snap.Goal), snap.TotalTime, snap.TimeBudget, snap.GoalReached)
				if len(snap.HardGapList) > 0 {
					fmt.Printf("Hard gaps at positions %v (total distance %.3f)\n", snap.HardGapList, snap.RemainingGapDistance)
				}
				return nil
			})
		},
	}
	return cmd
}

func timelineInsertCmd() *cobra.Command {
	var templateIdx, position int
	var duration int
	var plane string
	cmd := &cobra.Command{
		Use:   "insert <session-id>",
		Short: "Insert an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				opts := engine.InsertOptions{
					SessionID:   args[0],
					TemplateIdx: templateIdx,
					Position:    position,
					ActorID:     viper.GetString("actor-id"),
				}
				if cmd.Flags().Changed("duration") {
					opts.Duration = &duration
				}
				if plane != "" {
					p, err := library.ParsePlane(plane)
					if err != nil {
						return err
					}
					opts.Plane = &p
				}
				snap, err := e.Insert(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	cmd.Flags().IntVar(&templateIdx, "template", 0, "template index")
	cmd.Flags().IntVar(&position, "position", 0, "timeline position")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in minutes (template default when omitted)")
	cmd.Flags().StringVar(&plane, "plane", "", "social plane: individual, team or class")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func timelineRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <session-id> <position>",
		Short: "Remove an activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.Remove(ctx, args[0], pos, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	return cmd
}

func timelineExchangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exchange <session-id> <pos-a> <pos-b>",
		Short: "Swap two activities",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			posA, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("pos-a: %w", err)
			}
			posB, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("pos-b: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.Exchange(ctx, args[0], posA, posB, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	return cmd
}

func timelinePlaneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plane <session-id> <position> <plane>",
		Short: "Change the social plane of an activity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			plane, err := library.ParsePlane(args[2])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.ChangePlane(ctx, args[0], pos, plane, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	return cmd
}

func timelineResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Remove every activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.Reset(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	return cmd
}

func gapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gaps <session-id>",
		Short: "Show the gap report",
		Long:  "Walks every boundary of the timeline and reports where the reached state falls short of the next prerequisite or the goal.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				gaps, err := e.Gaps(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(gaps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Pos", "From", "To", "Distance", "Hard"})
				for _, gap := range gaps {
					tw.AppendRow(table.Row{gap.Position, vecString(gap.From), vecString(gap.To), fmt.Sprintf("%.3f", gap.Distance), gap.IsHard})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func recommendCmd() *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "recommend <session-id>",
		Short: "Score templates for a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				recs, err := e.Recommend(ctx, args[0], position)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Idx", "Template", "Score", "Eligible", "Best", "Flags"})
				for _, r := range recs {
					score := "-"
					if r.Score != nil {
						score = fmt.Sprintf("%.4f", *r.Score)
					}
					tw.AppendRow(table.Row{r.TemplateIdx, r.TemplateName, score, r.OkeyToTake, r.IsBest, flagString(r.Flags.Exhausted, r.Flags.TooLong, r.Flags.NoProgress)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "boundary position to score against")
	return cmd
}

func autoCmd() *cobra.Command {
	auto := &cobra.Command{Use: "auto", Short: "Automatic planning"}
	auto.AddCommand(autoAddCmd())
	auto.AddCommand(autoCompleteCmd())
	return auto
}

func autoAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <session-id>",
		Short: "Insert the best activity at the hardest gap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				snap, err := e.AutoAdd(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	return cmd
}

func autoCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <session-id>",
		Short: "Fill the timeline until the goal is reached or no activity fits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				out, err := e.AutoComplete(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("inserted %d activities, goal reached: %v\n", out.InsertedCount, out.GoalReached)
				return nil
			})
		},
	}
	return cmd
}

func templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates <session-id>",
		Short: "List the session's activity templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Templates(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Idx", "Name", "PCond", "Effect", "Time", "MaxRep", "Plane"})
				for _, t := range items {
					timeCol := fmt.Sprintf("%d", t.DefT)
					if t.Adjustable {
						timeCol = fmt.Sprintf("%d-%d (def %d)", t.MinT, t.MaxT, t.DefT)
					}
					effect := vecString(t.MaxEffect)
					if t.Adjustable {
						effect = vecString(t.MinEffect) + ".." + vecString(t.MaxEffect)
					}
					tw.AppendRow(table.Row{t.Idx, t.Name, vecString(t.PCond), effect, timeCol, t.MaxRepetition, t.PlaneName})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func libraryCmd() *cobra.Command {
	lib := &cobra.Command{
		Use:   "library",
		Short: "Manage activity libraries",
		Long:  "A library is the YAML catalog of activity templates. Sessions use the shared catalog unless a custom one is imported.",
	}
	lib.AddCommand(libraryExportCmd())
	lib.AddCommand(libraryImportCmd())
	lib.AddCommand(libraryAddCmd())
	return lib
}

func libraryAddCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "add <session-id>",
		Short: "Append one template to the session's library",
		Long:  "Reads a single template in library YAML form and appends it to the catalog. Existing timeline steps stay valid because indices never shift.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var spec library.TemplateSpec
			if err := yaml.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("invalid template yaml: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				views, err := e.AddTemplate(ctx, args[0], spec, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(views)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "template YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func libraryExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export the session's library as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				data, err := e.ExportLibrary(ctx, args[0])
				if err != nil {
					return err
				}
				if out != "" {
					return os.WriteFile(out, data, 0o644)
				}
				fmt.Print(string(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func libraryImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import <session-id>",
		Short: "Replace the session's library from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.ImportLibrary(ctx, args[0], string(data), viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("library imported")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "library YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace configuration",
		Long:  "Config lives in lessonline.yml next to the workspace: dimension count, gap threshold, auto-complete ceiling and session defaults.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default lessonline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: session lifecycle, timeline edits, library imports.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var sessionID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				events, err := e.ListEvents(ctx, sessionID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 20, "number of events")
	cmd.Flags().StringVar(&sessionID, "session", "", "filter by session id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowAnonymous bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:           os.Getenv("LESSONLINE_JWT_SECRET"),
				AllowAnonymousActor: allowAnonymous,
			}
			if authCfg.JWTSecret == "" && !allowAnonymous {
				return fmt.Errorf("LESSONLINE_JWT_SECRET is required for bearer auth (or pass --allow-anonymous)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Lessonline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowAnonymous, "allow-anonymous", false, "run unauthenticated requests as the local actor")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func vecString(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', 4, 64)
	}
	return "(" + strings.Join(parts, ";") + ")"
}

func flagString(exhausted, tooLong, noProgress bool) string {
	var flags []string
	if exhausted {
		flags = append(flags, "exhausted")
	}
	if tooLong {
		flags = append(flags, "too-long")
	}
	if noProgress {
		flags = append(flags, "no-progress")
	}
	if len(flags) == 0 {
		return ""
	}
	return strings.Join(flags, ",")
}
