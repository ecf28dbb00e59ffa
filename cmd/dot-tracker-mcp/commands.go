package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/spf13/cobra"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/imaging"
	"github.com/ironsheep/dot-tracker-mcp/internal/pipeline"
	"github.com/ironsheep/dot-tracker-mcp/internal/server"
	"github.com/ironsheep/dot-tracker-mcp/internal/store"
)

// --- Global Command Variables ---
var (
	logLevel   string
	configPath string
	dbPath     string
	saveTrak   bool
	frameIndex int
	outPath    string
	scale      int
	pathMode   string

	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "dot-tracker-mcp",
		Short: "Track bright dots through an image stack",
		Long: `dot-tracker-mcp refines every frame of an image stack into a confidence
grid, extracts dot features and links them across frames into a graph.
Without a subcommand it serves the graph over MCP on stdin/stdout.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(logLevel)
			slog.SetDefault(logger)
		},
		RunE: runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	buildCmd = &cobra.Command{
		Use:   "build <dir | file.gif | frame...>",
		Short: "Build the feature graph of a stack and print its summary as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBuild,
	}

	renderCmd = &cobra.Command{
		Use:   "render <dir | file.gif | frame...>",
		Short: "Render one frame's confidence grid with its paths to a PNG",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRender,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dot-tracker-mcp %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Build time: %s\n", BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $DOT_TRACKER_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file of thresholds overlaid on the defaults")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database for saved graphs")

	buildCmd.Flags().BoolVar(&saveTrak, "save", false, "write the graph to <source>.trak")

	renderCmd.Flags().IntVar(&frameIndex, "frame", 0, "frame to render")
	renderCmd.Flags().StringVar(&outPath, "out", "", "output PNG file")
	renderCmd.Flags().IntVar(&scale, "scale", imaging.DefaultScale, "pixel magnification")
	renderCmd.Flags().StringVar(&pathMode, "paths", string(imaging.PathsShown), "paths to draw: shown, all, range or none")
	_ = renderCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(serveCmd, buildCmd, renderCmd, versionCmd)
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Debug("starting server",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)
	opts := []server.Option{server.WithLogger(logger)}
	if dbPath != "" {
		opts = append(opts, server.WithSQLite(dbPath))
	}
	return server.New(opts...).Run(cmd.Context())
}

// buildSession loads the stack named by args and builds its graph.
func buildSession(cmd *cobra.Command, args []string) (*pipeline.Session, *imaging.Stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	stack, err := imaging.LoadStack(args...)
	if err != nil {
		return nil, nil, err
	}
	sess, err := pipeline.NewSession(cmd.Context(), stack.Frames, cfg,
		pipeline.WithLogger(logger), pipeline.WithSource(stack.Source))
	if err != nil {
		return nil, nil, err
	}
	return sess, stack, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	sess, stack, err := buildSession(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if saveTrak {
		path, err := store.NewFileStore().Save(ctx, stack.Source, sess.Snapshot())
		if err != nil {
			return err
		}
		logger.Info("graph saved", slog.String("path", path))
	}
	if dbPath != "" {
		db, err := store.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.Save(ctx, stack.Source, sess.Snapshot())
		if err != nil {
			return err
		}
		logger.Info("graph saved", slog.String("db", dbPath), slog.String("id", id))
	}

	res, _ := sess.Current()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(pipeline.Summarize(res))
}

func runRender(cmd *cobra.Command, args []string) error {
	mode, err := imaging.ParsePathMode(pathMode)
	if err != nil {
		return err
	}
	sess, _, err := buildSession(cmd, args)
	if err != nil {
		return err
	}
	res, _ := sess.Current()
	if frameIndex < 0 || frameIndex >= res.FrameCount() {
		return fmt.Errorf("frame %d out of range (stack has %d)", frameIndex, res.FrameCount())
	}

	overlay, err := imaging.BuildOverlay(res.Graph, imaging.OverlayOptions{
		Mode:     mode,
		Frame:    frameIndex,
		End:      res.FrameCount() - 1,
		ShowDots: true,
		Palette:  imaging.DefaultPalette(),
	})
	if err != nil {
		return err
	}
	img, err := imaging.Render(res.Grids[frameIndex], imaging.RenderOptions{Scale: scale, Overlay: overlay})
	if err != nil {
		return err
	}
	if err := imgio.Save(outPath, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	logger.Info("frame rendered", slog.String("out", outPath), slog.Int("frame", frameIndex))
	return nil
}
