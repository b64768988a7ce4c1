package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/snarg/case-register/internal/capture"
	"github.com/snarg/case-register/internal/capture/mic"
	"github.com/snarg/case-register/internal/client"
	"github.com/snarg/case-register/internal/config"
	"github.com/snarg/case-register/internal/desk"
	"github.com/snarg/case-register/internal/desk/app"
	"github.com/snarg/case-register/internal/export"
	"github.com/snarg/case-register/internal/localstore"
	"github.com/snarg/case-register/internal/session"
)

var version = "dev"

const usage = `usage: case-desk [flags] [command]

commands:
  tui              interactive dictation desk (default)
  transcribe FILE  transcribe an audio file into the active case
  export           export the active case transcript as .docx
  cases            list cases
  health           check the transcription server

flags:
`

func main() {
	var overrides config.DeskOverrides
	flag.StringVar(&overrides.EnvFile, "env-file", ".env", "path to .env file")
	flag.StringVar(&overrides.ServerURL, "server", "", "transcription server URL (overrides CASE_REGISTER_URL)")
	flag.StringVar(&overrides.StoreDriver, "store", "", "sqlite, dir or memory (overrides DESK_STORE_DRIVER)")
	flag.StringVar(&overrides.StorePath, "store-path", "", "local state location (overrides DESK_STORE_PATH)")
	flag.StringVar(&overrides.ExportDir, "export-dir", "", "directory for exported documents (overrides EXPORT_DIR)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadDesk(overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := "tui", flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	if err := run(ctx, cfg, log, command, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.DeskConfig, log zerolog.Logger, command string, args []string) error {
	api := client.New(cfg.ServerURL, cfg.RequestTimeout, log)

	if command == "health" {
		if err := api.Health(ctx); err != nil {
			return fmt.Errorf("%s: %s", cfg.ServerURL, client.Describe(err))
		}
		fmt.Printf("%s ok\n", cfg.ServerURL)
		return nil
	}

	kv, err := localstore.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer kv.Close()
	log.Info().Str("driver", kv.Type()).Str("path", cfg.StorePath).Msg("local store opened")

	sessions, err := session.Open(kv)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	switch command {
	case "tui":
		return runTUI(cfg, log, api, sessions)
	case "transcribe":
		if len(args) != 1 {
			return fmt.Errorf("usage: case-desk transcribe FILE")
		}
		return runTranscribe(ctx, api, sessions, args[0])
	case "export":
		return runExport(cfg, sessions)
	case "cases":
		return runCases(sessions)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runTUI(cfg *config.DeskConfig, log zerolog.Logger, api *client.Client, sessions *session.Store) error {
	rec := capture.NewRecorder(mic.NewSource(cfg.SampleRate), log)
	ctrl := desk.New(rec, api, sessions, log)
	defer ctrl.Close()

	m := app.New(ctrl, sessions, cfg.ExportDir)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runTranscribe(ctx context.Context, api *client.Client, sessions *session.Store, path string) error {
	blob, err := capture.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	text, err := api.Submit(ctx, blob)
	if err != nil {
		return errors.New(client.Describe(err))
	}
	c, err := sessions.AppendTranscript(text)
	if err != nil {
		return err
	}
	fmt.Println(text)
	if c != nil {
		fmt.Fprintf(os.Stderr, "added to %s (%d segments)\n", c.Title, len(c.Segments))
	}
	return nil
}

func runExport(cfg *config.DeskConfig, sessions *session.Store) error {
	f, err := export.Export(sessions.Buffer(), time.Now())
	if err != nil {
		return err
	}
	path, err := export.Save(cfg.ExportDir, f)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runCases(sessions *session.Store) error {
	active, _ := sessions.Active()
	for _, c := range sessions.Cases() {
		marker := " "
		if c.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %s\t%s\t%d segments\t%s\n",
			marker, c.ID, c.Title, len(c.Segments), c.LastUpdated.Local().Format(time.RFC822))
	}
	return nil
}

// newLogger writes to DESK_LOG_FILE when set and discards otherwise, so
// log lines never land on the TUI.
func newLogger(cfg *config.DeskConfig) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w io.Writer = io.Discard
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, err
		}
		w = f
		closeFn = func() { f.Close() }
	}
	log := zerolog.New(w).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("case-desk starting")
	return log, closeFn, nil
}
