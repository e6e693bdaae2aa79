package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"audioinput/cmd"
	"audioinput/internal/audio"
	"audioinput/internal/build"
	"audioinput/internal/config"
	applog "audioinput/internal/log"
	"audioinput/internal/store"
	"audioinput/internal/tui"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// main is the entry point for the capture bridge.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the capture backend and the permission prompter
//   - Start the bridge event loop
//   - Serve clients over WebSocket or stdio
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the end of stdin
//   - Close the transport, which resets the bridge
//   - Stop capture and flush the recording
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags.
	if err := build.Initialize(); err != nil {
		applog.Debugf("%v", err)
	}

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if options == nil {
		return // --help or --version
	}
	cfg := options.Config

	configureLogging(cfg)

	if cfg.Command != cmd.CommandServe {
		if err := executeCommand(options); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ============ CONCURRENT AND SHUTDOWN PHASES (see serve.go) ============

	if err := serve(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func configureLogging(cfg *config.Config) {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

// executeCommand handles one-off commands that don't require the bridge
// to be running.
func executeCommand(options *cmd.Options) error {
	cfg := options.Config

	switch cfg.Command {
	case cmd.CommandList:
		return withPortAudio(func() error {
			return audio.ListDevices(os.Stdout)
		})

	case cmd.CommandPick:
		return withPortAudio(func() error {
			selection, err := tui.RunDevicePicker(audio.HostDevices)
			if err != nil || selection == nil {
				return err
			}
			return printSelection(selection)
		})

	case cmd.CommandRecordings:
		if cfg.Store.Path == "" {
			return fmt.Errorf("no recordings catalog configured (use --store or store.path)")
		}
		db, err := store.NewDB(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		return printRecordings(db, options.IncludeDeleted)

	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

func withPortAudio(fn func() error) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return fn()
}

// printSelection writes the picked device as a config snippet.
func printSelection(s *tui.Selection) error {
	snippet := struct {
		Audio struct {
			InputDevice int `yaml:"input_device"`
			SampleRate  int `yaml:"sample_rate"`
		} `yaml:"audio"`
	}{}
	snippet.Audio.InputDevice = s.DeviceID
	snippet.Audio.SampleRate = s.SampleRate

	out, err := yaml.Marshal(&snippet)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", s.DeviceName, out)
	return nil
}

func printRecordings(db *store.DB, includeDeleted bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recordings, err := db.ListRecordings(ctx, includeDeleted)
	if err != nil {
		return err
	}
	if len(recordings) == 0 {
		fmt.Println("No recordings.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "FILE", "FORMAT", "RATE", "CH", "DURATION", "STATUS")
	for _, r := range recordings {
		status := "ok"
		switch {
		case r.Deleted:
			status = "deleted"
		case r.Error != "":
			status = r.Error
		case r.StoppedAt == nil:
			status = "recording"
		}
		t.Row(
			r.StartedAt.Local().Format(time.DateTime),
			r.FileURL,
			r.Format,
			fmt.Sprint(r.SampleRate),
			fmt.Sprint(r.Channels),
			r.Duration().Round(time.Millisecond).String(),
			status,
		)
	}
	fmt.Println(t)
	return nil
}
