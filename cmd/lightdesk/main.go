package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"golang.org/x/sync/errgroup"

	"go-lightdesk/config"
	"go-lightdesk/debug"
	"go-lightdesk/engine"
	"go-lightdesk/metrics"
	"go-lightdesk/midi"
	"go-lightdesk/output"
	"go-lightdesk/source"
	"go-lightdesk/theme"
	"go-lightdesk/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-lightdesk/config.yaml)")
	palettePath := flag.String("palette", "", "GIMP palette for the UI")
	initConfig := flag.Bool("init", false, "write the default config and exit")
	flag.Parse()

	if *initConfig {
		if err := writeDefaults(*configPath); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *palettePath); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func writeDefaults(path string) error {
	cfg := config.DefaultConfig()
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveTo(path)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func run(configPath, palettePath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Debug {
		if err := debug.Enable(""); err != nil {
			return err
		}
		defer debug.Disable()
	}
	log := debug.Logger("main")

	// Load theme
	palette, err := theme.LoadOrDefault(palettePath)
	if err != nil {
		log.Warn().Err(err).Msg("using built-in palette")
	}
	th := theme.New(palette)

	m := metrics.New()

	var targets []output.Target
	for _, t := range cfg.ArtNet.Targets {
		tgt, err := output.ResolveTarget(t.Address, t.Universe)
		if err != nil {
			return err
		}
		targets = append(targets, tgt)
	}
	artnet := output.NewArtNet(targets, m)
	monitor := output.NewMonitor()

	sched := engine.New(engine.Options{
		Frequency: cfg.Frequency,
		Universes: cfg.Universes,
		Output:    output.Tee{monitor, artnet},
		Metrics:   m,
	})
	cfg.Patch(sched.Universes())

	addrs, groups := cfg.SliderAddresses()
	sliders := source.NewSliders(addrs, groups)
	sched.RegisterDMXSource(sliders)

	var functions []engine.Function
	for _, sc := range cfg.BuildScenes(sched.Universes(), sched.Fader(), sched.TickMs()) {
		functions = append(functions, sc)
	}
	for _, ch := range cfg.BuildChasers(sched.Universes(), sched.Fader(), sched.TickMs()) {
		functions = append(functions, ch)
	}

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager(cfg.Bindings())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return artnet.Run(ctx) })
	g.Go(func() error { return deviceMgr.Run(ctx) })
	model := tui.NewModel(tui.Desk{
		Scheduler: sched,
		Monitor:   monitor,
		Sliders:   sliders,
		Functions: functions,
		DeviceMgr: deviceMgr,
		FadeOutMs: cfg.FadeOutMs,
	}, th)

	g.Go(func() error {
		midi.Route(ctx, deviceMgr.Events(), sched, model.RecordCC)
		return nil
	})

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: m.Handler()}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	log.Info().
		Int("frequency", sched.Frequency()).
		Int("universes", cfg.Universes).
		Int("functions", len(functions)).
		Msg("desk starting")
	sched.Start()
	defer sched.Stop()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})

	return g.Wait()
}
