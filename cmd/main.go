// penwheel turns a drawing tablet into a simulated steering wheel with
// centering dynamics and force feedback, presented to the OS as a
// virtual controller device.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"penwheel/internal/api"
	"penwheel/internal/autostart"
	"penwheel/internal/config"
	"penwheel/internal/pen"
	"penwheel/internal/pipeline"
	"penwheel/internal/protocol"
	"penwheel/internal/sink"
	"penwheel/internal/source"
	"penwheel/internal/steering"
	"penwheel/internal/wheel"
)

var (
	version = "0.1.0"

	configPath  = flag.String("config", "", "Path to JSON config file")
	sourceName  = flag.String("source", "", "Override input source (dummy|net|evdev|wintab)")
	sinkName    = flag.String("sink", "", "Override output sink (dummy|uinput|vigem)")
	apiEnabled  = flag.Bool("api", false, "Enable the observer API server")
	listDevices = flag.Bool("list-devices", false, "List tablet input devices and exit")
	logLevel    = flag.String("log-level", "", "Override log level (trace|debug|info|warn|error)")
	feedAddr    = flag.String("feed", "", "Stream synthetic pen samples to a remote net source at host:port and exit on interrupt")
	autoStart   = flag.String("autostart", "", "Manage login auto-start (enable|disable|status)")
	showVer     = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("penwheel version %s\n", version)
		return
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *listDevices {
		listTablets(log)
		return
	}

	if *autoStart != "" {
		manageAutostart(*autoStart, log)
		return
	}

	if *feedAddr != "" {
		if err := feed(*feedAddr, log); err != nil {
			log.Fatal().Err(err).Msg("feed failed")
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

// applyOverrides layers command-line overrides onto the loaded config.
func applyOverrides(cfg *config.Config) {
	if *sourceName != "" {
		cfg.Source = config.Source(*sourceName)
	}
	if *sinkName != "" {
		cfg.Sink = config.Sink(*sinkName)
	}
	if *apiEnabled {
		cfg.API.Enabled = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	src, err := source.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating source %q: %w", cfg.Source, err)
	}

	out, err := sink.New(cfg, log)
	if err != nil {
		src.Close()
		return fmt.Errorf("creating sink %q: %w", cfg.Sink, err)
	}

	mapper := steering.NewMapper(cfg.MapperParams())
	model := wheel.NewModel(cfg.Wheel)

	pipe := pipeline.New(src, []sink.Sink{out}, mapper, model, cfg.UpdateFrequency, cfg.SinkFrequency, log)
	if err := pipe.Start(); err != nil {
		src.Close()
		out.Close()
		return err
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(pipe, log)
		if err := server.Start(cfg.API.Port); err != nil {
			// The observer is optional; steering keeps working without it.
			log.Error().Err(err).Msg("observer API failed to start")
			server = nil
		}
	}

	log.Info().Str("source", string(cfg.Source)).Str("sink", string(cfg.Sink)).
		Int("frequency", cfg.UpdateFrequency).Msg("penwheel running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	if server != nil {
		server.Stop()
	}
	pipe.Stop()
	return nil
}

func manageAutostart(action string, log zerolog.Logger) {
	switch action {
	case "enable":
		if err := autostart.Enable(); err != nil {
			log.Fatal().Err(err).Msg("enabling auto-start")
		}
		fmt.Println("Auto-start enabled.")
	case "disable":
		if err := autostart.Disable(); err != nil {
			log.Fatal().Err(err).Msg("disabling auto-start")
		}
		fmt.Println("Auto-start disabled.")
	case "status":
		if autostart.IsEnabled() {
			fmt.Println("Auto-start is enabled.")
		} else {
			fmt.Println("Auto-start is disabled.")
		}
	default:
		log.Fatal().Str("action", action).Msg("unknown autostart action, want enable|disable|status")
	}
}

// feed traces a slow circle with the pen held down, streaming samples to
// a remote net source. Useful for exercising a host end to end without a
// tablet attached.
func feed(addr string, log zerolog.Logger) error {
	sender, err := protocol.NewSender(addr)
	if err != nil {
		return err
	}
	defer sender.Close()

	log.Info().Str("addr", sender.RemoteAddr().String()).Msg("feeding synthetic pen samples")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(8 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-sigCh:
			// Lift the pen so the remote wheel re-centers.
			sender.Send(pen.Sample{})
			return nil

		case now := <-ticker.C:
			phase := now.Sub(start).Seconds() * 2 * math.Pi / 8 // one lap per 8s
			sample := pen.Sample{
				X:        float32(0.8 * math.Cos(phase)),
				Y:        float32(0.8 * math.Sin(phase)),
				Pressure: 500,
				Buttons:  pen.ButtonTip,
			}
			if err := sender.Send(sample); err != nil {
				return fmt.Errorf("sending sample: %w", err)
			}
		}
	}
}

func listTablets(log zerolog.Logger) {
	devices, err := source.EnumerateTablets()
	if err != nil {
		if errors.Is(err, source.ErrUnsupported) {
			fmt.Println("Device listing is only supported on Linux.")
			return
		}
		log.Fatal().Err(err).Msg("enumerating devices")
	}

	if len(devices) == 0 {
		fmt.Println("No tablet devices found.")
		return
	}

	fmt.Println("Tablet Devices:")
	fmt.Println("---------------")
	for _, d := range devices {
		fmt.Printf("%s\n  Name: %s\n", d.Path, d.Name)
	}
}
