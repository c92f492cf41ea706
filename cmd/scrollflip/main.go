package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("scrollflip v%s\n", version)
	fmt.Println("Scroll direction daemon: inverts wheel scrolling, leaves trackpads alone")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  scrollflip [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that grabs one or more evdev pointer devices, classifies each")
	fmt.Println("  scroll burst as trackpad-like or wheel-like, and re-emits the events")
	fmt.Println("  on a uinput virtual device with wheel scrolling inverted. Trackpad")
	fmt.Println("  gestures pass through untouched.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Single evdev device node to grab (overrides input.devices)")
	fmt.Println()
	fmt.Println("  -invert bool")
	fmt.Println("        Startup inversion state (default true)")
	fmt.Println()
	fmt.Println("  -max-history int")
	fmt.Printf("        Classifier sample history bound (default %d)\n", defaultMaxHistory)
	fmt.Println()
	fmt.Println("  -idle-reset-ms float")
	fmt.Printf("        Idle gap that resets the classifier in ms (default %g)\n", float64(defaultIdleResetMS))
	fmt.Println()
	fmt.Println("  -rate-window-ms float")
	fmt.Printf("        Event-density window in ms (default %g)\n", float64(defaultRateWindowMS))
	fmt.Println()
	fmt.Println("  -trackpad-rate-min int")
	fmt.Printf("        Events per window needed for trackpad classification (default %d)\n", defaultTrackpadRateMin)
	fmt.Println()
	fmt.Println("  -small-delta-limit int")
	fmt.Printf("        Magnitude bound for a \"small\" delta (default %d)\n", defaultSmallDeltaLimit)
	fmt.Println()
	fmt.Println("  -small-ratio-req float")
	fmt.Printf("        Small-delta ratio required by the borderline rule (default %.2f)\n", defaultSmallRatioReq)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/scrollflip.sock\")")
	fmt.Println()
	fmt.Println("  -statews bool")
	fmt.Println("        Enable the state websocket server (default false)")
	fmt.Println()
	fmt.Println("  -statews-listen string")
	fmt.Println("        State websocket listen address (default \"127.0.0.1:7474\")")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Invert the wheel on a single mouse")
	fmt.Println("  scrollflip -device /dev/input/event5")
	fmt.Println()
	fmt.Println("  # Full config file, websocket state feed enabled")
	fmt.Println("  scrollflip -config ~/.config/scrollflip/config.yaml -statews")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input devices and write access to")
	fmt.Println("    /dev/uinput (run as root or add udev rules)")
	fmt.Println("  - Grabbed devices are exclusive: the desktop only sees the virtual")
	fmt.Println("    device while scrollflip runs")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath = flag.String("config", "", "Path to YAML config file")

		device = flag.String("device", "", "Single evdev device node to grab")

		invertEnabled = flag.Bool("invert", true, "Startup inversion state")

		maxHistory      = flag.Int("max-history", defaultMaxHistory, "Classifier sample history bound")
		idleResetMS     = flag.Float64("idle-reset-ms", defaultIdleResetMS, "Idle gap that resets the classifier in ms")
		rateWindowMS    = flag.Float64("rate-window-ms", defaultRateWindowMS, "Event-density window in ms")
		trackpadRateMin = flag.Int("trackpad-rate-min", defaultTrackpadRateMin, "Events per window needed for trackpad classification")
		smallDeltaLimit = flag.Int("small-delta-limit", defaultSmallDeltaLimit, "Magnitude bound for a small delta")
		smallRatioReq   = flag.Float64("small-ratio-req", defaultSmallRatioReq, "Small-delta ratio required by the borderline rule")

		ipcSocketPath = flag.String("ipc-socket", "", "Unix domain socket path for IPC")

		stateWSEnabled = flag.Bool("statews", false, "Enable the state websocket server")
		stateWSListen  = flag.String("statews-listen", "", "State websocket listen address")

		logLevelStr = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Load config: defaults, then file, then flag overrides.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	overrides := FlagOverrides{}
	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	if setFlags["device"] {
		overrides.Device = device
	}
	if setFlags["max-history"] {
		overrides.ClassMaxHistory = maxHistory
	}
	if setFlags["idle-reset-ms"] {
		overrides.ClassIdleResetMS = idleResetMS
	}
	if setFlags["rate-window-ms"] {
		overrides.ClassRateWindowMS = rateWindowMS
	}
	if setFlags["trackpad-rate-min"] {
		overrides.ClassTrackpadRateMin = trackpadRateMin
	}
	if setFlags["small-delta-limit"] {
		overrides.ClassSmallDeltaLimit = smallDeltaLimit
	}
	if setFlags["small-ratio-req"] {
		overrides.ClassSmallRatioReq = smallRatioReq
	}
	if setFlags["invert"] {
		overrides.InvertEnabled = invertEnabled
	}
	if setFlags["ipc-socket"] {
		overrides.IPCSocketPath = ipcSocketPath
	}
	if setFlags["statews"] {
		overrides.StateWSEnabled = stateWSEnabled
	}
	if setFlags["statews-listen"] {
		overrides.StateWSListenAddr = stateWSListen
	}
	if setFlags["log-level"] {
		overrides.LogLevel = logLevelStr
	}
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	hotkeys, err := NewHotkeyTable(cfg.Hotkeys)
	if err != nil {
		logger.Error("invalid hotkey config", "error", err)
		os.Exit(1)
	}

	// Grab the input devices. Exclusive grab means the desktop stops seeing
	// them; every release path below must run on shutdown.
	var taps []*TapDevice
	for _, dev := range cfg.Input.Devices {
		tap, err := OpenTapDevice(dev)
		if err != nil {
			for _, t := range taps {
				t.Release()
			}
			logger.Error("failed to grab input device", "device", dev, "error", err,
				"tip", "run as root or add user to 'input' group")
			os.Exit(1)
		}
		logger.Info("grabbed input device", "device", dev, "continuous_source", tap.Continuous)
		taps = append(taps, tap)
	}
	defer func() {
		for _, t := range taps {
			t.Release()
		}
	}()

	// Create the virtual output device before entering the event path so a
	// grabbed device never ends up with nowhere to forward to.
	sink, err := NewUinputSink(cfg.Invert.OutputName)
	if err != nil {
		logger.Error("failed to create uinput device", "error", err,
			"tip", "check /dev/uinput permissions (udev rule or run as root)")
		os.Exit(1)
	}
	defer sink.Close()
	logger.Info("created virtual output device", "name", cfg.Invert.OutputName)

	state := NewDaemonState(cfg.ToClassifierConfig(), cfg.Invert.Enabled)

	// Shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan Event, 256)
	broadcasts := make(chan StateBroadcast, 64)
	readErr := make(chan error, 1)

	go readTapEventsEpoll(taps, events, readErr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger)
	})

	if cfg.StateWS.Enabled {
		server := NewServer(logger, events, ServerConfig{})

		mux := http.NewServeMux()
		server.Register(mux, cfg.StateWS.Path)

		httpSrv := &http.Server{
			Addr:         cfg.StateWS.ListenAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // websocket connections stay open
		}

		g.Go(func() error {
			server.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, server.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			ln, err := net.Listen("tcp", cfg.StateWS.ListenAddr)
			if err != nil {
				return fmt.Errorf("statews listen on %s: %w", cfg.StateWS.ListenAddr, err)
			}
			logger.Info("state websocket listening", "addr", cfg.StateWS.ListenAddr, "path", cfg.StateWS.Path)
			err = httpSrv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	} else {
		// Nobody consumes broadcasts; drain them so the daemon's
		// non-blocking publish never logs drops.
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-broadcasts:
				}
			}
		})
	}

	g.Go(func() error {
		runDaemon(gctx, events, sink, state, hotkeys, broadcasts, cfg.StateWS.SnapshotHz, logger)
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("input reader stopped: %w", err)
		}
	})

	logger.Debug("starting scrollflip", "version", version)
	for _, b := range hotkeys.describeBindings() {
		logger.Debug("hotkey binding", "binding", b)
	}
	logger.Info("running",
		"devices", cfg.Input.Devices,
		"ipc", cfg.IPC.SocketPath,
		"invert_enabled", cfg.Invert.Enabled,
		"statews_enabled", cfg.StateWS.Enabled,
		"hotkeys", hotkeys.Len())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}
