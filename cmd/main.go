// SendKeys - keyboard event bridge
// Presses and releases virtual keys and drives NUMLOCK through the OS input API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sendkeys/internal/api"
	"sendkeys/internal/config"
	"sendkeys/internal/hotkey"
	"sendkeys/internal/input"
	"sendkeys/internal/network"
	"sendkeys/internal/osutils"
	"sendkeys/internal/protocol"
	"sendkeys/internal/tray"
)

var (
	version        = "0.3.0"
	showVer        = flag.Bool("version", false, "Show version")
	configPath     = flag.String("config", "", "Path to config.json (default: per-user config dir)")
	serve          = flag.Bool("serve", false, "Run the HTTP/WebSocket bridge server")
	runTrayMode    = flag.Bool("tray", false, "Run the system tray (and the server if enabled)")
	remote         = flag.String("remote", "", "Send the call to a bridge server at host:port")
	token          = flag.String("token", "", "Bearer token for -remote (default: api.token from config)")
	legacyTruncate = flag.Bool("legacy-truncate", false, "Truncate out-of-range key codes to 8 bits instead of rejecting them")
	debug          = flag.Bool("debug", false, "Enable debug logging")
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage:\n")
	fmt.Fprintf(out, "  sendkeys [flags] key_down <vk>\n")
	fmt.Fprintf(out, "  sendkeys [flags] key_up <vk>\n")
	fmt.Fprintf(out, "  sendkeys [flags] toggle_numlock <0|1>\n")
	fmt.Fprintf(out, "  sendkeys -serve | -tray\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Printf("sendkeys version %s\n", version)
		return
	}

	cfgMgr, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := cfgMgr.Get()
	if *legacyTruncate {
		cfg.Input.LegacyTruncate = true
	}
	if *debug {
		cfg.Log.Debug = true
	}

	switch {
	case *serve:
		runServer(cfg)
	case *runTrayMode:
		runTray(cfg)
	default:
		os.Exit(runCall(cfg, flag.Args(), os.Stdout))
	}
}

func loadConfig() (*config.Manager, error) {
	var cfgMgr *config.Manager
	if *configPath != "" {
		cfgMgr = config.NewManagerAt(*configPath)
	} else {
		var err error
		if cfgMgr, err = config.NewManager(); err != nil {
			return nil, err
		}
	}

	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config from %s: %v", cfgMgr.Path(), err)
	}
	return cfgMgr, nil
}

func newBridge(cfg *config.Config) *input.Bridge {
	if warning := osutils.InjectionWarning(); warning != "" {
		log.Printf("Warning: %s", warning)
	}
	return input.NewSystemBridge(input.Options{
		LegacyTruncate: cfg.Input.LegacyTruncate,
		Debug:          cfg.Log.Debug,
	})
}

// runCall executes one operation given on the command line and returns the exit code
func runCall(cfg *config.Config, args []string, out io.Writer) int {
	op, arg, err := parseCall(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sendkeys: %v\n", err)
		if len(args) == 0 {
			flag.Usage()
		}
		return exitArgument
	}

	var ctrl input.Controller
	if *remote != "" {
		authToken := *token
		if authToken == "" {
			authToken = cfg.API.Token
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := network.Dial(ctx, *remote, authToken)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "sendkeys: %v\n", err)
			return exitFailure
		}
		defer client.Close()
		ctrl = client
	} else {
		ctrl = newBridge(cfg)
	}

	if err := execute(ctrl, op, arg, out); err != nil {
		fmt.Fprintf(os.Stderr, "sendkeys: %v\n", err)
		if protocol.IsArgumentError(err) || errors.Is(err, input.ErrKeyCodeRange) {
			return exitArgument
		}
		return exitFailure
	}
	return exitOK
}

// parseCall validates the operation name and its single integer argument
func parseCall(args []string) (protocol.Op, int, error) {
	if len(args) == 0 {
		return "", 0, &protocol.ArgumentError{Reason: "missing operation"}
	}

	op := protocol.Op(args[0])
	if !op.Valid() {
		return "", 0, &protocol.ArgumentError{Reason: fmt.Sprintf("unknown operation %q", args[0])}
	}
	if len(args) != 2 {
		return "", 0, &protocol.ArgumentError{Op: op, Reason: fmt.Sprintf("takes exactly 1 argument (%d given)", len(args)-1)}
	}

	arg, err := protocol.ParseIntString(op, args[1])
	if err != nil {
		return "", 0, err
	}
	return op, arg, nil
}

func execute(ctrl input.Controller, op protocol.Op, arg int, out io.Writer) error {
	switch op {
	case protocol.OpKeyDown:
		return ctrl.KeyDown(arg)
	case protocol.OpKeyUp:
		return ctrl.KeyUp(arg)
	case protocol.OpToggleNumLock:
		wasOn, err := ctrl.ToggleNumLock(arg != 0)
		if err != nil {
			return err
		}
		if wasOn {
			fmt.Fprintln(out, 1)
		} else {
			fmt.Fprintln(out, 0)
		}
		return nil
	}
	return &protocol.ArgumentError{Reason: fmt.Sprintf("unknown operation %q", op)}
}

func runServer(cfg *config.Config) {
	log.Println("SendKeys bridge starting...")

	srv := api.NewServer(newBridge(cfg), cfg.API, cfg.Log.Debug)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.API.ListenAddr, cfg.API.Port)
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("Shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Fatalf("API server failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("API shutdown error: %v", err)
	}
}

func runTray(cfg *config.Config) {
	bridge := newBridge(cfg)

	var srv *api.Server
	if cfg.API.Enabled {
		srv = api.NewServer(bridge, cfg.API, cfg.Log.Debug)
		go func() {
			if err := srv.Start(cfg.API.ListenAddr, cfg.API.Port); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	t := tray.New("SendKeys - keyboard bridge")
	setNumLock := t.AddNumLockItems(bridge)

	hkMgr := hotkey.NewManager()
	registerHotkey(hkMgr, cfg.Hotkeys.NumLockOn, func() { setNumLock(true) })
	registerHotkey(hkMgr, cfg.Hotkeys.NumLockOff, func() { setNumLock(false) })
	if cfg.Hotkeys.NumLockOn != "" || cfg.Hotkeys.NumLockOff != "" {
		if err := hkMgr.Start(); err != nil {
			log.Printf("Warning: failed to start hotkey engine: %v", err)
		}
	}

	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("SendKeys tray running. Press Ctrl+C to stop.")
	t.Run()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func registerHotkey(hkMgr *hotkey.Manager, hk string, callback func()) {
	if hk == "" {
		return
	}
	if _, err := hkMgr.Register(hk, callback); err != nil {
		log.Printf("Warning: failed to register hotkey %q: %v", hk, err)
		return
	}
	log.Printf("Registered hotkey: %s", hk)
}
