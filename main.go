package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"dictate/audio"
	"dictate/beep"
	"dictate/caret"
	"dictate/config"
	"dictate/doctor"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/log"
	"dictate/mode"
	"dictate/overlay"
	"dictate/processor"
	"dictate/session"
	"dictate/shutdown"
	"dictate/transcriber"
)

var version = "dev"

// locateTimeout bounds the caret query made on every press.
const locateTimeout = 200 * time.Millisecond

type options struct {
	configPath string
	setup      bool
	device     string
	trigger    string
	lang       string
	logPath    string
	headless   bool
	noBeep     bool
	doctor     bool
	version    bool
	profile    string
	test       string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("dictate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "settings file (default: OS config dir/dictate/config.toml)")
	fs.BoolVar(&o.setup, "setup", false, "pick the microphone and save it to the settings file")
	fs.StringVar(&o.device, "device", "", "use the named microphone for this run")
	fs.StringVar(&o.trigger, "trigger", "", "trigger key: caps_lock, right_alt or f1")
	fs.StringVar(&o.lang, "lang", "", "transcription language code (e.g. en, de). Empty or auto = detect")
	fs.StringVar(&o.logPath, "logpath", "", "log directory (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&o.headless, "headless", false, "print state changes instead of running the terminal overlay")
	fs.BoolVar(&o.noBeep, "nobeep", false, "disable audible cues")
	fs.BoolVar(&o.doctor, "doctor", false, "run interactive diagnostics and exit")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	fs.StringVar(&o.profile, "profile", "", "serve pprof on this address (e.g. localhost:6060)")
	fs.StringVar(&o.test, "test", "", "headless test mode: feed this WAV as the microphone, drive from stdin")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// loadConfig reads the settings file and applies the one-run flag
// overrides on top.
func loadConfig(o options) (config.Config, string, error) {
	path := o.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Config{}, "", err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	if o.device != "" {
		cfg.Device = o.device
	}
	if o.trigger != "" {
		cfg.TriggerKey = o.trigger
	}
	if o.lang != "" {
		cfg.Language = o.lang
	}
	if o.logPath != "" {
		cfg.LogPath = o.logPath
	}
	return cfg, path, cfg.Validate()
}

func run() int {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Printf("dictate %s\n", version)
		return 0
	}

	cfg, path, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logDir, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logDir)
	log.InitCrash()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if o.profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", o.profile)
			if err := http.ListenAndServe(o.profile, nil); err != nil {
				log.Warnf("pprof server: %v", err)
			}
		}()
	}

	if o.noBeep || o.test != "" {
		beep.Disable()
	} else {
		beep.Init()
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	switch {
	case o.doctor:
		return runDoctor(ctx, cfg)
	case o.test != "":
		if err := runTestMode(ctx, cfg, o.test, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := runLive(ctx, cfg, path, o); err != nil {
		log.Errorf("fatal: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// services builds the transcription and processing clients for the
// selected provider. Without credentials both report
// ErrMissingCredentials; the controller rejects sessions before calling
// them.
func services(cfg config.Config) (*transcriber.Service, session.TextProcessingService, error) {
	if err := cfg.Credentials(); err != nil {
		return nil, nil, err
	}
	t, err := transcriber.New(cfg.Provider, cfg.APIKey())
	if err != nil {
		return nil, nil, err
	}
	stt := transcriber.NewService(t, "flac")
	stt.SetLanguage(cfg.Language)

	llm, err := processor.New(cfg.Provider, cfg.APIKey())
	if err != nil {
		return nil, nil, err
	}
	return stt, llm, nil
}

type unavailable struct{ err error }

func (u unavailable) Transcribe(context.Context, audio.Recording) (string, error) {
	return "", u.err
}

func (u unavailable) Process(context.Context, string, mode.Mode) (string, error) {
	return "", u.err
}

func runLive(ctx context.Context, cfg config.Config, path string, o options) error {
	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer actx.Close()

	if o.setup {
		dev, err := audio.SelectDevice(actx, cfg.Device)
		if err != nil {
			return err
		}
		cfg.Device = dev.Name
		if err := config.Update(path, func(c *config.Config) { c.Device = dev.Name }); err != nil {
			log.Warnf("could not save device: %v", err)
		} else {
			fmt.Printf("Saved microphone %q to %s\n", dev.Name, path)
		}
	}

	device, err := audio.FindDevice(actx, cfg.Device)
	if err != nil {
		log.Warnf("%v, using system default", err)
		device = nil
	}
	capturer := audio.NewCapturer(actx, device)
	defer capturer.Close()

	grabber, err := hotkey.NewGrabber()
	if err != nil {
		log.Warnf("overlay keys: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: Tab, Enter and Esc will only work in the overlay window: %v\n", err)
	} else {
		defer grabber.Close()
	}

	listener := hotkey.NewListener(hotkey.New)
	if err := listener.Start(cfg.Trigger()); err != nil {
		return fmt.Errorf("trigger key: %w", err)
	}
	defer listener.Close()

	kb := inject.NewKeyboard()
	defer kb.Close()
	locator := caret.Fallback(caret.New(), locateTimeout)
	opts := inject.DefaultOptions()
	opts.Strategy, _ = inject.ParseStrategy(cfg.InjectStrategy)
	opts.Locator = locator
	injector := inject.New(kb, inject.SystemClipboard{}, opts)

	store := config.NewStore(cfg)
	deps := session.Deps{
		Edges:    listener.Edges(),
		Capturer: capturer,
		Locator:  locator,
		Injector: injector,
		Settings: store,
	}
	provider := cfg.Provider
	stt, llm, err := services(cfg)
	switch {
	case errors.Is(err, config.ErrMissingCredentials):
		fmt.Fprintf(os.Stderr, "Warning: %v; dictation will fail until a key is set\n", err)
		deps.Transcriber = unavailable{err}
		deps.Processor = unavailable{err}
	case err != nil:
		return err
	default:
		go stt.Warm()
		deps.Transcriber = stt
		deps.Processor = llm
		provider = stt.Name()
	}

	var ctrl *session.Controller
	keys := overlay.KeysFunc(func(k session.Key) { ctrl.Key(k) })
	fanout := overlay.Fanout{}
	if !o.noBeep {
		fanout = append(fanout, overlay.NewCue())
	}
	var grab *overlay.Grab
	if grabber != nil {
		grab = overlay.NewGrab(grabber, keys)
		fanout = append(fanout, grab)
	}
	var tui *overlay.TUI
	if o.headless {
		fanout = append(fanout, overlay.NewLog(os.Stdout))
	} else {
		tui = overlay.NewTUI(keys, cfg.Trigger().Label(), version)
		fanout = append(fanout, tui)
	}
	deps.Presenter = fanout
	ctrl = session.New(deps)

	log.AppStart(provider, cfg.Trigger().String(), capturer.DeviceName())
	defer func() { log.AppEnd(ctrl.Sessions()) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	if grab != nil {
		go grab.Run(ctx)
	}
	go watchReloads(ctx, shutdown.Reloads(ctx), o, store, listener, stt)

	if tui == nil {
		fmt.Printf("dictate %s: hold %s to dictate, Ctrl+C to quit\n", version, cfg.Trigger().Label())
		return <-done
	}
	go func() {
		<-ctx.Done()
		tui.Quit()
	}()
	err = tui.Run()
	cancel()
	if rerr := <-done; err == nil {
		err = rerr
	}
	return err
}

type triggerSwapper interface {
	Reconfigure(t hotkey.Trigger) error
}

// applyReload installs cfg as the settings for the next session and moves
// the trigger to cfg's key.
func applyReload(cfg config.Config, store *config.Store, trig triggerSwapper) error {
	store.Set(cfg)
	if err := trig.Reconfigure(cfg.Trigger()); err != nil {
		return fmt.Errorf("trigger key: %w", err)
	}
	return nil
}

// watchReloads re-reads the settings file on every hangup signal. Provider
// and key changes take effect on restart.
func watchReloads(ctx context.Context, reloads <-chan struct{}, o options, store *config.Store, trig triggerSwapper, stt *transcriber.Service) {
	for {
		select {
		case <-reloads:
		case <-ctx.Done():
			return
		}
		cfg, _, err := loadConfig(o)
		if err != nil {
			log.Warnf("reload: %v", err)
			continue
		}
		prev := store.Snapshot()
		if cfg.Provider != prev.Provider || cfg.APIKey() != prev.APIKey() {
			log.Warn("reload: provider or API key changed, restart to apply")
		}
		if err := applyReload(cfg, store, trig); err != nil {
			log.Warnf("reload: %v", err)
		}
		if stt != nil {
			stt.SetLanguage(cfg.Language)
		}
		log.Infof("reload: settings applied, trigger %s", cfg.Trigger().Label())
	}
}

func runDoctor(ctx context.Context, cfg config.Config) int {
	env := &doctor.Env{
		In:       os.Stdin,
		Out:      os.Stdout,
		Config:   cfg,
		Diagnose: hotkey.Diagnose,
		Hotkeys:  hotkey.New,
	}
	if actx, err := audio.NewContext(); err != nil {
		fmt.Printf("Warning: audio unavailable: %v\n", err)
	} else {
		defer actx.Close()
		env.Audio = actx
	}
	kb := inject.NewKeyboard()
	defer kb.Close()
	env.Keyboard = kb
	if stt, llm, err := services(cfg); err == nil {
		env.Transcriber = stt
		env.Processor = llm
	}
	return doctor.Run(ctx, env)
}
