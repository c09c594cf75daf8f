package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/ddsroute/perf"
	"github.com/encodeous/ddsroute/state"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

func setupDebugging(log *slog.Logger, addr string) {
	if addr == "" {
		return
	}
	go func() {
		// expvar and /debug/metrics are served from the default mux
		log.Error("debug server stopped", "error", http.ListenAndServe(addr, nil))
	}()
}

// Bootstrap loads the config at configPath and runs the router until it is stopped
func Bootstrap(configPath, logPath, debugAddr string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg, err := state.ReadLocalConfig(configPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	if err := state.NodeConfigValidator(cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return Start(*cfg, level, debugAddr)
}

// NewLogger builds the console logger, also writing to cfg.LogPath when it is set
func NewLogger(cfg state.LocalCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: cfg.Id,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

func Start(cfg state.LocalCfg, logLevel slog.Level, debugAddr string) error {
	logger, err := NewLogger(cfg, logLevel)
	if err != nil {
		return err
	}
	setupDebugging(logger, debugAddr)

	s, dispatch, err := Setup(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	s.Log.Info("ddsroute has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-s.Context.Done():
		}
	}()

	return MainLoop(s, dispatch)
}

// Setup creates the router state and initializes every module. The caller must run MainLoop with
// the returned channel.
func Setup(ctx context.Context, cfg state.LocalCfg, logger *slog.Logger) (*state.State, chan func(*state.State) error, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	dispatch := make(chan func(*state.State) error, 128)

	ports, err := state.NewPortTable(cfg.Ports)
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	s := &state.State{
		Modules: make(map[string]state.NyModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			LocalCfg:        cfg,
			Ports:           ports,
			Log:             logger,
		},
	}

	s.Log.Info("init modules")
	err = initModules(s)
	if err != nil {
		Stop(s)
		return nil, nil, err
	}
	s.Log.Info("init modules complete")
	return s, dispatch, nil
}

func initModules(s *state.State) error {
	modules := []state.NyModule{
		&RouterTrace{},
		&Transport{},
		&IpcServer{},
	}

	for _, module := range modules {
		if err := module.Init(s); err != nil {
			return fmt.Errorf("failed to init %T: %w", module, err)
		}
		s.Modules[moduleName(module)] = module
		s.Order = append(s.Order, moduleName(module))
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*4 {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

// Stop cleans up modules in reverse init order
func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for i := len(s.Order) - 1; i >= 0; i-- {
		name := s.Order[i]
		err := s.Modules[name].Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", name, "error", err)
		}
	}
	s.Log.Info("stopped")
}
