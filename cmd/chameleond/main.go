package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labcam/chameleon/ccd"
	"github.com/labcam/chameleon/dc1394"
	"github.com/labcam/chameleon/generichttp"
	"github.com/labcam/chameleon/generichttp/camera"
	"github.com/labcam/chameleon/imgrec"
	"github.com/labcam/chameleon/pgrey"
	"github.com/labcam/chameleon/server/middleware/locker"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/sirupsen/logrus"

	validator "gopkg.in/go-playground/validator.v9"
	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "chameleon.yml"

	// EnvPrefix prefixes environment variables which override the config file.
	// A double underscore descends into a nested key, CHAMELEON_RECORDER__ROOT
	EnvPrefix = "CHAMELEON_"

	k   = koanf.New(".")
	log = logrus.New()
)

type recorder struct {
	// Root is the root folder to write to, recording is unavailable if empty
	Root string `koanf:"root" yaml:"root"`

	// Prefix is the filename prefix to use
	Prefix string `koanf:"prefix" yaml:"prefix"`

	// Enabled turns recording on at bootup
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

type config struct {
	Addr           string        `koanf:"addr" yaml:"addr" validate:"required"`
	Root           string        `koanf:"root" yaml:"root"`
	DeviceName     string        `koanf:"devicename" yaml:"devicename"`
	PollingPeriod  time.Duration `koanf:"pollingperiod" yaml:"pollingperiod" validate:"min=1000000"`
	CaptureBuffers int           `koanf:"capturebuffers" yaml:"capturebuffers" validate:"min=1,max=64"`
	ConnectTimeout time.Duration `koanf:"connecttimeout" yaml:"connecttimeout" validate:"min=0"`
	Mock           bool          `koanf:"mock" yaml:"mock"`
	Debug          bool          `koanf:"debug" yaml:"debug"`
	LogLevel       string        `koanf:"loglevel" yaml:"loglevel" validate:"oneof=trace debug info warn warning error"`
	Recorder       recorder      `koanf:"recorder" yaml:"recorder"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:           ":8000",
		Root:           "/",
		DeviceName:     pgrey.DefaultName,
		PollingPeriod:  pgrey.PollingPeriod,
		CaptureBuffers: dc1394.DefaultCaptureBuffers,
		ConnectTimeout: 10 * time.Second,
		LogLevel:       "info",
		Recorder:       recorder{Prefix: "cham"}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.Replace(strings.ToLower(s), "__", ".", -1)
	}), nil)
}

func loadconfig() config {
	c := config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range verrs {
				log.WithField("key", e.Namespace()).Errorf("invalid value %v", e.Value())
			}
		}
		log.Fatal("invalid configuration")
	}
	return c
}

func root() {
	str := `chameleond exposes control of Point Grey Chameleon cameras over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	chameleond <command>

Commands:
	run
	help
	mkconf
	conf
	probe
	version`
	fmt.Println(str)
}

func help() {
	str := `chameleond is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Every key may also be
set from the environment with the CHAMELEON_ prefix, for example CHAMELEON_ADDR=:9000.
Nested keys use a double underscore, CHAMELEON_RECORDER__ROOT=/data.
The command mkconf generates the configuration file with the default values.

The camera is opened through libdc1394.  If the server cannot find the camera,
run chameleond probe to list the Point Grey devices on the USB bus, and check that
the device node is readable by the user running the server.

mock: true runs the server against a simulated camera, useful for client development.

If the files and folders created by the recorder do not have the permissions you want
on linux, your umask is likely to blame.`
	fmt.Println(str)
}

func mkconf() {
	c := loadconfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadconfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("chameleond version %v\n", Version)
}

func probe() {
	devs, err := dc1394.ListUSB()
	if err != nil {
		log.Fatal(err)
	}
	if len(devs) == 0 {
		fmt.Println("no Point Grey devices found")
		return
	}
	for _, d := range devs {
		fmt.Println(d)
	}
}

func opener(cfg config) dc1394.Opener {
	if cfg.Mock {
		log.Warn("using a simulated camera")
		return dc1394.NewMock(dc1394.NewMockCamera(0x00b09d0100000001)).Opener()
	}
	devs, err := dc1394.ListUSB()
	if err != nil {
		log.WithError(err).Warn("could not scan the USB bus")
	}
	for _, d := range devs {
		log.WithField("usb", d.String()).Info("found Point Grey device")
	}
	return dc1394.New
}

// connect connects the host, retrying while the camera is still enumerating.
// It gives up when ctx is done, whatever the timeout.
func connect(ctx context.Context, h *ccd.Host, timeout time.Duration) error {
	op := func() error {
		err := h.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.WithError(err).Warn("connection attempt failed")
		}
		return err
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      timeout,
		Clock:               backoff.SystemClock}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func run() {
	cfg := loadconfig()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	h, err := ccd.NewHost(ccd.Config{
		DeviceName:    cfg.DeviceName,
		PollingPeriod: cfg.PollingPeriod,
		Debug:         cfg.Debug,
		Logger:        log,
	}, pgrey.Factory(opener(cfg), pgrey.Options{CaptureBuffers: cfg.CaptureBuffers}))
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	if err = connect(ctx, h, cfg.ConnectTimeout); err != nil {
		// the server still comes up, clients may POST /connect later
		log.WithError(err).Error("camera not connected")
	}

	var rec *imgrec.Recorder
	if cfg.Recorder.Root != "" {
		rec = imgrec.New(cfg.Recorder.Root, cfg.Recorder.Prefix, cfg.Recorder.Enabled)
	}
	w := camera.NewHTTPCamera(h, rec)
	w.Log = log
	lock := locker.New()
	lock.Log = log
	locker.Inject(w, lock)

	// clean up the submux string
	hndlrS := generichttp.SubMuxSanitize(cfg.Root)
	rootMux := chi.NewRouter()
	rootMux.Use(middleware.Logger)
	mux := chi.NewRouter()
	mux.Use(lock.Check)
	rootMux.Mount(hndlrS, mux)
	w.RT().Bind(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: rootMux}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	log.WithField("addr", cfg.Addr+hndlrS).Info("now listening for requests")
	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(err)
		stop()
	}
	<-done
	log.Info("camera released, exiting")
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "probe":
		probe()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
