// Command qamrx-gateway runs the QAM receive pipeline: it reads a
// symbol stream, feeds it through qam.FrameSynchroniser, and publishes
// decoded frames over websocket and Prometheus. Structured the way the
// teacher's gateway/gateway.go lays out its flags and log setup, with
// the M17-specific relay/packet plumbing replaced by this project's
// symsource/transport/metrics stack.
package main

import (
	"encoding/hex"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/logutils"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/n1adj/qamrx/internal/capture"
	"github.com/n1adj/qamrx/internal/config"
	"github.com/n1adj/qamrx/internal/gpioind"
	"github.com/n1adj/qamrx/internal/metrics"
	"github.com/n1adj/qamrx/internal/symsource"
	"github.com/n1adj/qamrx/internal/transport"
	"github.com/n1adj/qamrx/qam"
)

var (
	configArg   = flag.String("config", "", "Path to YAML configuration file (default: built-in defaults)")
	debugArg    = flag.Bool("debug", false, "Emit debug log messages")
	inArg       = flag.String("in", "", "Override source.path from the config file")
	logDestArg  = flag.String("log", "", "Log file path (default: logs/qamrx-gateway.log)")
	metricsAddr = flag.String("metrics-addr", "", "Override metrics.listen from the config file")
	wsAddr      = flag.String("ws-addr", "", "Override transport.listen from the config file")
	captureArg  = flag.String("capture", "", "Override source.capture from the config file")
	ledChipArg  = flag.String("led-chip", "", "Override gpio.chip from the config file")
	ledLineArg  = flag.Int("led-line", -1, "Override gpio.line from the config file")
	helpArg     = flag.Bool("h", false, "Print arguments")
)

func main() {
	flag.Parse()
	if *helpArg {
		flag.Usage()
		return
	}

	cfg := config.Default()
	if *configArg != "" {
		var err error
		cfg, err = config.Load(*configArg)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}
	if *inArg != "" {
		cfg.Source.Path = *inArg
	}
	if *debugArg {
		cfg.Logs.Debug = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
	if *wsAddr != "" {
		cfg.Transport.Listen = *wsAddr
	}
	if *captureArg != "" {
		cfg.Source.Capture = *captureArg
	}
	if *ledChipArg != "" {
		cfg.GPIO.Enabled = true
		cfg.GPIO.Chip = *ledChipArg
	}
	if *ledLineArg >= 0 {
		cfg.GPIO.Enabled = true
		cfg.GPIO.Line = *ledLineArg
	}

	setupLogging(cfg.Logs)

	src, err := openSource(cfg.Source)
	if err != nil {
		log.Fatalf("Error opening symbol source: %v", err)
	}
	defer src.Close()

	sync, err := qam.New(cfg.QAM)
	if err != nil {
		log.Fatalf("Error constructing frame synchroniser: %v", err)
	}

	hub := transport.NewHub()
	http.Handle(cfg.Transport.Path, hub)
	go func() {
		log.Printf("[INFO] transport: listening on %s%s", cfg.Transport.Listen, cfg.Transport.Path)
		if err := http.ListenAndServe(cfg.Transport.Listen, nil); err != nil {
			log.Fatalf("Error serving transport: %v", err)
		}
	}()

	var mx *metrics.Receiver
	if cfg.Metrics.Enabled {
		mx = metrics.NewReceiver()
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, metrics.Handler())
		go func() {
			log.Printf("[INFO] metrics: listening on %s%s", cfg.Metrics.Listen, cfg.Metrics.Path)
			if err := http.ListenAndServe(cfg.Metrics.Listen, metricsMux); err != nil {
				log.Fatalf("Error serving metrics: %v", err)
			}
		}()
		go pollClientCount(mx, hub)
	}

	var ind *gpioind.Indicator
	if cfg.GPIO.Enabled {
		ind, err = gpioind.Open(cfg.GPIO.Chip, cfg.GPIO.Line)
		if err != nil {
			log.Printf("[ERROR] gpio: %v", err)
		} else {
			defer ind.Close()
		}
	}

	var capW *capture.Writer
	if cfg.Source.Capture != "" {
		f, err := os.Create(cfg.Source.Capture)
		if err != nil {
			log.Fatalf("Error opening capture file: %v", err)
		}
		capW, err = capture.NewWriter(f, true)
		if err != nil {
			log.Fatalf("Error starting capture: %v", err)
		}
		defer capW.Close()
	}

	run(sync, src, hub, mx, ind, capW)
}

func run(sync *qam.FrameSynchroniser, src symsource.Source, hub *transport.Hub, mx *metrics.Receiver, ind *gpioind.Indicator, capW *capture.Writer) {
	inPayload := false
	for z := range src.Symbols() {
		if capW != nil {
			if err := capW.WriteSymbol(z); err != nil {
				log.Printf("[ERROR] capture: %v", err)
			}
		}

		ev := sync.Process(z)
		switch ev.Kind {
		case qam.KindNone:
			continue
		case qam.KindPreambleFound:
			log.Printf("[DEBUG] preamble found, phase=%d conflict=%v", ev.SelectedPhase, ev.PhaseConflict)
			if mx != nil {
				mx.ObservePreambleFound(ev.PhaseConflict)
				mx.ObserveDesync(ev.DesyncBitcount)
			}
			if ind != nil {
				if err := ind.On(); err != nil {
					log.Printf("[ERROR] gpio: %v", err)
				}
			}
			inPayload = true
		case qam.KindBlockSizeErr, qam.KindPayloadErr:
			log.Printf("[INFO] frame rejected: %s", ev.Kind)
			if mx != nil {
				mx.ObserveFrame(ev.Kind.String())
			}
			if ind != nil && inPayload {
				if err := ind.Off(); err != nil {
					log.Printf("[ERROR] gpio: %v", err)
				}
				inPayload = false
			}
		case qam.KindPayloadOK:
			log.Printf("[INFO] frame decoded: %d bytes, crc=%02x err=%.3f", ev.PayloadLength, ev.CRCReceived, ev.DecodedError)
			if mx != nil {
				mx.ObserveFrame(ev.Kind.String())
				mx.ObservePayload(ev.DecodedError, ev.PayloadLength)
			}
			hub.Broadcast(transport.Frame{
				Kind:          ev.Kind.String(),
				PayloadLength: ev.PayloadLength,
				PayloadHex:    hex.EncodeToString(ev.PayloadBytes),
				CRCReceived:   ev.CRCReceived,
				CRCComputed:   ev.CRCComputed,
				DecodedError:  ev.DecodedError,
				SelectedPhase: ev.SelectedPhase,
				PhaseConflict: ev.PhaseConflict,
			})
			if ind != nil {
				if err := ind.Off(); err != nil {
					log.Printf("[ERROR] gpio: %v", err)
				}
				inPayload = false
			}
		}
	}
}

func pollClientCount(mx *metrics.Receiver, hub *transport.Hub) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		mx.SetConnectedClients(hub.ClientCount())
	}
}

func openSource(cfg config.SourceConfig) (symsource.Source, error) {
	switch cfg.Kind {
	case "file":
		return symsource.OpenFile(cfg.Path)
	case "serial":
		return symsource.OpenSerial(symsource.SerialConfig{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
		})
	default:
		return symsource.Stdin(os.Stdin), nil
	}
}

func setupLogging(cfg config.LogConfig) {
	minLogLevel := "INFO"
	if cfg.Debug {
		minLogLevel = "DEBUG"
	}
	var logWriter io.Writer = os.Stderr
	if *logDestArg != "" || cfg.Directory != "" {
		path := *logDestArg
		if path == "" {
			path = cfg.Directory + "/qamrx-gateway.log"
		}
		logWriter = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
	}

	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "ERROR"},
		MinLevel: logutils.LogLevel(minLogLevel),
		Writer:   logWriter,
	}
	log.SetOutput(filter)
	log.Print("[DEBUG] debug logging is on")
}
