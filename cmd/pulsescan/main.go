package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"pulsescan-go/internal/afib"
	"pulsescan-go/internal/config"
	"pulsescan-go/internal/emitter"
	"pulsescan-go/internal/ingest"
	"pulsescan-go/internal/output"
	"pulsescan-go/internal/processing"
	"pulsescan-go/internal/remote"
	"pulsescan-go/internal/server"
	"pulsescan-go/internal/simulator"
	"pulsescan-go/internal/tracker"
	"pulsescan-go/internal/types"
)

type metrics struct {
	rawMessages      atomic.Uint64
	sampleMessages   atomic.Uint64
	sessionMessages  atomic.Uint64
	samplesProcessed atomic.Uint64
	samplesSkipped   atomic.Uint64
	feedBroadcast    atomic.Uint64
	analysesDone     atomic.Uint64
	analysesShort    atomic.Uint64
	outputWriteOK    atomic.Uint64
	outputWriteError atomic.Uint64
	metadataWriteErr atomic.Uint64
	processCount     atomic.Uint64
	processNanos     atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"raw_messages_total":       m.rawMessages.Load(),
		"sample_messages_total":    m.sampleMessages.Load(),
		"session_messages_total":   m.sessionMessages.Load(),
		"samples_processed_total":  m.samplesProcessed.Load(),
		"samples_skipped_total":    m.samplesSkipped.Load(),
		"feed_broadcast_total":     m.feedBroadcast.Load(),
		"analyses_done_total":      m.analysesDone.Load(),
		"analyses_short_total":     m.analysesShort.Load(),
		"output_write_ok_total":    m.outputWriteOK.Load(),
		"output_write_err_total":   m.outputWriteError.Load(),
		"metadata_write_err_total": m.metadataWriteErr.Load(),
		"process_total":            m.processCount.Load(),
		"process_nanos_total":      m.processNanos.Load(),
	}
}

func main() {
	var (
		configPath      = flag.String("config", "", "Path to a YAML config file")
		port            = flag.Int("port", 8888, "HTTP port for the web UI")
		endpoint        = flag.String("endpoint", "tcp://localhost:5550", "ZMQ endpoint of the camera frontend")
		mode            = flag.String("mode", "live", "Default session mode (live or measurement)")
		lowCut          = flag.Float64("low-cut", 0.7, "Bandpass low cutoff in Hz")
		highCut         = flag.Float64("high-cut", 4.0, "Bandpass high cutoff in Hz")
		windowSize      = flag.Int("window-size", 256, "Analysis window length in samples")
		filterKind      = flag.String("filter", processing.FilterFFT, "Bandpass implementation (fft or iir)")
		feedRate        = flag.Int("feed-rate-ms", 250, "Websocket feed interval in milliseconds")
		outputDir       = flag.String("output-dir", "output", "Directory for analysis output files")
		rawLogEnabled   = flag.Bool("raw-log", false, "Write raw CBOR messages to disk")
		rawLogDir       = flag.String("raw-log-dir", "rawlog", "Directory for raw ingest logs")
		modelPath       = flag.String("model", "", "Path to an AF model JSON file (empty uses the bundled model)")
		trackerURL      = flag.String("tracker-url", "", "Base URL of the face tracker sidecar")
		mqttBroker      = flag.String("mqtt-broker", "", "MQTT broker URL for vitals publishing")
		natsURL         = flag.String("nats-url", "", "NATS server URL for remote AF scoring")
		debug           = flag.Bool("debug", false, "Run with simulated data")
		debugPulseRate  = flag.Float64("debug-pulse-rate", 72.0, "Simulated pulse rate (beats/min)")
		debugJitter     = flag.Float64("debug-jitter", 0.03, "Simulated beat-to-beat jitter fraction")
		debugSessionSec = flag.Float64("debug-session-sec", 45.0, "Simulated measurement session length in seconds")
		ingestLogEvery  = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
		ingestFallback  = flag.Bool("ingest-fallback", true, "Fall back to simulator when ingest fails")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "endpoint":
			cfg.Endpoint = *endpoint
		case "mode":
			cfg.Mode = *mode
		case "low-cut":
			cfg.LowCut = *lowCut
		case "high-cut":
			cfg.HighCut = *highCut
		case "window-size":
			cfg.WindowSize = *windowSize
		case "filter":
			cfg.Filter = *filterKind
		case "feed-rate-ms":
			cfg.FeedRateMs = *feedRate
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "raw-log":
			cfg.RawLogEnabled = *rawLogEnabled
		case "raw-log-dir":
			cfg.RawLogDir = *rawLogDir
		case "model":
			cfg.ModelPath = *modelPath
		case "tracker-url":
			cfg.TrackerURL = *trackerURL
		case "mqtt-broker":
			cfg.MQTTBroker = *mqttBroker
		case "nats-url":
			cfg.NATSURL = *natsURL
		case "debug":
			cfg.Debug = *debug
		case "debug-pulse-rate":
			cfg.DebugPulseRate = *debugPulseRate
		case "debug-jitter":
			cfg.DebugJitter = *debugJitter
		case "debug-session-sec":
			cfg.DebugSessionSec = *debugSessionSec
		case "ingest-log-every":
			cfg.IngestLogEvery = *ingestLogEvery
		case "ingest-fallback":
			cfg.IngestFallback = *ingestFallback
		}
	})
	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := loadModel(cfg.ModelPath)

	var scorer *remote.Scorer
	if cfg.NATSURL != "" {
		scorer, err = remote.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Printf("remote AF scoring unavailable: %v", err)
			scorer = nil
		} else {
			log.Printf("remote AF scoring via %s on %q", cfg.NATSURL, cfg.NATSSubject)
			defer scorer.Close()
		}
	}
	detector := afib.NewDetector(model, nil)
	if scorer != nil {
		detector = afib.NewDetector(model, scorer)
	}

	processor := processing.NewProcessor(cfg.Engine(), detector)
	defer processor.Close()

	var mqtt *emitter.Emitter
	if cfg.MQTTBroker != "" {
		mqtt, err = emitter.Connect(emitter.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: "pulsescan-daemon",
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Prefix:   cfg.MQTTPrefix,
		})
		if err != nil {
			log.Printf("mqtt unavailable: %v", err)
			mqtt = nil
		} else {
			defer mqtt.Close()
		}
	}

	var rawMessages <-chan types.RawMessage
	if cfg.Debug {
		rawMessages = simulator.Stream(ctx, simulator.Options{
			Mode:           cfg.Mode,
			PulseRate:      cfg.DebugPulseRate,
			Jitter:         cfg.DebugJitter,
			SessionSeconds: cfg.DebugSessionSec,
		})
	} else {
		out := make(chan types.RawMessage, 128)
		rawMessages = out
		var recorder ingest.RawRecorder
		if cfg.RawLogEnabled {
			writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_cbor")
			if err != nil {
				log.Fatalf("failed to start raw log: %v", err)
			}
			log.Printf("recording raw ingest to %s", writer.Path())
			recorder = writer
			go func() {
				<-ctx.Done()
				if err := writer.Close(); err != nil {
					log.Printf("raw log close failed: %v", err)
				}
			}()
		}
		go func() {
			defer close(out)
			var ingestCancel context.CancelFunc
			var ingestCh <-chan types.RawMessage
			startIngest := func() {
				if ingestCancel != nil {
					ingestCancel()
				}
				ingestCtx, cancel := context.WithCancel(ctx)
				ingestCancel = cancel
				samples, err := ingest.StreamWithLogEveryAndRecorder(ingestCtx, cfg.Endpoint, cfg.IngestLogEvery, recorder)
				if err != nil {
					if cfg.IngestFallback {
						log.Printf("failed to start ingest: %v; falling back to simulator", err)
						ingestCh = simulator.Stream(ingestCtx, simulator.Options{
							Mode:           cfg.Mode,
							PulseRate:      cfg.DebugPulseRate,
							Jitter:         cfg.DebugJitter,
							SessionSeconds: cfg.DebugSessionSec,
						})
					} else {
						log.Fatalf("failed to start ingest: %v", err)
					}
				} else {
					ingestCh = samples
				}
			}
			startIngest()
			for {
				select {
				case <-ctx.Done():
					if ingestCancel != nil {
						ingestCancel()
					}
					return
				case msg, ok := <-ingestCh:
					if !ok {
						startIngest()
						continue
					}
					select {
					case <-ctx.Done():
						return
					case out <- msg:
					}
				}
			}
		}()
	}

	log.Printf("Starting web UI at http://localhost:%d\n", cfg.Port)

	uiMessages := make(chan any, 16)
	var metrics metrics
	var statusMu sync.Mutex
	status := map[string]any{
		"source":      "stream",
		"tracker":     "unknown",
		"writer":      "idle",
		"last_sample": "",
		"last_write":  "",
		"last_ingest": "",
	}
	if cfg.Debug {
		status["source"] = "simulator"
	}

	var sessionMu sync.Mutex
	sessionMode := cfg.Mode
	sessionID := ""
	samplesReceived := 0
	runTimestamp := ""

	if cfg.TrackerURL != "" && !cfg.Debug {
		interval := time.Duration(cfg.TrackerPollMs) * time.Millisecond
		go tracker.Poll(ctx, cfg.TrackerURL, interval, func(update tracker.Status) {
			statusMu.Lock()
			status["tracker"] = update.State
			status["tracker_fps"] = update.FPS
			status["subject_present"] = update.SubjectPresent
			statusMu.Unlock()
		})
	}

	go func() {
		for msg := range rawMessages {
			metrics.rawMessages.Add(1)
			statusMu.Lock()
			status["last_ingest"] = time.Now().Format(time.RFC3339)
			statusMu.Unlock()
			switch msg.Type {
			case "start":
				metrics.sessionMessages.Add(1)
				nextMode := msg.Mode
				if nextMode != "live" && nextMode != "measurement" {
					nextMode = cfg.Mode
				}
				processor.Reset()
				ts := output.Timestamp()
				sessionMu.Lock()
				sessionMode = nextMode
				sessionID = msg.SessionID
				samplesReceived = 0
				runTimestamp = ts
				sessionMu.Unlock()
				log.Printf("session %s started in %s mode", msg.SessionID, nextMode)
				meta := map[string]any{"session_id": msg.SessionID, "mode": nextMode}
				if err := output.WriteMetadata(cfg.OutputDir, ts, "start", meta); err != nil {
					metrics.metadataWriteErr.Add(1)
					log.Printf("metadata write failed: %v", err)
				}
			case "end":
				metrics.sessionMessages.Add(1)
				sessionMu.Lock()
				endedMode := sessionMode
				endedID := sessionID
				ts := runTimestamp
				received := samplesReceived
				runTimestamp = ""
				sessionMu.Unlock()
				if ts == "" {
					ts = output.Timestamp()
				}
				log.Printf("session %s ended after %d samples", endedID, received)
				if endedMode == "measurement" {
					finishMeasurement(ctx, &metrics, processor, mqtt, uiMessages, cfg.OutputDir, ts, &statusMu, status)
				}
				meta := map[string]any{"session_id": endedID, "mode": endedMode, "samples": received}
				if err := output.WriteMetadata(cfg.OutputDir, ts, "end", meta); err != nil {
					metrics.metadataWriteErr.Add(1)
					log.Printf("metadata write failed: %v", err)
				}
			case "sample":
				metrics.sampleMessages.Add(1)
				sessionMu.Lock()
				activeMode := sessionMode
				samplesReceived++
				sessionMu.Unlock()
				start := time.Now()
				if activeMode == "measurement" {
					processor.ProcessMeasurement(msg.Sample)
				} else {
					processor.Process(msg.Sample)
				}
				metrics.processCount.Add(1)
				metrics.processNanos.Add(uint64(time.Since(start).Nanoseconds()))
				if msg.Sample.ROI {
					metrics.samplesProcessed.Add(1)
					statusMu.Lock()
					status["last_sample"] = time.Now().Format(time.RFC3339)
					statusMu.Unlock()
				} else {
					metrics.samplesSkipped.Add(1)
				}
			}
		}
	}()

	go func() {
		interval := time.Duration(cfg.FeedRateMs) * time.Millisecond
		if interval <= 0 {
			interval = 250 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if samples := processor.WaveformSnapshot(); len(samples) > 0 {
					select {
					case uiMessages <- types.NewWaveformEvent(samples):
						metrics.feedBroadcast.Add(1)
					default:
					}
				}
				if vitals, ok := processor.Vitals(); ok {
					select {
					case uiMessages <- types.NewVitalsEvent(vitals):
						metrics.feedBroadcast.Add(1)
					default:
					}
					if mqtt != nil {
						_ = mqtt.PublishVitals(vitals)
					}
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := metrics.snapshot()
				log.Printf("ingest stats: raw=%v samples=%v sessions=%v decode_failures=%v",
					snapshot["raw_messages_total"],
					snapshot["sample_messages_total"],
					snapshot["session_messages_total"],
					ingest.DecodeFailures(),
				)
			}
		}
	}()

	statusFn := func() map[string]any {
		statusMu.Lock()
		copy := map[string]any{}
		for k, v := range status {
			copy[k] = v
		}
		statusMu.Unlock()
		metricsPayload := metrics.snapshot()
		metricsPayload["ingest_decode_failures_total"] = ingest.DecodeFailures()
		decodeCount, decodeNanos := ingest.DecodeTiming()
		metricsPayload["ingest_decode_total"] = decodeCount
		metricsPayload["ingest_decode_nanos_total"] = decodeNanos
		if mqtt != nil {
			for k, v := range mqtt.Stats() {
				metricsPayload[k] = v
			}
		}
		copy["metrics"] = metricsPayload
		sessionMu.Lock()
		copy["session_id"] = sessionID
		copy["session_mode"] = sessionMode
		copy["samples_received"] = samplesReceived
		sessionMu.Unlock()
		copy["engine"] = processor.Mode()
		return copy
	}

	snapshotFn := func() any {
		waveform := processor.WaveformSnapshot()
		analysis := processor.Analysis()
		var vitals *types.Vitals
		if v, ok := processor.Vitals(); ok {
			vitals = &v
		}
		if len(waveform) == 0 && vitals == nil && analysis == nil {
			return nil
		}
		return types.NewSnapshotEvent(waveform, vitals, analysis)
	}

	configFn := func() map[string]any {
		sessionMu.Lock()
		activeMode := sessionMode
		sessionMu.Unlock()
		return map[string]any{
			"type":             "config",
			"port":             cfg.Port,
			"endpoint":         cfg.Endpoint,
			"mode":             activeMode,
			"low_cut_hz":       cfg.LowCut,
			"high_cut_hz":      cfg.HighCut,
			"window_size":      cfg.WindowSize,
			"waveform_seconds": cfg.WaveformSeconds,
			"filter":           cfg.Filter,
			"debug":            cfg.Debug,
		}
	}

	modeFn := func(requested string) error {
		if requested != "live" && requested != "measurement" {
			return fmt.Errorf("unknown mode %q", requested)
		}
		processor.Reset()
		sessionMu.Lock()
		sessionMode = requested
		sessionID = ""
		samplesReceived = 0
		runTimestamp = ""
		sessionMu.Unlock()
		log.Printf("mode switched to %s, engine reset", requested)
		return nil
	}

	if err := server.Run(ctx, cfg, uiMessages, statusFn, snapshotFn, configFn, modeFn); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

// loadModel degrades to a nil model on a missing or malformed artifact;
// AF then scores as unavailable.
func loadModel(path string) *afib.Model {
	var model *afib.Model
	var err error
	if path != "" {
		model, err = afib.LoadModel(path)
	} else {
		model, err = afib.BundledModel()
	}
	if err != nil {
		log.Printf("AF model unavailable: %v", err)
		return nil
	}
	return model
}

// finishMeasurement runs the deferred full-session analysis and fans the
// result out to disk, MQTT and the websocket feed.
func finishMeasurement(ctx context.Context, metrics *metrics, processor *processing.Processor, mqtt *emitter.Emitter, uiMessages chan any, outputDir, runTimestamp string, statusMu *sync.Mutex, status map[string]any) {
	analysis, ok := processor.AnalyzeMeasurement(ctx)
	if !ok {
		metrics.analysesShort.Add(1)
		log.Printf("measurement ended before a full window accumulated, skipping analysis")
		return
	}
	metrics.analysesDone.Add(1)
	log.Printf("analysis %s: hr=%.1f bpm hrv=%.1f ms af=%.3f peaks=%d outliers=%d",
		analysis.ID, analysis.Vitals.HeartRate, analysis.Vitals.HRVCorrected,
		analysis.AF.Probability, len(analysis.Peaks), len(analysis.OutlierPeaks))

	statusMu.Lock()
	status["writer"] = "writing"
	statusMu.Unlock()
	if err := output.WriteAnalysis(outputDir, runTimestamp, analysis); err != nil {
		metrics.outputWriteError.Add(1)
		log.Printf("output write failed: %v", err)
		statusMu.Lock()
		status["writer"] = "error"
		statusMu.Unlock()
	} else {
		metrics.outputWriteOK.Add(1)
		log.Printf("wrote analysis outputs for %s", runTimestamp)
		statusMu.Lock()
		status["writer"] = "ok"
		status["last_write"] = time.Now().Format(time.RFC3339)
		statusMu.Unlock()
	}

	if mqtt != nil {
		if err := mqtt.PublishAnalysis(analysis); err != nil {
			log.Printf("mqtt analysis publish failed: %v", err)
		}
	}
	select {
	case uiMessages <- types.NewAnalysisEvent(*analysis):
	default:
	}
}
