package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fxamacker/cbor/v2"

	"pulsescan-go/internal/afib"
	"pulsescan-go/internal/output"
	"pulsescan-go/internal/processing"
	"pulsescan-go/internal/types"
)

func main() {
	var (
		path       = flag.String("path", "", "Path to rawlog .bin file")
		limit      = flag.Int("limit", 0, "Max number of records to replay (0 replays all)")
		outDir     = flag.String("out", "", "Directory for analysis output files (empty prints only)")
		modelPath  = flag.String("model", "", "Path to an AF model JSON file (empty uses the bundled model)")
		lowCut     = flag.Float64("low-cut", 0.7, "Bandpass low cutoff in Hz")
		highCut    = flag.Float64("high-cut", 4.0, "Bandpass high cutoff in Hz")
		windowSize = flag.Int("window-size", 256, "Analysis window length in samples")
		filterKind = flag.String("filter", processing.FilterFFT, "Bandpass implementation (fft or iir)")
		pretty     = flag.Bool("pretty", false, "Indent the printed analysis JSON")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	model := loadModel(*modelPath)

	engineCfg := processing.DefaultConfig()
	engineCfg.LowCut = *lowCut
	engineCfg.HighCut = *highCut
	engineCfg.WindowSize = *windowSize
	engineCfg.Filter = *filterKind

	processor := processing.NewProcessor(engineCfg, afib.NewDetector(model, nil))
	defer processor.Close()

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	header := make([]byte, len(output.RawLogMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("read magic: %v", err)
	}
	if string(header) != output.RawLogMagic {
		log.Fatalf("unexpected rawlog magic %q", string(header))
	}

	var (
		records      int
		samples      int
		sessions     int
		analyses     int
		decodeErrors int
		pending      int
	)

	flush := func() {
		if pending == 0 {
			return
		}
		analysis, ok := processor.AnalyzeMeasurement(context.Background())
		if !ok {
			log.Printf("skipping analysis: %d samples is less than a window of %d", pending, engineCfg.WindowSize)
			pending = 0
			processor.Reset()
			return
		}
		analyses++
		pending = 0
		processor.Reset()

		log.Printf("analysis %s: hr=%.1f bpm hrv=%.1f ms af=%.3f peaks=%d outliers=%d",
			analysis.ID, analysis.Vitals.HeartRate, analysis.Vitals.HRVCorrected,
			analysis.AF.Probability, len(analysis.Peaks), len(analysis.OutlierPeaks))

		var data []byte
		var err error
		if *pretty {
			data, err = json.MarshalIndent(analysis, "", "  ")
		} else {
			data, err = json.Marshal(analysis)
		}
		if err != nil {
			log.Fatalf("encode analysis: %v", err)
		}
		fmt.Println(string(data))

		if *outDir != "" {
			ts := output.Timestamp()
			if err := output.WriteAnalysis(*outDir, ts, analysis); err != nil {
				log.Printf("output write failed: %v", err)
			} else {
				log.Printf("wrote analysis outputs for %s", ts)
			}
		}
	}

	for {
		if *limit > 0 && records >= *limit {
			break
		}
		var meta [12]byte
		if _, err := io.ReadFull(f, meta[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			log.Fatalf("read record header: %v", err)
		}
		size := binary.LittleEndian.Uint32(meta[8:12])
		records++
		if size == 0 {
			continue
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			log.Fatalf("read payload: %v", err)
		}

		var fields map[string]any
		if err := cbor.Unmarshal(payload, &fields); err != nil {
			decodeErrors++
			continue
		}
		msgType, _ := fields["type"].(string)
		switch msgType {
		case "start":
			sessions++
			flush()
		case "end":
			flush()
		case "sample":
			sample, ok := sampleFromFields(fields)
			if !ok {
				decodeErrors++
				continue
			}
			samples++
			processor.ProcessMeasurement(sample)
			if sample.ROI {
				pending++
			}
		default:
			decodeErrors++
		}
	}
	flush()

	log.Printf("replayed %d records: samples=%d sessions=%d analyses=%d decode_errors=%d",
		records, samples, sessions, analyses, decodeErrors)
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

// sampleFromFields mirrors the ingest wire shape: channels are only
// guaranteed on frames with a usable ROI.
func sampleFromFields(fields map[string]any) (types.ColorSample, bool) {
	timestamp, ok := toFloat(fields["timestamp"])
	if !ok {
		return types.ColorSample{}, false
	}
	sample := types.ColorSample{Timestamp: timestamp, ROI: true}
	if roi, present := fields["roi"]; present {
		b, ok := roi.(bool)
		if !ok {
			return types.ColorSample{}, false
		}
		sample.ROI = b
	}
	for key, dst := range map[string]*float64{"r": &sample.R, "g": &sample.G, "b": &sample.B} {
		raw, present := fields[key]
		if !present {
			if sample.ROI {
				return types.ColorSample{}, false
			}
			continue
		}
		value, ok := toFloat(raw)
		if !ok {
			return types.ColorSample{}, false
		}
		*dst = value
	}
	return sample, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
