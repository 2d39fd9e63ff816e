// Command modsim runs one modulation simulation from the command line and
// prints its metrics, optionally exporting CSV and playing the waveform.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/jeongseonghan/modulation-studio/internal/audio"
	"github.com/jeongseonghan/modulation-studio/internal/config"
	"github.com/jeongseonghan/modulation-studio/internal/export"
	"github.com/jeongseonghan/modulation-studio/internal/modem"
	"github.com/jeongseonghan/modulation-studio/internal/preset"
	"github.com/jeongseonghan/modulation-studio/internal/sim"
)

type flags struct {
	configPath  string
	presetName  string
	presetsFile string
	savePreset  string
	scheme      string
	compare     string
	baseband    string
	carrier     float64
	bitRate     float64
	duration    float64
	snr         float64
	fading      float64
	rxOffset    float64
	rxPhase     float64
	pll         bool
	timing      bool
	seed        uint32
	csvPath     string
	symbolsPath string
	jsonOut     bool
	play        string
	volume      float64
	repeat      int
	logLevel    string

	listSchemes bool
	listPresets bool
	listDevices bool
}

func main() {
	var f flags
	pflag.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	pflag.StringVarP(&f.presetName, "preset", "p", "", "Start from a saved preset or built-in scenario")
	pflag.StringVar(&f.presetsFile, "presets", "", "Preset file (overrides config)")
	pflag.StringVar(&f.savePreset, "save-preset", "", "Save the resulting controls under this name")
	pflag.StringVarP(&f.scheme, "scheme", "s", "", "Primary scheme id")
	pflag.StringVar(&f.compare, "compare", "", "Comparison scheme id (enables comparison)")
	pflag.StringVar(&f.baseband, "baseband", "", "Message waveform: sine, square, triangle")
	pflag.Float64Var(&f.carrier, "carrier", 0, "Carrier frequency in Hz")
	pflag.Float64Var(&f.bitRate, "bitrate", 0, "Bit rate in b/s")
	pflag.Float64Var(&f.duration, "duration", 0, "Duration in seconds")
	pflag.Float64Var(&f.snr, "snr", 0, "Channel SNR in dB")
	pflag.Float64Var(&f.fading, "fading", 0, "Fading depth [0, 0.95]")
	pflag.Float64Var(&f.rxOffset, "rx-offset", 0, "Receiver carrier offset in Hz")
	pflag.Float64Var(&f.rxPhase, "rx-phase", 0, "Receiver phase offset in degrees")
	pflag.BoolVar(&f.pll, "pll", false, "Use the adaptive receiver")
	pflag.BoolVar(&f.timing, "timing", false, "Enable symbol timing recovery")
	pflag.Uint32Var(&f.seed, "seed", 0, "Seed for a deterministic run")
	pflag.StringVar(&f.csvPath, "csv", "", "Write the waveforms to this CSV file")
	pflag.StringVar(&f.symbolsPath, "symbols-csv", "", "Write the symbol decisions to this CSV file")
	pflag.BoolVar(&f.jsonOut, "json", false, "Print the full report as JSON")
	pflag.StringVar(&f.play, "play", "", "Play a waveform: tx, rx or demod")
	pflag.Float64Var(&f.volume, "volume", 0.5, "Playback peak level [0, 1]")
	pflag.IntVar(&f.repeat, "repeat", 10, "Playback repetitions")
	pflag.StringVarP(&f.logLevel, "log-level", "l", "", "Log level: debug, info, warn, error")
	pflag.BoolVar(&f.listSchemes, "list-schemes", false, "List schemes and exit")
	pflag.BoolVar(&f.listPresets, "list-presets", false, "List presets and exit")
	pflag.BoolVar(&f.listDevices, "list-devices", false, "List audio devices and exit")
	pflag.Parse()

	if err := run(f, os.Stdout); err != nil {
		log.Fatal("modsim", "err", err)
	}
}

func run(f flags, out io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.presetsFile != "" {
		cfg.Simulation.PresetsFile = f.presetsFile
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: cfg.LogLevel(), Prefix: "modsim"})
	log.SetDefault(logger)

	user, err := preset.LoadFile(cfg.Simulation.PresetsFile)
	if err != nil {
		return err
	}

	switch {
	case f.listSchemes:
		printSchemes(out)
		return nil
	case f.listPresets:
		printPresets(out, user)
		return nil
	case f.listDevices:
		if err := audio.Init(); err != nil {
			return fmt.Errorf("init audio: %w", err)
		}
		defer audio.Terminate()
		return audio.PrintDevices(out)
	}

	c := preset.Defaults()
	if f.presetName != "" {
		if c, err = preset.Resolve(f.presetName, user); err != nil {
			return err
		}
	}
	applyFlags(&c, f, pflag.CommandLine.Changed)
	if !c.Deterministic && cfg.Simulation.Seed != nil {
		c.Deterministic = true
		c.Seed = *cfg.Simulation.Seed
	}

	if f.savePreset != "" {
		name, err := preset.SaveFile(cfg.Simulation.PresetsFile, f.savePreset, c)
		if err != nil {
			return err
		}
		logger.Info("preset saved", "name", name, "file", cfg.Simulation.PresetsFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := sim.Run(ctx, c, sim.WithLogger(logger), sim.WithLoopConfig(cfg.LoopConfig()))
	if err != nil {
		return err
	}

	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if f.csvPath != "" {
		if err := writeFile(f.csvPath, report, export.WriteSignals); err != nil {
			return err
		}
		logger.Info("signals exported", "file", f.csvPath)
	}
	if f.symbolsPath != "" {
		if err := writeFile(f.symbolsPath, report, export.WriteSymbols); err != nil {
			return err
		}
		logger.Info("symbols exported", "file", f.symbolsPath)
	}

	if f.play != "" {
		return play(ctx, report, f)
	}
	return nil
}

// applyFlags copies every flag the user set onto c.
func applyFlags(c *preset.Controls, f flags, changed func(string) bool) {
	if changed("scheme") {
		c.Scheme = modem.SchemeID(f.scheme)
	}
	if changed("compare") {
		c.CompareMode = f.compare != ""
		c.CompareScheme = modem.SchemeID(f.compare)
	}
	if changed("baseband") {
		c.Baseband = modem.Shape(f.baseband)
	}
	if changed("carrier") {
		c.CarrierFreq = f.carrier
	}
	if changed("bitrate") {
		c.BitRate = f.bitRate
	}
	if changed("duration") {
		c.Duration = f.duration
	}
	if changed("snr") {
		c.SNRdB = f.snr
	}
	if changed("fading") {
		c.FadingDepth = f.fading
	}
	if changed("rx-offset") {
		c.RxCarrierOffset = f.rxOffset
	}
	if changed("rx-phase") {
		c.RxPhaseOffset = f.rxPhase
	}
	if changed("pll") {
		c.ReceiverModel = modem.ReceiverManual
		if f.pll {
			c.ReceiverModel = modem.ReceiverPLL
		}
	}
	if changed("timing") {
		c.TimingRecovery = f.timing
	}
	if changed("seed") {
		c.Deterministic = true
		c.Seed = f.seed
	}
}

func writeFile(path string, r *sim.Report, write func(io.Writer, *sim.Report) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func play(ctx context.Context, r *sim.Report, f flags) error {
	var wave []float64
	switch f.play {
	case "tx":
		wave = r.Primary.Result.TxSignal
	case "rx":
		wave = r.Primary.Result.RxSignal
	case "demod":
		wave = r.Primary.Result.Demodulated
	default:
		return fmt.Errorf("unknown waveform %q, want tx, rx or demod", f.play)
	}

	if err := audio.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer audio.Terminate()
	if !audio.HasOutputDevice() {
		return fmt.Errorf("no default output device")
	}

	p := audio.NewPlayer()
	if err := p.Open(); err != nil {
		return err
	}
	defer p.Close()
	return p.Play(ctx, wave, f.volume, f.repeat)
}

func printSchemes(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFAMILY\tLABEL")
	for _, d := range modem.Schemes() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Family, d.Label)
	}
	w.Flush()
}

func printPresets(out io.Writer, user map[string]preset.Controls) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tSCHEME\tCOMPARE")
	row := func(name, source string, c preset.Controls) {
		compare := "-"
		if c.CompareMode {
			compare = string(c.CompareScheme)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, source, c.Scheme, compare)
	}
	scenarios := preset.Scenarios()
	for _, name := range preset.ScenarioNames() {
		row(name, "built-in", scenarios[name])
	}
	for _, name := range preset.Names(user) {
		row(name, "saved", user[name])
	}
	w.Flush()
}

func printReport(out io.Writer, r *sim.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	line := func(run *sim.SchemeRun, text string) {
		m := run.Metrics
		fmt.Fprintf(w, "%s\t%s\n", run.Scheme.Label, text)
		fmt.Fprintf(w, "  bandwidth\t%.1f Hz\n", m.BandwidthHz)
		if m.Quality != nil {
			fmt.Fprintf(w, "  EVM\t%.2f %% (SNR est. %.1f dB, %d points)\n",
				m.Quality.EVMPercent, m.Quality.SNRdB, m.Quality.Points)
		}
		rcv := run.Result.Receiver
		if run.Scheme.Digital {
			fmt.Fprintf(w, "  receiver\tfc %.2f Hz, phase %.1f deg, timing %d\n",
				rcv.Fc, rcv.Phase*180/math.Pi, rcv.TimingOffset)
		}
		fmt.Fprintf(w, "  fingerprint\t%s\n", m.Fingerprint)
	}
	fmt.Fprintf(w, "run\t%s (%d samples, %s)\n", r.ID, len(r.Time), r.Elapsed)
	line(&r.Primary, r.PrimaryText())
	if r.Compare != nil {
		line(r.Compare, r.CompareText())
	} else {
		fmt.Fprintf(w, "compare\t%s\n", r.CompareText())
	}
	w.Flush()
}
