package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/lcpd/pkg/lcp"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Measure one URL in-process and print the JSON result",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}

	d := lcp.DefaultSettings()
	f := cmd.Flags()
	f.String("url", "", "page to measure (required)")
	f.Float64("cpu-slowdown-multiplier", d.Throttling.CPUSlowdownMultiplier, "CPU slowdown multiplier")
	f.Float64("download-throughput", d.Throttling.DownloadThroughput, "download throughput in bytes/s")
	f.Float64("upload-throughput", d.Throttling.UploadThroughput, "upload throughput in bytes/s")
	f.Float64("latency", d.Throttling.Latency, "request latency in ms")
	f.String("form-factor", string(d.FormFactor), "emulated form factor: mobile or desktop")
	return cmd
}

// probeSettings reads the throttling flags.
func probeSettings(cmd *cobra.Command) lcp.Settings {
	f := cmd.Flags()
	s := lcp.DefaultSettings()
	s.Throttling.CPUSlowdownMultiplier, _ = f.GetFloat64("cpu-slowdown-multiplier")
	s.Throttling.DownloadThroughput, _ = f.GetFloat64("download-throughput")
	s.Throttling.UploadThroughput, _ = f.GetFloat64("upload-throughput")
	s.Throttling.Latency, _ = f.GetFloat64("latency")
	ff, _ := f.GetString("form-factor")
	s.FormFactor = lcp.FormFactor(ff)
	return s
}

func runProbe(cmd *cobra.Command, _ []string) error {
	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		return lcp.ErrURLRequired
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.browsers.Close(); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
	}()

	res, err := rt.service.Measure(cmd.Context(), url, probeSettings(cmd))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
