package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vamp-go/vamp-go/internal/schema"
)

var (
	serverURL string
	apiKey    string
	output    string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "vamp-ctl",
	Short: "Vamp server client",
	Long: `vamp-ctl talks to a running vamp-server.

Commands:
  health   Check server and backend health
  models   List registered models
  vamp     Generate a variation of an audio file
  mask     Preview a generation mask without running the model

Examples:
  vamp-ctl vamp input.wav -o out.wav --seed 7
  vamp-ctl vamp input.wav --mode loop --passes 4 --prefix 1 --suffix 1
  vamp-ctl mask --codebooks 14 --steps 80 --periodic 7`,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE:  runHealth,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List registered models",
	RunE:  runModels,
}

var vampCmd = &cobra.Command{
	Use:   "vamp [audio-file]",
	Short: "Generate a variation of an audio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runVamp,
}

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Preview a generation mask",
	RunE:  runMask,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Vamp server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&output, "format", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Request timeout")

	rootCmd.AddCommand(healthCmd, modelsCmd, vampCmd, maskCmd)

	healthCmd.Flags().Bool("backend", false, "Also probe the model backend")

	addMaskFlags(vampCmd)
	vampCmd.Flags().StringP("output", "o", "output.wav", "Output audio file")
	vampCmd.Flags().String("model", "", "Model name (default: server default)")
	vampCmd.Flags().String("mode", "vamp", "Generation mode: vamp, extend, loop")
	vampCmd.Flags().Int("passes", 1, "Generation passes for extend and loop")
	vampCmd.Flags().Int64("seed", 0, "Random seed (0 = server picks)")
	vampCmd.Flags().Float64("masktemp", 1.5, "Mask temperature")
	vampCmd.Flags().Float64("sampletemp", 1.0, "Sampling temperature")
	vampCmd.Flags().Float64("top-p", 0, "Nucleus sampling threshold (0 = off)")
	vampCmd.Flags().Int("num-steps", 0, "Sampling steps (0 = model default)")
	vampCmd.Flags().Bool("refine", true, "Run the coarse-to-fine refinement pass")
	vampCmd.Flags().Bool("normalize", true, "Restore the input loudness")

	addMaskFlags(maskCmd)
	maskCmd.Flags().Int("codebooks", 14, "Number of codebooks")
	maskCmd.Flags().Int("steps", 80, "Number of time steps")
	maskCmd.Flags().Int64("seed", 1, "Random seed")
}

func addMaskFlags(cmd *cobra.Command) {
	d := schema.DefaultMaskSettings()
	cmd.Flags().Float64("intensity", d.Intensity, "Random mask intensity")
	cmd.Flags().Float64("prefix", 0, "Seconds kept at the start")
	cmd.Flags().Float64("suffix", 0, "Seconds kept at the end")
	cmd.Flags().Int("periodic", d.Period, "Keep one column every N steps (0 = off)")
	cmd.Flags().Int("periodic-width", d.PeriodWidth, "Width of each kept column group")
	cmd.Flags().Int("onset-width", d.OnsetWidth, "Steps kept around each onset (0 = off)")
	cmd.Flags().Float64("beat-width", 0, "Milliseconds kept after each beat (0 = off)")
	cmd.Flags().Bool("downbeats-only", false, "Keep downbeats only")
	cmd.Flags().Float64("dropout", 0, "Fraction of kept positions released")
	cmd.Flags().Int("mask-codebooks", d.MaskCodebooks, "Codebooks from this index up are always regenerated")
}

func maskSettings(cmd *cobra.Command) schema.MaskSettings {
	s := schema.DefaultMaskSettings()
	s.Intensity, _ = cmd.Flags().GetFloat64("intensity")
	s.PrefixSeconds, _ = cmd.Flags().GetFloat64("prefix")
	s.SuffixSeconds, _ = cmd.Flags().GetFloat64("suffix")
	s.Period, _ = cmd.Flags().GetInt("periodic")
	s.PeriodWidth, _ = cmd.Flags().GetInt("periodic-width")
	s.OnsetWidth, _ = cmd.Flags().GetInt("onset-width")
	s.BeatWidthMs, _ = cmd.Flags().GetFloat64("beat-width")
	s.BeatDownbeatsOnly, _ = cmd.Flags().GetBool("downbeats-only")
	s.Dropout, _ = cmd.Flags().GetFloat64("dropout")
	s.MaskCodebooks, _ = cmd.Flags().GetInt("mask-codebooks")
	return s
}

func runHealth(cmd *cobra.Command, args []string) error {
	probe, _ := cmd.Flags().GetBool("backend")

	method := http.MethodGet
	if probe {
		method = http.MethodPost
	}

	resp, err := makeRequest(method, serverURL+"/v1/health", nil)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(resp))
		return nil
	}

	var health schema.HealthResponse
	_ = json.Unmarshal(resp, &health)

	fmt.Printf("Status: %s\n", health.Status)
	if health.Backend != "" {
		fmt.Printf("Backend: %s\n", health.Backend)
	}
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	resp, err := makeRequest(http.MethodGet, serverURL+"/v1/models", nil)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(resp))
		return nil
	}

	var models schema.ModelsResponse
	_ = json.Unmarshal(resp, &models)

	fmt.Println("Models:")
	for _, m := range models.Models {
		marker := " "
		if m.Default {
			marker = "*"
		}
		fmt.Printf(" %s %s\n", marker, m.Name)
	}
	return nil
}

func runVamp(cmd *cobra.Command, args []string) error {
	audio, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	req := schema.DefaultVampRequest()
	req.Audio = audio
	req.MaskSettings = maskSettings(cmd)
	req.Model, _ = cmd.Flags().GetString("model")
	req.Mode, _ = cmd.Flags().GetString("mode")
	req.NumPasses, _ = cmd.Flags().GetInt("passes")
	req.Seed, _ = cmd.Flags().GetInt64("seed")
	req.MaskTemperature, _ = cmd.Flags().GetFloat64("masktemp")
	req.SamplingTemperature, _ = cmd.Flags().GetFloat64("sampletemp")
	req.TopP, _ = cmd.Flags().GetFloat64("top-p")
	req.Steps, _ = cmd.Flags().GetInt("num-steps")
	req.Refine, _ = cmd.Flags().GetBool("refine")
	req.Normalize, _ = cmd.Flags().GetBool("normalize")

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := makeRequest(http.MethodPost, serverURL+"/v1/vamp", body)
	if err != nil {
		return err
	}

	var result schema.VampResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	outFile, _ := cmd.Flags().GetString("output")
	if err := os.WriteFile(outFile, result.Audio, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if output == "json" {
		result.Audio = nil
		summary, _ := json.Marshal(result)
		fmt.Println(string(summary))
		return nil
	}

	fmt.Printf("Wrote %s (%d bytes)\n", outFile, len(result.Audio))
	fmt.Printf("Model: %s  Seed: %d  Steps: %d\n", result.Model, result.Seed, result.Steps)
	for _, p := range result.Passes {
		fmt.Printf("  %-12s seed=%d masked=%.1f%% %dms\n", p.Stage, p.Seed, p.MaskedFraction*100, p.DurationMs)
	}
	return nil
}

func runMask(cmd *cobra.Command, args []string) error {
	req := schema.DefaultMaskPreviewRequest()
	req.MaskSettings = maskSettings(cmd)
	req.Codebooks, _ = cmd.Flags().GetInt("codebooks")
	req.Steps, _ = cmd.Flags().GetInt("steps")
	req.Seed, _ = cmd.Flags().GetInt64("seed")

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := makeRequest(http.MethodPost, serverURL+"/v1/mask", body)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(resp))
		return nil
	}

	var preview schema.MaskPreviewResponse
	if err := json.Unmarshal(resp, &preview); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	fmt.Print(renderMask(preview.Mask))
	fmt.Printf("seed=%d masked=%.1f%%\n", preview.Seed, preview.MaskedFraction*100)
	return nil
}

// renderMask draws one line per codebook, highest first: '#' is regenerated
// and '.' is kept.
func renderMask(rows [][]int) string {
	var sb strings.Builder
	for c := len(rows) - 1; c >= 0; c-- {
		for _, v := range rows[c] {
			if v != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func makeRequest(method, url string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
