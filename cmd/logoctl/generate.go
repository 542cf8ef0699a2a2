package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kiranalogo/internal/domain"
	"kiranalogo/pkg/logoclient"
)

var generateCmd = &cobra.Command{
	Use:   "generate PROMPT",
	Short: "Submit a logo generation request",
	Long:  "Submits a prediction through the API. With --wait the command polls until the prediction is terminal and, with --save, stores the result as a logo.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

var (
	generateAPI      string
	generateToken    string
	generateText     string
	generateFont     string
	generateColors   []string
	generateWait     bool
	generateSave     bool
	generateInterval time.Duration
	generateTimeout  time.Duration
	generateBackoff  float64
)

func init() {
	generateCmd.Flags().StringVar(&generateAPI, "api", "", "API base URL (KIRANALOGO_API, default http://localhost:8080)")
	generateCmd.Flags().StringVar(&generateToken, "token", "", "bearer token (KIRANALOGO_TOKEN)")
	generateCmd.Flags().StringVar(&generateText, "text", "", "text to render in the logo")
	generateCmd.Flags().StringVar(&generateFont, "font", "", "font style hint")
	generateCmd.Flags().StringSliceVar(&generateColors, "color", nil, "palette colour, repeatable")
	generateCmd.Flags().BoolVar(&generateWait, "wait", false, "poll until the prediction finishes")
	generateCmd.Flags().BoolVar(&generateSave, "save", false, "save the result as a logo (implies --wait)")
	generateCmd.Flags().DurationVar(&generateInterval, "interval", logoclient.DefaultPollInterval, "poll interval")
	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", logoclient.DefaultPollTimeout, "give up waiting after this long")
	generateCmd.Flags().Float64Var(&generateBackoff, "backoff", 1, "multiply the poll interval by this after each attempt")

	rootCmd.AddCommand(generateCmd)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func runGenerate(cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(generateToken)
	if token == "" {
		token = envOr("KIRANALOGO_TOKEN", "")
	}
	if token == "" {
		return errors.New("a bearer token is required via --token or KIRANALOGO_TOKEN")
	}
	baseURL := strings.TrimSpace(generateAPI)
	if baseURL == "" {
		baseURL = envOr("KIRANALOGO_API", "http://localhost:8080")
	}
	client := logoclient.New(logoclient.Options{BaseURL: baseURL, Token: token})
	in := domain.PredictionInput{
		Prompt:    args[0],
		LogoText:  generateText,
		FontStyle: generateFont,
		Colors:    generateColors,
	}
	out := cmd.OutOrStdout()

	p, err := client.Submit(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "prediction %s %s\n", p.ID, p.Status)
	if !generateWait && !generateSave {
		return printJSON(out, p)
	}

	if !p.Status.IsTerminal() {
		last := p.Status
		p, err = client.WaitForCompletion(cmd.Context(), p.ID, logoclient.PollOptions{
			Interval: generateInterval,
			Timeout:  generateTimeout,
			Backoff:  generateBackoff,
			OnUpdate: func(u *logoclient.Prediction) {
				if u.Status != last {
					last = u.Status
					fmt.Fprintf(cmd.ErrOrStderr(), "prediction %s %s\n", u.ID, u.Status)
				}
			},
		})
		if err != nil {
			return err
		}
	}
	if p.Status != domain.StatusSucceeded {
		_ = printJSON(out, p)
		return fmt.Errorf("prediction %s finished as %s", p.ID, p.Status)
	}
	if !generateSave {
		return printJSON(out, p)
	}
	logo, err := client.SaveOrGet(cmd.Context(), p.ID)
	if err != nil {
		return err
	}
	return printJSON(out, logo)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
