package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethica-ai/ethica-relay/internal/client"
	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
	"github.com/ethica-ai/ethica-relay/internal/mockupstream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	log := logrus.New()
	log.SetOutput(os.Stderr)

	root := &cobra.Command{
		Use:   "ethica",
		Short: "Submit scenarios to the Ethica analysis relay",
		Long: `ethica submits AI deployment scenarios to the analysis relay and prints
the verdict with its scores.

Examples:
  ethica analyze --preset "Workplace Surveillance"
  ethica analyze --action "Deploy chatbot" --context "Customer support" --stakeholder Customers
  ethica mock-upstream --addr 127.0.0.1:8000`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLevel(logrus.WarnLevel)
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAnalyzeCmd(log), newPresetsCmd(), newMockUpstreamCmd(log))
	return root
}

func newAnalyzeCmd(log *logrus.Logger) *cobra.Command {
	var (
		url          string
		preset       string
		action       string
		scenarioCtx  string
		name         string
		stakeholders []string
		stageDelay   time.Duration
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a scenario through the analysis pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := client.PresetCustom
			sc := domain.Scenario{Name: name, Action: action, Context: scenarioCtx, Stakeholders: stakeholders}
			if preset != "" {
				var ok bool
				p, sc, ok = client.LookupPreset(preset)
				if !ok {
					return fmt.Errorf("unknown preset %q (see `ethica presets`)", preset)
				}
				// explicit flags edit the preset, like editing the form
				if action != "" {
					sc.Action = action
				}
				if scenarioCtx != "" {
					sc.Context = scenarioCtx
				}
				if len(stakeholders) > 0 {
					sc.Stakeholders = stakeholders
				}
			}
			if strings.TrimSpace(sc.Action) == "" {
				return fmt.Errorf("either --preset or --action is required")
			}

			c := client.New(client.Config{BaseURL: url, Timeout: timeout, StageDelay: stageDelay})
			c.Log = log

			out := cmd.OutOrStdout()
			rep, err := c.Run(cmd.Context(), p, sc, func(i int, st client.Stage) {
				fmt.Fprintf(out, "[%2d/%d] %-24s %s\n", i+1, len(client.Stages), st.Name, st.Description)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			return client.Render(out, rep)
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", envOr("ETHICA_RELAY_URL", client.DefaultURL), "relay base URL")
	f.StringVarP(&preset, "preset", "p", "", "sample scenario by index or name")
	f.StringVar(&action, "action", "", "proposed action")
	f.StringVar(&scenarioCtx, "context", "", "scenario context")
	f.StringVar(&name, "name", "", "scenario name")
	f.StringArrayVar(&stakeholders, "stakeholder", nil, "stakeholder (repeatable)")
	f.DurationVar(&stageDelay, "stage-delay", client.DefaultStageDelay, "pause between pipeline stages")
	f.DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the sample scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for i, p := range client.Presets {
				fmt.Fprintf(out, "%d  %s\n   action:       %s\n   context:      %s\n   stakeholders: %s\n",
					i, p.Name, p.Action, p.Context, strings.Join(p.Stakeholders, ", "))
			}
		},
	}
}

func newMockUpstreamCmd(log *logrus.Logger) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "mock-upstream",
		Short: "Serve a stand-in analysis service for local runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if log.GetLevel() < logrus.InfoLevel {
				log.SetLevel(logrus.InfoLevel)
			}
			shutdown, _, err := mockupstream.Start(addr, log)
			if err != nil {
				return err
			}
			<-cmd.Context().Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", mockupstream.DefaultAddr, "listen address")
	return cmd
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
