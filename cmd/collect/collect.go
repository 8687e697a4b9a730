package collect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/config"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/notify"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/outputs"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/portal"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/session"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/tunnel"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/utils"
	"github.com/spf13/cobra"
)

var (
	title         string
	timeoutSec    int
	fieldsFile    string
	boreServer    string
	borePort      int
	boreSecret    string
	localPort     int
	deadlineFrom  string
	tunnelRestart bool
	resultsFile   string
)

var Cmd = &cobra.Command{
	Use:   "collect",
	Short: "Publish the input form and wait for one submission",
	Long:  "Publish the input form and wait for one submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		if fieldsFile != "" {
			blob, err := os.ReadFile(fieldsFile)
			if err != nil {
				return err
			}
			cfg.Fields, err = config.ParseFields(string(blob))
			if err != nil {
				return err
			}
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if deadlineFrom != "created" && deadlineFrom != "published" {
			return fmt.Errorf("invalid --deadline-from %q (created or published)", deadlineFrom)
		}

		version, err := tunnel.Version("")
		if err != nil {
			return err
		}
		slog.Info("Found bore client", "version", version)

		ctrl, err := session.New(session.Options{
			Title:               cfg.Title,
			Fields:              cfg.Fields,
			Deadline:            cfg.Timeout,
			DeadlineFromPublish: deadlineFrom == "published",
			LocalPort:           localPort,
			Tunnel: tunnel.Options{
				Server:     cfg.BoreServer,
				RemotePort: cfg.BorePort,
				Secret:     cfg.BoreSecret,
			},
			TunnelRestart: tunnelRestart,
			Notify:        buildNotifiers(cfg),
			Workflow:      cfg.Workflow,
			Repository:    cfg.Repository,
			RunID:         cfg.RunID,
			ServerURL:     cfg.ServerURL,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-utils.WaitForSignal()
			cancel()
		}()

		outcome := ctrl.Run(ctx, portal.New(ctrl))
		cancel()

		if outcome.State != session.Completed {
			slog.Error("Session ended without a result", "state", outcome.State, "error", outcome.Err)
			os.Exit(outcome.ExitCode())
		}

		slog.Info("Received results from form")
		for key, value := range outcome.Values {
			rendered, _ := outputs.Render(value)
			slog.Info("Result", "field", key, "value", rendered)
		}

		if err := outputs.SaveResults(resultsFile, outcome.Values); err != nil {
			return err
		}
		if err := outputs.AppendGitHubOutput(outcome.Values); err != nil {
			return err
		}

		return nil
	},
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("title") {
		cfg.Title = title
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	if cmd.Flags().Changed("bore-server") {
		cfg.BoreServer = boreServer
	}
	if cmd.Flags().Changed("bore-port") {
		cfg.BorePort = borePort
	}
	if cmd.Flags().Changed("bore-secret") {
		cfg.BoreSecret = boreSecret
	}
}

func buildNotifiers(cfg *config.Config) *notify.Fanout {
	var notifiers []notify.Notifier

	if cfg.Slack.Enabled {
		notifiers = append(notifiers, &notify.Slack{
			Token:    cfg.Slack.Token,
			Channel:  cfg.Slack.Channel,
			ThreadTS: cfg.Slack.ThreadTS,
			BotName:  cfg.Slack.BotName,
		})
	}
	if cfg.Discord.Enabled {
		notifiers = append(notifiers, &notify.Discord{
			WebhookURL: cfg.Discord.WebhookURL,
			ThreadID:   cfg.Discord.ThreadID,
			Username:   cfg.Discord.Username,
		})
	}

	return notify.NewFanout(notifiers...)
}

func init() {
	Cmd.Flags().StringVarP(&title, "title", "t", config.DefaultTitle, "Form title shown to the operator")
	Cmd.Flags().IntVar(&timeoutSec, "timeout", 300, "Seconds to wait for a submission")
	Cmd.Flags().StringVarP(&fieldsFile, "fields", "f", "", "YAML file with the interactive field schema (overrides INPUT_INTERACTIVE)")
	Cmd.Flags().StringVar(&boreServer, "bore-server", config.DefaultBoreServer, "bore server address")
	Cmd.Flags().IntVar(&borePort, "bore-port", 0, "Fixed remote port (0 = server assigned)")
	Cmd.Flags().StringVar(&boreSecret, "bore-secret", "", "Shared secret passed to the bore server")
	Cmd.Flags().IntVar(&localPort, "local-port", 0, "Local listener port (0 = ephemeral)")
	Cmd.Flags().StringVar(&deadlineFrom, "deadline-from", "created", "When the deadline clock starts: created or published")
	Cmd.Flags().BoolVar(&tunnelRestart, "tunnel-restart", false, "Attempt one tunnel restart on unexpected exit")
	Cmd.Flags().StringVar(&resultsFile, "results", outputs.DefaultResultsFile, "Where to stage the collected results as JSON")
}
