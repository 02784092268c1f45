package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-bridge/internal/config"
	natsclient "github.com/telhawk-systems/telhawk-bridge/internal/messaging/nats"
	"github.com/telhawk-systems/telhawk-bridge/internal/output"
)

var provisionTimeout time.Duration

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create or update the JetStream streams and consumer",
	Long: `Create or update the change-event stream, its durable consumer and,
when dlq.enabled is set, the dead-letter stream. Running it against
existing streams updates them in place.`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().DurationVar(&provisionTimeout, "timeout", 30*time.Second, "time allowed for provisioning")
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Stream.Mode != config.ModeJetStream {
		return fmt.Errorf("provision requires stream.mode %q, got %q", config.ModeJetStream, cfg.Stream.Mode)
	}
	logger := newLogger(cfg)

	js, err := natsclient.NewJetStreamClient(natsConfig(cfg), logger.Logger)
	if err != nil {
		return err
	}
	defer js.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutOrDefault(provisionTimeout))
	defer cancel()

	streams, err := provisionStreams(ctx, js, cfg, logger.Logger)
	if err != nil {
		return err
	}
	for _, info := range streams {
		output.Success("Stream %s ready (%d messages, subjects %v)", info.Config.Name, info.State.Msgs, info.Config.Subjects)
	}
	output.Success("Consumer %s ready on %s", cfg.Stream.Consumer, cfg.Stream.Subject)
	return nil
}

// provisionStreams creates or updates everything the consumers and the
// dead-letter capture need.
func provisionStreams(ctx context.Context, js *natsclient.JetStreamClient, cfg *config.Config, logger *slog.Logger) ([]*jetstream.StreamInfo, error) {
	wanted := []natsclient.StreamConfig{
		natsclient.BridgeStream(cfg.Stream.Name, cfg.Stream.Subjects, cfg.Stream.MaxAge, cfg.Stream.MaxMsgs),
	}
	if cfg.DLQ.Enabled {
		wanted = append(wanted, natsclient.DLQStream(cfg.DLQ.Stream))
	}

	infos := make([]*jetstream.StreamInfo, 0, len(wanted))
	for _, sc := range wanted {
		stream, err := js.CreateOrUpdateStream(ctx, sc)
		if err != nil {
			return nil, err
		}
		info, err := stream.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", sc.Name, err)
		}
		logger.Info("stream ready", slog.String("stream", sc.Name), slog.Uint64("messages", info.State.Msgs))
		infos = append(infos, info)
	}

	if _, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream.Name, consumerConfig(cfg)); err != nil {
		return nil, err
	}
	logger.Info("consumer ready", slog.String("consumer", cfg.Stream.Consumer), slog.String("subject", cfg.Stream.Subject))
	return infos, nil
}
