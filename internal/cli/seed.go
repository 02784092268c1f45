package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
	natsclient "github.com/telhawk-systems/telhawk-bridge/internal/messaging/nats"
	"github.com/telhawk-systems/telhawk-bridge/internal/output"
	"github.com/telhawk-systems/telhawk-bridge/internal/seeder"
)

var (
	seedSubject  string
	seedCount    int
	seedFormat   string
	seedInterval time.Duration
	seedSeed     int64
	seedNoAck    bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic transactions",
	Long: `Generate bank-transfer change events and publish them to the
stream subject.

Formats:
  struct    Struct{after=Struct{...},source=Struct{...},op=c,ts_ms=...}
  debezium  {"before":null,"after":{...},"source":{...},"op":"c","ts_ms":...}
  json      the transaction as a plain JSON object
  text      a free-text line that is not a change event
  mixed     a random choice of the above per message

Examples:
  bridge seed --count 100
  bridge seed --format mixed --count 1000 --interval 10ms`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedSubject, "subject", "", "subject to publish to (default: stream.subject)")
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 100, "number of messages")
	seedCmd.Flags().StringVarP(&seedFormat, "format", "f", string(seeder.FormatStruct), "wire format: struct, debezium, json, text, mixed")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 0, "delay between messages")
	seedCmd.Flags().Int64Var(&seedSeed, "seed", 0, "random seed (0 picks one)")
	seedCmd.Flags().BoolVar(&seedNoAck, "no-ack", false, "publish with core NATS instead of waiting for stream acks")
}

// streamPublisher publishes through JetStream and waits for the stream ack.
type streamPublisher struct {
	js *natsclient.JetStreamClient
}

func (p streamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.PublishSync(ctx, subject, data)
	return err
}

func runSeed(cmd *cobra.Command, args []string) error {
	format, err := seeder.ParseFormat(seedFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	js, err := natsclient.NewJetStreamClient(natsConfig(cfg), logger.Logger)
	if err != nil {
		return err
	}
	defer js.Close()

	var pub messaging.Publisher = streamPublisher{js: js}
	if seedNoAck {
		pub = js.Client
	}

	subject := seedSubject
	if subject == "" {
		subject = cfg.Stream.Subject
	}

	res, err := seeder.Run(cmd.Context(), pub, seeder.Options{
		Subject:  subject,
		Count:    seedCount,
		Format:   format,
		Interval: seedInterval,
		Seed:     seedSeed,
	})
	if res != nil {
		printSeedResult(subject, res)
	}
	if err != nil {
		return fmt.Errorf("seeding stopped: %w", err)
	}
	if seedNoAck {
		if err := js.Drain(); err != nil {
			return fmt.Errorf("flush publishes: %w", err)
		}
	}
	return nil
}

func printSeedResult(subject string, res *seeder.Result) {
	switch outputFormat {
	case output.FormatJSON:
		_ = output.JSON(os.Stdout, res)
	case output.FormatYAML:
		_ = output.YAML(os.Stdout, res)
	default:
		output.Success("Published %d messages to %s in %s", res.Published, subject, res.Duration.Round(time.Millisecond))
		formats := make([]string, 0, len(res.ByFormat))
		for f := range res.ByFormat {
			formats = append(formats, string(f))
		}
		sort.Strings(formats)

		table := output.NewTable([]string{"FORMAT", "COUNT"})
		for _, f := range formats {
			table.AddRow([]string{f, fmt.Sprint(res.ByFormat[seeder.Format(f)])})
		}
		table.Render(os.Stdout)
	}
}
