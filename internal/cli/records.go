package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-bridge/internal/output"
	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

var (
	recordsURL     string
	recordsView    string
	recordsLimit   int
	recordsTimeout time.Duration
)

var recordViews = map[string]string{
	"raw":          "/api/v1/data/transactions",
	"standardized": "/api/v1/data/transactions/powerbi",
	"powerbi":      "/api/v1/powerbi/transactions",
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Show the recent record window of a running bridge",
	Long: `Fetch the recent record window from a running bridge and print it.

Views:
  raw           records as stored
  standardized  every row with the same upper-cased columns
  powerbi       the Power BI presentation (formatted dates)

Examples:
  bridge records --url http://localhost:8085
  bridge records --view powerbi -o yaml --limit 5`,
	RunE: runRecords,
}

func init() {
	recordsCmd.Flags().StringVar(&recordsURL, "url", "http://localhost:8085", "bridge base URL")
	recordsCmd.Flags().StringVar(&recordsView, "view", "raw", "view: raw, standardized, powerbi")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 0, "show only the newest N records (0 shows all)")
	recordsCmd.Flags().DurationVar(&recordsTimeout, "timeout", 10*time.Second, "request timeout")
}

func runRecords(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutOrDefault(recordsTimeout))
	defer cancel()

	recs, err := fetchRecords(ctx, http.DefaultClient, recordsURL, recordsView)
	if err != nil {
		return err
	}
	if recordsLimit > 0 && len(recs) > recordsLimit {
		recs = recs[len(recs)-recordsLimit:]
	}

	if err := output.Records(cmd.OutOrStdout(), outputFormat, recs); err != nil {
		return err
	}
	if outputFormat == output.FormatTable {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d records\n", len(recs))
	}
	return nil
}

func fetchRecords(ctx context.Context, client *http.Client, baseURL, view string) ([]*record.Record, error) {
	path, ok := recordViews[view]
	if !ok {
		return nil, fmt.Errorf("unknown view %q (supported: raw, standardized, powerbi)", view)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("bridge returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var recs []*record.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}

