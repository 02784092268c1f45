// Package seeder generates synthetic bank-transfer change events in every
// wire encoding the bridge accepts.
package seeder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
	"github.com/telhawk-systems/telhawk-bridge/internal/structtext"
)

// Format is a wire encoding.
type Format string

const (
	FormatStruct   Format = "struct"
	FormatDebezium Format = "debezium"
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	// FormatMixed picks one of the other formats per message.
	FormatMixed Format = "mixed"
)

var concreteFormats = []Format{FormatStruct, FormatDebezium, FormatJSON, FormatText}

// ParseFormat validates s.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatStruct, FormatDebezium, FormatJSON, FormatText, FormatMixed:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (supported: struct, debezium, json, text, mixed)", s)
	}
}

// Transaction is one generated bank transfer row.
type Transaction struct {
	TransactionID     int64
	TransactionAmount float64
	TransactionDate   time.Time
	AccountFrom       string
	AccountTo         string
	BankIDFrom        string
	BankIDTo          string
	Currency          string
	Narrative         string
	PaymentMode       string
}

// Fields returns the row as the connector's column set, in column order.
// Amounts keep two decimals; the date is epoch milliseconds.
func (t Transaction) Fields() []record.Field {
	return []record.Field{
		{Key: "transactionid", Value: t.TransactionID},
		{Key: "transactionamount", Value: json.Number(strconv.FormatFloat(t.TransactionAmount, 'f', 2, 64))},
		{Key: "transactiondate", Value: t.TransactionDate.UnixMilli()},
		{Key: "accountfrom", Value: t.AccountFrom},
		{Key: "accountto", Value: t.AccountTo},
		{Key: "bankidfrom", Value: t.BankIDFrom},
		{Key: "bankidto", Value: t.BankIDTo},
		{Key: "currency", Value: t.Currency},
		{Key: "narrative", Value: t.Narrative},
		{Key: "paymentmode", Value: t.PaymentMode},
	}
}

var paymentModes = []string{"NEFT", "RTGS", "IMPS", "UPI", "SWIFT", "ACH"}

// Generator produces transactions. Not safe for concurrent use.
type Generator struct {
	faker  *gofakeit.Faker
	nextID int64
	// HighValueRatio is the share of transactions above 1000.
	HighValueRatio float64
}

// NewGenerator returns a generator. A seed of 0 is random.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		faker:          gofakeit.New(seed),
		nextID:         1,
		HighValueRatio: 0.2,
	}
}

// Transaction generates the next row.
func (g *Generator) Transaction() Transaction {
	f := g.faker

	amount := f.Float64Range(1, 1000)
	if f.Float64Range(0, 1) < g.HighValueRatio {
		amount = f.Float64Range(1000.01, 50000)
	}

	tx := Transaction{
		TransactionID:     g.nextID,
		TransactionAmount: amount,
		TransactionDate:   f.DateRange(time.Now().Add(-30*24*time.Hour), time.Now()).UTC(),
		AccountFrom:       f.AchAccount(),
		AccountTo:         f.AchAccount(),
		BankIDFrom:        f.AchRouting(),
		BankIDTo:          f.AchRouting(),
		Currency:          f.CurrencyShort(),
		Narrative:         f.Sentence(4),
		PaymentMode:       f.RandomString(paymentModes),
	}
	g.nextID++
	return tx
}

// Encode renders tx in format. FormatMixed picks a concrete format at random.
func (g *Generator) Encode(format Format, tx Transaction) ([]byte, error) {
	if format == FormatMixed {
		format = concreteFormats[g.faker.Number(0, len(concreteFormats)-1)]
	}

	switch format {
	case FormatStruct:
		return []byte(encodeStruct(tx)), nil
	case FormatDebezium:
		return json.Marshal(envelope(tx))
	case FormatJSON:
		return json.Marshal(record.FromFields(tx.Fields()...))
	case FormatText:
		return []byte(encodeText(tx)), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func source(tx Transaction) []record.Field {
	return []record.Field{
		{Key: "connector", Value: "postgresql"},
		{Key: "db", Value: "payments"},
		{Key: "table", Value: "transactions"},
		{Key: "ts_ms", Value: tx.TransactionDate.UnixMilli()},
	}
}

func envelope(tx Transaction) *record.Record {
	return record.FromFields(
		record.Field{Key: "before", Value: nil},
		record.Field{Key: "after", Value: record.FromFields(tx.Fields()...)},
		record.Field{Key: "source", Value: record.FromFields(source(tx)...)},
		record.Field{Key: "op", Value: "c"},
		record.Field{Key: "ts_ms", Value: time.Now().UnixMilli()},
	)
}

func encodeStruct(tx Transaction) string {
	return structtext.FormatEnvelope(toPairs(tx.Fields()), toPairs(source(tx)), "c", time.Now().UnixMilli())
}

func toPairs(fields []record.Field) []structtext.Pair {
	pairs := make([]structtext.Pair, len(fields))
	for i, f := range fields {
		pairs[i] = structtext.Pair{Key: f.Key, Value: fmt.Sprint(f.Value)}
	}
	return pairs
}

func encodeText(tx Transaction) string {
	return fmt.Sprintf("transfer #%d: %s %.2f from %s to %s via %s",
		tx.TransactionID, tx.Currency, tx.TransactionAmount, tx.AccountFrom, tx.AccountTo, tx.PaymentMode)
}
