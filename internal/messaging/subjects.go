package messaging

import "strings"

// Subjects follow {domain}.{kind}.{resource}.
const (
	// SubjectCDCTransactions is the default subject change events arrive on.
	SubjectCDCTransactions = "cdc.transactions"
	// SubjectCDCAll matches every CDC subject.
	SubjectCDCAll = "cdc.>"

	// SubjectDLQPrefix prefixes dead-letter subjects: bridge.dlq.<reason>.
	SubjectDLQPrefix = "bridge.dlq"
	// SubjectDLQAll matches every dead-letter subject.
	SubjectDLQAll = SubjectDLQPrefix + ".>"
)

// QueueBridgeWorkers is the queue group shared by bridge consumers.
const QueueBridgeWorkers = "bridge-workers"

// DLQSubject returns the dead-letter subject for reason. Characters that are
// not valid in a subject token are replaced with underscores.
func DLQSubject(reason string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, strings.TrimSpace(reason))
	if token == "" {
		token = "unknown"
	}
	return SubjectDLQPrefix + "." + token
}
