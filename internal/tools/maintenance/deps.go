package maintenance

import (
	"github.com/louisbranch/governing.space/internal/services/governance/domain/journal"
)

// closableEventStore extends the journal with a Close method for resource cleanup.
type closableEventStore interface {
	journal.Journal
	Close() error
}
