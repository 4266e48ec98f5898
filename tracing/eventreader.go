package tracing

import (
	"context"
	"strings"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm"
)

// An EventQuery selects recorded events. Zero fields select everything.
type EventQuery struct {
	PID      vm.PID
	Position string
	Limit    int
}

func (q EventQuery) filter() datarecording.Filter {
	var (
		conds []string
		args  []any
	)

	if q.PID != 0 {
		conds = append(conds, "PID = ?")
		args = append(args, uint32(q.PID))
	}

	if q.Position != "" {
		conds = append(conds, "Position = ?")
		args = append(args, q.Position)
	}

	return datarecording.Filter{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: "Time, ID",
		Limit:   q.Limit,
	}
}

// ReadEvents returns the recorded events selected by the query in the
// order they happened, and how many events match when the limit is
// ignored.
func ReadEvents(
	ctx context.Context,
	reader datarecording.DataReader,
	q EventQuery,
) ([]EventEntry, int, error) {
	reader.MapTable(EventTableName, EventEntry{})

	rows, total, err := reader.Query(ctx, EventTableName, q.filter())
	if err != nil {
		return nil, 0, err
	}

	events := make([]EventEntry, 0, len(rows))
	for _, r := range rows {
		events = append(events, *r.(*EventEntry))
	}

	return events, total, nil
}
