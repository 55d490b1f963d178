package document

import (
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/criteria"
	"github.com/sells-group/vpat-cli/internal/model"
)

// columns within an extraction row, in expected order.
const (
	colCriteria = iota
	colConformance
	colRemarks
)

// Extract walks the document's tables and joins each data row against the
// criteria index, producing a sparse row→record map.
//
// Per table the first row is skipped as a header. Rows with fewer than
// columnCount cells are skipped, never aborting the table. Cell reads are
// defensive: a missing cell reads as "". Rows whose criteria cell yields no
// key, or a key absent from the index, are dropped with a log entry. When
// multiple tables carry the same key, the later table wins (document
// order). An empty result is not an error — the caller decides whether zero
// matches is a failure.
func Extract(tables []Table, index criteria.Index, columnCount int) map[int]model.ExtractedRecord {
	records := make(map[int]model.ExtractedRecord)

	for ti, table := range tables {
		for ri, row := range table.Rows {
			if ri == 0 {
				continue // header
			}
			if len(row) < columnCount {
				zap.L().Debug("extract: short row skipped",
					zap.Int("table", ti),
					zap.Int("row", ri),
					zap.Int("cells", len(row)),
					zap.Int("expected", columnCount),
				)
				continue
			}

			label := cellAt(row, colCriteria)
			key, ok := criteria.Normalize(label)
			if !ok {
				zap.L().Debug("extract: row without criteria key",
					zap.Int("table", ti),
					zap.Int("row", ri),
				)
				continue
			}

			rowID, ok := index[key]
			if !ok {
				zap.L().Debug("extract: criteria key not in index",
					zap.String("key", key),
					zap.Int("table", ti),
					zap.Int("row", ri),
				)
				continue
			}

			records[rowID] = model.ExtractedRecord{
				ConformanceLevel: cellAt(row, colConformance),
				Remarks:          cellAt(row, colRemarks),
				OriginalCriteria: label,
			}
		}
	}

	return records
}

// cellAt reads a cell by position, returning "" when the row is too short.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
