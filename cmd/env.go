package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vpat-cli/internal/grid"
	"github.com/sells-group/vpat-cli/internal/provider"
	"github.com/sells-group/vpat-cli/internal/store"
)

// initStore opens and migrates the audit store. The store is best-effort
// infrastructure; callers treat a nil store as "no audit trail".
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open audit store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate audit store")
	}
	return st, nil
}

func initProvider() (provider.Provider, error) {
	return provider.New(cfg.AI)
}

func openWorkbook(path, sheet string) (*grid.XLSX, error) {
	if path == "" {
		return nil, eris.New("workbook path is required")
	}
	return grid.OpenXLSX(path, sheet)
}
