package pipeline

import (
	"context"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/auth"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/config"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/fetch"
	csvparser "github.com/deya-hazra-maersk/TORI-Data-Processing/internal/parser/csv"
	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage"
)

// NewDefaultRunner wires a Runner against the real identity provider,
// reporting API, and the storage backend selected by st.Kind.
//
// The storage backend must be registered before Run is called; binaries get
// that by blank-importing internal/storage/all.
func NewDefaultRunner(cfg config.Config, st storage.Config, table, runID string) *Runner {
	authn := auth.New(config.TokenURL, config.Scope, config.UserAgent)
	reports := fetch.New(config.ReportsURL, config.UserAgent)
	creds := auth.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}

	return &Runner{
		RunID: runID,
		Table: table,
		Token: func(ctx context.Context) (string, error) {
			return authn.Token(ctx, creds)
		},
		Fetch: reports.Reports,
		Parse: csvparser.ParseString,
		NewRepository: func(ctx context.Context) (storage.Repository, error) {
			return storage.New(ctx, st)
		},
	}
}
