package connector

import (
	"context"

	"github.com/pkg/errors"

	"streamsynth/internal/model"
	"streamsynth/internal/store"
	"streamsynth/pkg/utils"
)

// SQLiteSink stores each event as a JSON row in the events table of a
// SQLite database.
type SQLiteSink struct {
	db *store.Store
}

// NewSQLiteSink reads "path" and opens the database.
func NewSQLiteSink(cfg map[string]interface{}) (model.Sink, error) {
	path := utils.StringOption(cfg, "path", "")
	if path == "" {
		return nil, errors.New("sqlite sink requires a path")
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Write(_ context.Context, ev model.Event) error {
	return s.db.SaveEvent(ev)
}

func (s *SQLiteSink) Close(context.Context) error {
	return s.db.Close()
}
