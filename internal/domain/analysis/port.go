package analysis

import "context"

// Analyzer port (the external analysis service). Analyze forwards body and
// returns the raw response bytes on success.
type Analyzer interface {
	Analyze(ctx context.Context, body []byte) ([]byte, error)
}

// Repository port for persisting relay outcomes
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id RecordID) (*Record, error)
	Paginate(ctx context.Context, page, pageSize int) ([]*Record, error)
	Ping(ctx context.Context) error
}

// ObjectStore port for archiving result documents
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}
