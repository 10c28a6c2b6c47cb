package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ethica-ai/ethica-relay/internal/application"
	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const archiveTimeout = 5 * time.Second

// Service implements the relay use-cases. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	Upstream domain.Analyzer
	Archive  domain.Repository  // optional
	Objects  domain.ObjectStore // optional
	Clock    application.Clock
	Log      logrus.FieldLogger
	NewID    func() string // scenario ids for fallback results
}

// RelayCommand is one inbound scenario submission. ReadErr is set when the
// transport could not read the body in full; such a submission is never
// forwarded.
type RelayCommand struct {
	Body    []byte
	Client  string
	ReadErr error
}

// Relay forwards the scenario to the upstream analyzer. It never fails: any
// upstream problem yields a Fallback outcome carrying the fixed result.
// Outcomes for callers that went away are logged at debug and not archived.
func (s *Service) Relay(ctx context.Context, cmd RelayCommand) domain.Outcome {
	out := s.relay(ctx, cmd)
	switch {
	case out.Reason == domain.ReasonCanceled:
		s.log().WithFields(logrus.Fields{
			"client": cmd.Client,
		}).WithError(out.Err).Debug("caller left before the analysis upstream answered")
		return out
	case out.IsFallback():
		s.log().WithFields(logrus.Fields{
			"reason":      out.Reason,
			"scenario_id": out.ScenarioID(),
			"client":      cmd.Client,
		}).WithError(out.Err).Warn("analysis upstream failed, serving fallback result")
	default:
		s.log().WithFields(logrus.Fields{
			"scenario_id": out.ScenarioID(),
			"client":      cmd.Client,
			"bytes":       len(out.Body),
		}).Debug("analysis relayed")
	}
	s.archive(ctx, cmd, out)
	return out
}

func (s *Service) relay(ctx context.Context, cmd RelayCommand) domain.Outcome {
	if cmd.ReadErr != nil {
		return s.fallback(fmt.Errorf("%w: %v", domain.ErrInvalidRequest, cmd.ReadErr))
	}
	body := cmd.Body
	if !json.Valid(body) {
		return s.fallback(fmt.Errorf("%w: body is not valid JSON", domain.ErrInvalidRequest))
	}

	raw, err := s.Upstream.Analyze(ctx, body)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return s.fallback(fmt.Errorf("%w: %w", domain.ErrCanceled, cerr))
		}
		return s.fallback(err)
	}
	if !json.Valid(raw) {
		return s.fallback(fmt.Errorf("%w: upstream body is not JSON", domain.ErrMalformedBody))
	}

	// The body is passed through untouched; decoding is only for the archive
	// and logs, so shape mismatches are ignored.
	var res domain.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.Live(raw, nil)
	}
	return domain.Live(raw, &res)
}

func (s *Service) fallback(cause error) domain.Outcome {
	res := domain.FallbackResult(s.newID(), s.now())
	b, err := json.Marshal(res)
	if err != nil {
		// Result holds only strings, floats and bools.
		panic(fmt.Sprintf("marshal fallback result: %v", err))
	}
	return domain.Fallback(b, res, cause)
}

func (s *Service) archive(ctx context.Context, cmd RelayCommand, out domain.Outcome) {
	if s.Archive == nil && s.Objects == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	rec := &domain.Record{
		ID:         domain.RecordID(uuid.NewString()),
		ScenarioID: out.ScenarioID(),
		Source:     out.Source,
		Reason:     out.Reason,
		Error:      out.ErrMessage(),
		Client:     cmd.Client,
		Request:    string(cmd.Body),
		Result:     string(out.Body),
		CreatedAt:  s.now(),
	}
	if out.Result != nil {
		rec.ApprovalType = out.Result.Decision.ApprovalType
	}

	if s.Objects != nil {
		key := fmt.Sprintf("analyses/%s/%s.json", rec.CreatedAt.UTC().Format("2006-01-02"), rec.ID)
		url, err := s.Objects.PutJSON(ctx, key, out.Body)
		if err != nil {
			s.log().WithError(err).WithField("key", key).Warn("archive result object")
		} else {
			rec.ObjectURL = url
		}
	}
	if s.Archive != nil {
		if err := s.Archive.Save(ctx, rec); err != nil {
			s.log().WithError(err).WithField("record_id", rec.ID).Warn("archive relay outcome")
		}
	}
}

// ListRecords returns a page of archived relay outcomes, newest first.
func (s *Service) ListRecords(ctx context.Context, page, pageSize int) ([]*domain.Record, error) {
	if s.Archive == nil {
		return []*domain.Record{}, nil
	}
	recs, err := s.Archive.Paginate(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*domain.Record{}
	}
	return recs, nil
}

// GetRecord fetches one archived outcome.
func (s *Service) GetRecord(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	if s.Archive == nil {
		return nil, domain.ErrNotFound
	}
	return s.Archive.Get(ctx, id)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return domain.NewScenarioID()
	}
	return s.NewID()
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
