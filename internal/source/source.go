package source

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"castsync/internal/logging"
	"castsync/internal/services"
	"castsync/internal/services/regional"
	"castsync/internal/textnorm"
)

const stageName = "source"

// Request describes the media item whose regional cast is wanted.
type Request struct {
	SubjectID     string
	Title         string
	OriginalTitle string
	Year          int
}

// Result is a located cast list and the strategy that found it.
type Result struct {
	SubjectID string
	Strategy  string
	Cast      []regional.CastMember
}

// RegionalAPI is the subset of the regional client used for lookups.
type RegionalAPI interface {
	GetCastForSubject(ctx context.Context, subjectID string) ([]regional.CastMember, error)
	SearchSubject(ctx context.Context, title string, year int) ([]regional.Subject, error)
}

// Strategy is one way of locating a cast list.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (*Result, error)
}

// Chain tries strategies in order.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain builds a chain over strategies. Nil entries are skipped.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	c := &Chain{logger: logging.NewComponentLogger(logger, stageName)}
	for _, s := range strategies {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c
}

// Default returns the standard chain: the item's provider id, then a title
// search.
func Default(api RegionalAPI, logger *slog.Logger) *Chain {
	if api == nil {
		return NewChain(logger)
	}
	return NewChain(logger, BySubjectID{API: api}, ByTitleSearch{API: api})
}

// Attempt returns the first strategy's result. When every strategy misses
// the error wraps services.ErrNotFound.
func (c *Chain) Attempt(ctx context.Context, req Request) (*Result, error) {
	if c == nil || len(c.strategies) == 0 {
		return nil, services.Wrap(services.ErrNotFound, stageName, "lookup", "No regional source configured", nil)
	}
	logger := logging.WithContext(ctx, c.logger)
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.Attempt(ctx, req)
		if errors.Is(err, services.ErrNotFound) {
			logger.Debug("regional strategy missed",
				logging.String("strategy", s.Name()),
				logging.Error(err),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		res.Strategy = s.Name()
		logger.Info("regional cast located",
			logging.String(logging.FieldEventType, "regional_cast_located"),
			logging.String("strategy", res.Strategy),
			logging.String("subject_id", res.SubjectID),
			logging.Int("cast", len(res.Cast)),
		)
		return res, nil
	}
	return nil, services.Wrap(services.ErrNotFound, stageName, "lookup", "Regional subject not found", nil)
}

// BySubjectID uses the regional provider id stored on the media item.
type BySubjectID struct {
	API RegionalAPI
}

func (BySubjectID) Name() string { return "subject_id" }

func (s BySubjectID) Attempt(ctx context.Context, req Request) (*Result, error) {
	id := strings.TrimSpace(req.SubjectID)
	if id == "" {
		return nil, services.Wrap(services.ErrNotFound, stageName, s.Name(), "Item has no regional id", nil)
	}
	cast, err := s.API.GetCastForSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{SubjectID: id, Cast: cast}, nil
}

// ByTitleSearch searches by title and accepts a hit whose title or original
// title matches and whose year agrees when both sides know it.
type ByTitleSearch struct {
	API RegionalAPI
}

func (ByTitleSearch) Name() string { return "title_search" }

func (s ByTitleSearch) Attempt(ctx context.Context, req Request) (*Result, error) {
	titles := candidateTitles(req)
	if len(titles) == 0 {
		return nil, services.Wrap(services.ErrNotFound, stageName, s.Name(), "Item has no title", nil)
	}
	for _, title := range titles {
		subjects, err := s.API.SearchSubject(ctx, title, req.Year)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if subject := pickSubject(subjects, titles, req.Year); subject != nil {
			cast, err := s.API.GetCastForSubject(ctx, subject.ID)
			if err != nil {
				return nil, err
			}
			return &Result{SubjectID: subject.ID, Cast: cast}, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, stageName, s.Name(), "No matching subject", nil)
}

func candidateTitles(req Request) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range []string{req.Title, req.OriginalTitle} {
		t = strings.TrimSpace(t)
		key := textnorm.NameKey(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func pickSubject(subjects []regional.Subject, titles []string, year int) *regional.Subject {
	keys := make(map[string]bool, len(titles))
	for _, t := range titles {
		keys[textnorm.NameKey(t)] = true
	}
	for i := range subjects {
		sub := &subjects[i]
		if strings.TrimSpace(sub.ID) == "" {
			continue
		}
		if !keys[textnorm.NameKey(sub.Title)] && !keys[textnorm.NameKey(sub.OriginalTitle)] {
			continue
		}
		if !yearAgrees(sub.Year, year) {
			continue
		}
		return sub
	}
	return nil
}

func yearAgrees(raw string, want int) bool {
	got, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || got == 0 || want == 0 {
		return true
	}
	return got == want
}
