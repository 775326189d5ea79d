// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cadence/internal/breaker"
	"github.com/tomtom215/cadence/internal/cache"
	"github.com/tomtom215/cadence/internal/catalog"
	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
	"github.com/tomtom215/cadence/internal/recency"
)

// Breaker operation names. Each AI call shape fails independently.
const (
	OpRecommendation = "recommendation"
	OpProfile        = "profile"
	OpFeedback       = "feedback"
	OpPlaylist       = "playlist"
	OpSelection      = "selection"
)

// Cache kinds.
const kindListening = "listening_data"

// Store is the persistence surface the orchestrator needs.
// *database.DB satisfies it.
type Store interface {
	InsertRecommendation(ctx context.Context, rec *models.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*models.Recommendation, error)
	InsertFeedback(ctx context.Context, fb *models.FeedbackEntry) error
	SaveProfile(ctx context.Context, subjectID string, profile *models.TasteProfile) error
	GetProfile(ctx context.Context, subjectID string) (*models.TasteProfile, error)
}

// Orchestrator runs the recommendation pipeline end to end: listening
// data aggregation, taste profiling, prompt assembly, AI calls through
// per-operation breakers, catalog resolution, recency enforcement, and
// persistence.
type Orchestrator struct {
	store     Store
	cache     *cache.TTL
	tracker   *recency.Tracker
	breakers  *breaker.Group
	generator llm.Generator
	validator *llm.Validator
	selector  *Selector
	source    catalog.DataSource
	searcher  catalog.Searcher
	playlists catalog.PlaylistWriter
	limiter   *SubjectLimiter
	cfg       config.OrchestratorConfig
	now       func() time.Time
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Store     Store
	Cache     *cache.TTL
	Tracker   *recency.Tracker
	Breakers  *breaker.Group
	Generator llm.Generator
	Source    catalog.DataSource
	Searcher  catalog.Searcher
	Playlists catalog.PlaylistWriter
}

// New creates an Orchestrator.
func New(deps Deps, cfg config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		store:     deps.Store,
		cache:     deps.Cache,
		tracker:   deps.Tracker,
		breakers:  deps.Breakers,
		generator: deps.Generator,
		validator: llm.NewValidator(),
		selector:  NewSelector(deps.Generator, deps.Breakers, llm.NewValidator()),
		source:    deps.Source,
		searcher:  deps.Searcher,
		playlists: deps.Playlists,
		limiter:   NewSubjectLimiter(cfg.MinInterval, cfg.MinIntervalLightning),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Recommend produces one recommendation for the subject.
func (o *Orchestrator) Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResult, error) {
	start := o.now()
	mode := req.Mode
	if mode == "" {
		mode = models.MethodStandard
	}

	fail := func(outcome string, err error) (*models.RecommendationResult, error) {
		metrics.RecordRecommendation(mode, outcome, o.now().Sub(start))
		return nil, err
	}

	if err := o.limiter.Allow(req.SubjectID, mode); err != nil {
		return fail("rate_limited", err)
	}

	data := o.listeningData(ctx, req.SubjectID)
	profile := o.profile(ctx, req.SubjectID, data)

	blacklist, recent, err := o.recencyState(ctx, req.SubjectID)
	if err != nil {
		// Recency is a guard rail, not a gate. Without history the
		// pipeline proceeds and may repeat itself.
		logging.Warn().Err(err).Str("subject", req.SubjectID).Msg("recency lookup degraded")
	}
	freq, _ := o.tracker.Frequency(ctx, req.SubjectID)
	warning := o.tracker.DiversityWarning(totalCount(freq))
	saturated := o.tracker.SaturatedArtists(freq)

	adjustment := o.withNowPlaying(ctx, req.SessionAdjustment)

	tier := llm.TierStandard
	if mode == models.MethodLightning {
		tier = llm.TierLightning
	}

	attempts := o.cfg.MaxSelectionRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		prompt := llm.RecommendationPrompt(profile, data, blacklist, warning, saturated, adjustment)

		result := o.breakers.Execute(ctx, OpRecommendation, func(ctx context.Context) (interface{}, error) {
			return o.generator.Generate(ctx, OpRecommendation, tier, prompt)
		})
		if !result.Success {
			outcome, err := o.vendorFailure(OpRecommendation, result)
			return fail(outcome, err)
		}

		raw, _ := result.Data.(string)
		suggestion := ParseSuggestion(raw)
		if suggestion == nil {
			return fail("unparsable", &UnparsableRecommendationError{Raw: raw})
		}
		if err := o.validator.Recommendation(suggestion.Title, suggestion.Artist, raw); err != nil {
			return fail("unparsable", &UnparsableRecommendationError{Raw: raw})
		}

		if o.tracker.IsDuplicate(suggestion.Title, suggestion.Artist, recent) {
			blacklist = rejectDuplicate(blacklist, suggestion.Title, suggestion.Artist, attempt)
			continue
		}

		candidates, _, err := catalog.FindCandidates(ctx, o.searcher, suggestion.Title, suggestion.Artist)
		if err != nil {
			return fail("catalog_error", fmt.Errorf("recommend: catalog search failed: %w", err))
		}
		if len(candidates) == 0 {
			return fail("no_match", &NoCatalogMatchError{
				Title:  suggestion.Title,
				Artist: suggestion.Artist,
				AIText: llm.Truncate(raw),
				Query:  catalog.SearchQuery(suggestion.Title, suggestion.Artist),
			})
		}

		outcome := o.selector.Select(ctx, suggestion.Title, suggestion.Artist, candidates)

		// Re-check against history: the resolved catalog track can
		// differ from what the AI literally suggested.
		if o.tracker.IsDuplicate(outcome.Track.Title, outcome.Track.Artist, recent) {
			blacklist = rejectDuplicate(blacklist, outcome.Track.Title, outcome.Track.Artist, attempt)
			continue
		}

		rec, err := o.persist(ctx, req.SubjectID, mode, profile, outcome)
		if err != nil {
			return fail("error", err)
		}

		metrics.RecordRecommendation(mode, "success", o.now().Sub(start))
		return &models.RecommendationResult{
			Recommendation: *rec,
			MatchScore:     &outcome.MatchScore,
			Confidence:     &outcome.Confidence,
			LowConfidence:  outcome.LowConfidence,
			SelectionMode:  outcome.Mode,
			Degraded:       data.Degraded,
			DataQuality:    data.Counts(),
		}, nil
	}

	return fail("duplicate_exhausted", &DuplicateExhaustedError{Attempts: attempts})
}

// rejectDuplicate records a dedup rejection and extends the prompt
// blacklist for the next attempt.
func rejectDuplicate(blacklist []string, title, artist string, attempt int) []string {
	metrics.DuplicateRejections.Inc()
	logging.Debug().Str("title", title).Str("artist", artist).Int("attempt", attempt).
		Msg("duplicate recommendation rejected")
	return append(blacklist, fmt.Sprintf("%q by %s", strings.ToLower(title), strings.ToLower(artist)))
}

// vendorFailure maps a failed breaker result onto the pipeline error
// taxonomy. Rate-limit errors pass through untouched so the API layer
// can relay Retry-After.
func (o *Orchestrator) vendorFailure(op string, result breaker.Result) (outcome string, err error) {
	if result.Fallback {
		retryIn := o.breakers.Status()[op].RetryIn
		return "vendor_unavailable", &VendorUnavailableError{Operation: op, RetryIn: retryIn}
	}
	if llm.IsRateLimit(result.Err) {
		return "rate_limited", result.Err
	}
	return "vendor_error", fmt.Errorf("recommend: %s call failed: %w", op, result.Err)
}

// withNowPlaying folds the current playback state into the session
// adjustment so the AI can react to what is on right now. Playback is
// best effort: errors and silence both mean no addition.
func (o *Orchestrator) withNowPlaying(ctx context.Context, adjustment string) string {
	pc, err := o.source.GetPlaybackContext(ctx)
	if err != nil || pc == nil || !pc.IsPlaying {
		return adjustment
	}
	nowPlaying := fmt.Sprintf("The listener is currently playing %q by %s.", pc.Track.Title, pc.Track.Artist)
	if adjustment == "" {
		return nowPlaying
	}
	return nowPlaying + " " + adjustment
}

// listeningData returns the subject's listening snapshot, cached when a
// healthy aggregate is fresh. Degraded snapshots are never cached, one
// flaky read should not pin a hole in the data for the full TTL.
func (o *Orchestrator) listeningData(ctx context.Context, subjectID string) *models.ListeningData {
	if cached, ok := o.cache.Get(subjectID, kindListening); ok {
		if data, ok := cached.(*models.ListeningData); ok {
			return data
		}
	}

	data := catalog.Aggregate(ctx, o.source)
	if !data.Degraded {
		o.cache.Put(subjectID, kindListening, data)
	}
	return data
}

// profile returns the freshest usable taste profile: persisted if young
// enough, then a fresh AI analysis, then a stale persisted profile,
// then a template built from raw listening data.
func (o *Orchestrator) profile(ctx context.Context, subjectID string, data *models.ListeningData) *models.TasteProfile {
	stored, storedErr := o.store.GetProfile(ctx, subjectID)
	if storedErr == nil && o.now().Sub(stored.GeneratedAt) < o.cfg.ProfileMaxAge {
		stored.Source = "cached"
		return stored
	}

	result := o.breakers.Execute(ctx, OpProfile, func(ctx context.Context) (interface{}, error) {
		return o.generator.Generate(ctx, OpProfile, llm.TierStandard, llm.ProfilePrompt(data))
	})
	if result.Success {
		raw, _ := result.Data.(string)
		profile, err := o.validator.Profile(raw)
		if err == nil {
			if err := o.store.SaveProfile(ctx, subjectID, profile); err != nil {
				logging.Warn().Err(err).Str("subject", subjectID).Msg("profile save failed")
			}
			return profile
		}
		logging.Warn().Err(err).Msg("profile analysis rejected")
	}

	if storedErr == nil {
		metrics.ProfileFallbacks.WithLabelValues("stale").Inc()
		stored.Source = "cached"
		return stored
	}

	metrics.ProfileFallbacks.WithLabelValues("template").Inc()
	return templateProfile(data, o.now())
}

// templateProfile builds a last-resort profile from raw listening data
// without any AI involvement.
func templateProfile(data *models.ListeningData, now time.Time) *models.TasteProfile {
	summary := "Not enough listening history for a detailed profile; favor broadly appealing tracks."
	var key []string
	if data != nil && len(data.TopArtists) > 0 {
		key = data.TopArtists
		if len(key) > 5 {
			key = key[:5]
		}
		summary = fmt.Sprintf("Listens primarily to %s.", strings.Join(key, ", "))
	}
	return &models.TasteProfile{
		Summary:     summary,
		CoreGenres:  []string{"unknown"},
		KeyArtists:  key,
		Source:      "template",
		GeneratedAt: now.UTC(),
	}
}

func (o *Orchestrator) recencyState(ctx context.Context, subjectID string) (blacklist []string, recent []models.Recommendation, err error) {
	blacklist, err = o.tracker.Blacklist(ctx, subjectID)
	if err != nil {
		return nil, nil, err
	}
	recent, err = o.tracker.Recent(ctx, subjectID)
	if err != nil {
		return blacklist, nil, err
	}
	return blacklist, recent, nil
}

func (o *Orchestrator) persist(ctx context.Context, subjectID, method string, profile *models.TasteProfile, outcome *SelectionOutcome) (*models.Recommendation, error) {
	rec := &models.Recommendation{
		ID:              uuid.NewString(),
		SubjectID:       subjectID,
		ItemTitle:       outcome.Track.Title,
		ItemArtist:      outcome.Track.Artist,
		ItemURI:         outcome.Track.URI,
		AlbumName:       outcome.Track.Album,
		AIReasoning:     outcome.Reasoning,
		ProfileSnapshot: profile.Summary,
		Method:          method,
		ConfidenceScore: &outcome.Confidence,
		MatchScore:      &outcome.MatchScore,
		CreatedAt:       o.now().UTC(),
	}
	if err := o.store.InsertRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("recommend: failed to persist recommendation: %w", err)
	}
	return rec, nil
}

// InvalidateSubject drops the subject's cached listening data. Called
// after a history clear so stale aggregates cannot resurface.
func (o *Orchestrator) InvalidateSubject(subjectID string) {
	o.cache.ClearSubject(subjectID)
}

func totalCount(freq map[string]int) int {
	total := 0
	for _, n := range freq {
		total += n
	}
	return total
}
