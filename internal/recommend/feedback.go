// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/cadence/internal/database"
	"github.com/tomtom215/cadence/internal/llm"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/models"
)

// Sentiment keyword fallback, used whenever the AI feedback path is
// open or fails. Matching is on whole lowercase words so "dislike"
// never counts as "like".
var (
	positiveWords = map[string]struct{}{
		"love": {}, "great": {}, "awesome": {}, "like": {}, "good": {}, "perfect": {},
	}
	negativeWords = map[string]struct{}{
		"hate": {}, "bad": {}, "awful": {}, "dislike": {}, "terrible": {}, "boring": {},
	}
)

// Feedback records listener feedback on a recommendation. Sentiment
// analysis runs through the feedback breaker; persistence never depends
// on AI availability.
func (o *Orchestrator) Feedback(ctx context.Context, req *models.FeedbackRequest) (*models.FeedbackResult, error) {
	rec, err := o.store.GetRecommendation(ctx, req.RecommendationID)
	if err != nil {
		return nil, err
	}
	if rec.SubjectID != req.SubjectID {
		// Cross-subject feedback is indistinguishable from a missing
		// recommendation on purpose.
		return nil, database.ErrNotFound
	}

	sentiment, processed, aiProcessed := o.analyzeFeedback(ctx, req.Text, rec)

	entry := &models.FeedbackEntry{
		ID:               uuid.NewString(),
		SubjectID:        req.SubjectID,
		RecommendationID: req.RecommendationID,
		Text:             req.Text,
		Sentiment:        sentiment,
		AIProcessedText:  processed,
		CreatedAt:        o.now().UTC(),
	}
	if err := o.store.InsertFeedback(ctx, entry); err != nil {
		return nil, fmt.Errorf("recommend: failed to persist feedback: %w", err)
	}

	return &models.FeedbackResult{Feedback: *entry, AIProcessed: aiProcessed}, nil
}

func (o *Orchestrator) analyzeFeedback(ctx context.Context, text string, rec *models.Recommendation) (sentiment, processed string, aiProcessed bool) {
	prompt := llm.FeedbackPrompt(text, rec.ItemTitle, rec.ItemArtist)

	result := o.breakers.Execute(ctx, OpFeedback, func(ctx context.Context) (interface{}, error) {
		return o.generator.Generate(ctx, OpFeedback, llm.TierStandard, prompt)
	})
	if result.Success {
		raw, _ := result.Data.(string)
		analysis, err := o.validator.FeedbackInsight(raw)
		if err == nil {
			return analysis.Sentiment, analysis.ProcessedText, true
		}
		logging.Warn().Err(err).Msg("feedback analysis rejected")
	}

	return KeywordSentiment(text), "", false
}

// KeywordSentiment classifies feedback text by counting sentiment
// keywords. Ties and keyword-free text are neutral.
func KeywordSentiment(text string) string {
	positive, negative := 0, 0
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,!?;:'\"()")
		if _, ok := positiveWords[word]; ok {
			positive++
		}
		if _, ok := negativeWords[word]; ok {
			negative++
		}
	}

	switch {
	case positive > negative:
		return models.SentimentPositive
	case negative > positive:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
