// Package enrich attaches derived signals to ingested posts: deterministic
// lexicon sentiment locally, topic clusters and daily summaries via an
// external model when one is configured.
package enrich

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/cbattlegear/forkalytics/internal/models"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/database"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const (
	// DefaultSentimentBatchSize caps one analysis sweep.
	DefaultSentimentBatchSize = 100

	// minAnalyzableLength is the shortest text worth scoring. Shorter posts
	// are marked analyzed without a sentiment row.
	minAnalyzableLength = 10

	sentimentMethod = "lexicon-v1"

	positiveThreshold = 0.05
	negativeThreshold = -0.05
)

// SentimentAnalyzer scores unanalyzed posts with the local lexicon.
type SentimentAnalyzer struct {
	db      *sql.DB
	store   *store.Store
	lexicon *Lexicon
	logger  logging.Logger
	now     func() time.Time
}

// NewSentimentAnalyzer creates an analyzer over the given store.
func NewSentimentAnalyzer(db *sql.DB, st *store.Store, logger logging.Logger) *SentimentAnalyzer {
	return &SentimentAnalyzer{
		db:      db,
		store:   st,
		lexicon: NewLexicon(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LabelForScore maps a compound score onto the three-way label.
func LabelForScore(score float64) string {
	switch {
	case score >= positiveThreshold:
		return "positive"
	case score <= negativeThreshold:
		return "negative"
	default:
		return "neutral"
	}
}

// AnalyzeBatch scores up to batchSize pending posts and returns how many
// sentiment rows were written. Every selected post ends up marked analyzed,
// scored or not, so a problem post can never wedge the loop.
func (a *SentimentAnalyzer) AnalyzeBatch(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultSentimentBatchSize
	}

	posts, err := a.store.SelectUnanalyzedPosts(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		return 0, nil
	}

	scored := 0
	for i := range posts {
		post := &posts[i]
		if err := ctx.Err(); err != nil {
			return scored, err
		}

		if len(post.ContentText) < minAnalyzableLength {
			if err := a.store.MarkPostAnalyzed(ctx, a.db, post.ID); err != nil {
				return scored, err
			}
			continue
		}

		if err := a.analyzeOne(ctx, post); err != nil {
			// Mark it analyzed anyway; retrying a post that cannot be stored
			// would stall the whole batch forever.
			a.logger.WithError(err).WithField("post_id", post.ID).Warn("Sentiment analysis failed for post")
			if markErr := a.store.MarkPostAnalyzed(ctx, a.db, post.ID); markErr != nil {
				return scored, markErr
			}
			continue
		}
		scored++
	}

	a.logger.WithFields(logging.Fields{
		"selected": len(posts),
		"scored":   scored,
	}).Info("Sentiment batch complete")
	return scored, nil
}

func (a *SentimentAnalyzer) analyzeOne(ctx context.Context, post *models.Post) error {
	score := a.lexicon.Compound(post.ContentText)
	sentiment := &models.PostSentiment{
		PostID:      post.ID,
		InstanceID:  post.InstanceID,
		Label:       LabelForScore(score),
		Score:       score,
		Method:      sentimentMethod,
		ContentHash: ContentHash(post.ContentText),
		AnalyzedAt:  a.now(),
	}

	return database.WithTransaction(ctx, a.db, func(tx *sql.Tx) error {
		if err := a.store.UpsertPostSentiment(ctx, tx, sentiment); err != nil {
			return err
		}
		return a.store.MarkPostAnalyzed(ctx, tx, post.ID)
	})
}

// ContentHash fingerprints the analyzed text for dedup and audit.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
