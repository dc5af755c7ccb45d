package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cbattlegear/forkalytics/internal/models"
	"github.com/cbattlegear/forkalytics/internal/store"
	"github.com/cbattlegear/forkalytics/pkg/llm"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const (
	// minPostsForTopics is the minimum-data guard; hours with fewer
	// qualifying posts get no topic record at all.
	minPostsForTopics = 10

	// topicPostSample is how many top-engagement posts feed the prompt.
	topicPostSample = 200
)

// Topic is one extracted cluster.
type Topic struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords,omitempty"`
}

// TopicExtractor derives hourly topic clusters from post text via an
// external model. Best-effort: no configured model means every call is a
// logged skip.
type TopicExtractor struct {
	store    *store.Store
	provider llm.Provider
	model    string
	logger   logging.Logger
	now      func() time.Time
}

// NewTopicExtractor creates an extractor. provider may be nil, which turns
// every invocation into a skip.
func NewTopicExtractor(st *store.Store, provider llm.Provider, model string, logger logging.Logger) *TopicExtractor {
	return &TopicExtractor{
		store:    st,
		provider: provider,
		model:    model,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ExtractHourlyTopics produces the topic record for one hour. Idempotent
// per hour unless force is set. Malformed model output writes nothing; the
// next scheduled run retries.
func (t *TopicExtractor) ExtractHourlyTopics(ctx context.Context, hourStart time.Time, force bool) (Result, error) {
	hourStart = hourStart.UTC().Truncate(time.Hour)

	if t.provider == nil {
		t.logger.Debug("No model configured, skipping topic extraction")
		return ResultSkipped, nil
	}

	if !force {
		exists, err := t.store.HourlyTopicExists(ctx, hourStart)
		if err != nil {
			return ResultSkipped, err
		}
		if exists {
			return ResultSkipped, nil
		}
	}

	hourEnd := hourStart.Add(time.Hour)
	count, err := t.store.CountPostsInRange(ctx, hourStart, hourEnd)
	if err != nil {
		return ResultSkipped, err
	}
	if count < minPostsForTopics {
		t.logger.WithFields(logging.Fields{
			"hour":       hourStart,
			"post_count": count,
		}).Debug("Too few posts for topic extraction")
		return ResultSkipped, nil
	}

	posts, err := t.store.TopPostsByEngagement(ctx, hourStart, hourEnd, topicPostSample)
	if err != nil {
		return ResultSkipped, err
	}

	response, err := llm.CompleteText(ctx, t.provider, topicMessages(posts))
	if err != nil {
		t.logger.WithError(err).WithField("hour", hourStart).Warn("Topic extraction model call failed")
		return ResultSkipped, nil
	}

	topics, err := parseTopics(response)
	if err != nil {
		t.logger.WithError(err).WithField("hour", hourStart).Warn("Malformed topic extraction response")
		return ResultSkipped, nil
	}

	payload, err := json.Marshal(topics)
	if err != nil {
		return ResultSkipped, fmt.Errorf("encode topics: %w", err)
	}

	record := &models.HourlyTopic{
		InstanceID: t.store.InstanceID,
		HourStart:  hourStart,
		Topics:     payload,
		Model:      t.model,
		InputHash:  postsInputHash(posts),
		CreatedAt:  t.now(),
	}
	if err := t.store.WriteHourlyTopics(ctx, record); err != nil {
		return ResultSkipped, err
	}

	t.logger.WithFields(logging.Fields{
		"hour":   hourStart,
		"topics": len(topics),
	}).Info("Hourly topics written")
	return ResultWritten, nil
}

func topicMessages(posts []models.Post) []llm.Message {
	var sb strings.Builder
	for _, post := range posts {
		sb.WriteString("- ")
		sb.WriteString(truncate(post.ContentText, 280))
		sb.WriteString("\n")
	}
	return []llm.Message{
		{
			Role: "system",
			Content: "You identify discussion topics in social media posts. " +
				"Respond with a JSON array of at most 10 objects, each " +
				`{"topic": "short name", "keywords": ["..."]}. No prose.`,
		},
		{
			Role:    "user",
			Content: "Posts from the last hour:\n" + sb.String(),
		},
	}
}

// parseTopics decodes the model response, tolerating markdown code fences
// around the JSON.
func parseTopics(response string) ([]Topic, error) {
	cleaned := StripCodeFences(response)
	var topics []Topic
	if err := json.Unmarshal([]byte(cleaned), &topics); err != nil {
		return nil, fmt.Errorf("decode topics response: %w", err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("topics response was empty")
	}
	return topics, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, from a model response.
func StripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json")
		if firstLine := strings.TrimSpace(trimmed[:idx]); firstLine == "" || !strings.ContainsAny(firstLine, " \t{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// truncate cuts text to at most limit bytes on a rune boundary.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// postsInputHash fingerprints the post sample that produced a derived
// record, for audit and dedup.
func postsInputHash(posts []models.Post) string {
	var sb strings.Builder
	for _, post := range posts {
		fmt.Fprintf(&sb, "%s:%d;", post.ID, post.EngagementScore)
	}
	return ContentHash(sb.String())
}
