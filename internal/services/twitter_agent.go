package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
)

const (
	// MaxTweetLength is the character limit of a single post.
	MaxTweetLength = 280
	// MaxThreadLength bounds the number of posts in one thread.
	MaxThreadLength = 25

	DefaultThreadCount = 3
	MaxGeneratedThread = 10
	maxPromptLength    = 500
	tweetTokenBudget   = 60
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// TruncateTweet cuts s to MaxTweetLength characters, marking the cut with
// an ellipsis.
func TruncateTweet(s string) string {
	if utf8.RuneCountInString(s) <= MaxTweetLength {
		return s
	}
	r := []rune(s)
	return string(r[:MaxTweetLength-3]) + "..."
}

// HashtagsFromPrompt builds up to two hashtags from words longer than three
// characters.
func HashtagsFromPrompt(prompt string) string {
	var tags []string
	for _, w := range strings.Fields(prompt) {
		if len(tags) == 2 {
			break
		}
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		w = nonAlphanumeric.ReplaceAllString(w, "")
		if w == "" {
			continue
		}
		tags = append(tags, "#"+w)
	}
	return strings.Join(tags, " ")
}

// withHashtags appends prompt hashtags when the text has none.
func withHashtags(text, prompt string) string {
	if strings.Contains(text, "#") {
		return text
	}
	tags := HashtagsFromPrompt(prompt)
	if tags == "" {
		return text
	}
	if text == "" {
		return tags
	}
	return text + " " + tags
}

// stripPrompt removes the prompt echoed back by the model.
func stripPrompt(generated, prompt string) string {
	if strings.HasPrefix(generated, prompt) {
		return generated[len(prompt):]
	}
	return strings.Replace(generated, prompt, "", 1)
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ThreadPostError reports a thread chain that stopped at tweet Index
// (1-based). Posted holds the ids of tweets 1..Index-1, which stay posted.
type ThreadPostError struct {
	Index  int
	Total  int
	Posted []string
	Err    error
}

func (e *ThreadPostError) Error() string {
	return fmt.Sprintf("thread failed at tweet %d of %d: %v", e.Index, e.Total, e.Err)
}

func (e *ThreadPostError) Unwrap() error { return e.Err }

// Message is the user-facing description of the failure.
func (e *ThreadPostError) Message() string {
	return fmt.Sprintf("Failed to post tweet %d of %d: %s", e.Index, e.Total, MessageOf(e.Err))
}

// PostedTweet is one tweet created on the user's timeline.
type PostedTweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Verification is the result of checking a linked Twitter account.
type Verification struct {
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
}

// TwitterAgent generates and posts tweets on behalf of a linked user.
type TwitterAgent struct {
	generator  TextGenerator
	api        TwitterAPI
	vault      *TokenVault
	activities *ActivityService
}

func NewTwitterAgent(generator TextGenerator, api TwitterAPI, vault *TokenVault, activities *ActivityService) *TwitterAgent {
	return &TwitterAgent{generator: generator, api: api, vault: vault, activities: activities}
}

// Generate produces one tweet about prompt.
func (a *TwitterAgent) Generate(ctx context.Context, userID, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", Validation("Prompt is required")
	}
	if utf8.RuneCountInString(prompt) > maxPromptLength {
		return "", Validation("Prompt must be at most 500 characters")
	}

	fullPrompt := fmt.Sprintf("Generate a tweet about %s. Make it engaging and professional, include relevant hashtags:\n\nTweet:", prompt)
	generated, err := a.generator.Generate(ctx, fullPrompt, GenerationParams{
		MaxNewTokens: tweetTokenBudget,
		Temperature:  0.7,
		TopK:         50,
		DoSample:     true,
	})
	if err != nil {
		return "", Upstream("Error generating tweet", err)
	}

	var tweet string
	if lines := nonEmptyLines(stripPrompt(generated, fullPrompt)); len(lines) > 0 {
		tweet = lines[0]
	}
	tweet = TruncateTweet(withHashtags(tweet, prompt))
	if tweet == "" {
		return "", Upstream("Error generating tweet", fmt.Errorf("model returned no usable text"))
	}

	_, err = a.activities.Record(ctx, userID, models.ActivityTwitter, "Tweet Generation", tweet, map[string]interface{}{
		"prompt": prompt,
	})
	if err != nil {
		return "", err
	}
	return tweet, nil
}

// GenerateThread produces count numbered tweets about topic; count defaults
// to DefaultThreadCount when zero.
func (a *TwitterAgent) GenerateThread(ctx context.Context, userID, topic string, count int) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, Validation("Topic is required")
	}
	if utf8.RuneCountInString(topic) > maxPromptLength {
		return nil, Validation("Topic must be at most 500 characters")
	}
	if count == 0 {
		count = DefaultThreadCount
	}
	if count < 1 || count > MaxGeneratedThread {
		return nil, Validation(fmt.Sprintf("Tweet count must be between 1 and %d", MaxGeneratedThread))
	}

	fullPrompt := fmt.Sprintf("Generate a Twitter thread about %s. Make it engaging and informative, with each tweet building on the previous one. Include relevant hashtags in the last tweet:\n\nThread:", topic)
	generated, err := a.generator.Generate(ctx, fullPrompt, GenerationParams{
		MaxNewTokens: tweetTokenBudget * count,
		Temperature:  0.7,
		TopK:         50,
		DoSample:     true,
	})
	if err != nil {
		return nil, Upstream("Error generating thread", err)
	}

	lines := nonEmptyLines(stripPrompt(generated, fullPrompt))
	if len(lines) == 0 {
		return nil, Upstream("Error generating thread", fmt.Errorf("model returned no usable text"))
	}
	if len(lines) > count {
		lines = lines[:count]
	}

	tweets := make([]string, len(lines))
	for i, line := range lines {
		text := fmt.Sprintf("%d/%d %s", i+1, count, line)
		if i == len(lines)-1 {
			text = withHashtags(text, topic)
		}
		tweets[i] = TruncateTweet(text)
	}

	_, err = a.activities.Record(ctx, userID, models.ActivityTwitter, "Thread Generation", strings.Join(tweets, "\n\n"), map[string]interface{}{
		"topic":      topic,
		"tweetCount": count,
	})
	if err != nil {
		return nil, err
	}
	return tweets, nil
}

// Post publishes content as a single tweet.
func (a *TwitterAgent) Post(ctx context.Context, id *Identity, content string) (*PostedTweet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Validation("Tweet content is required")
	}

	tw, err := a.vault.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	text := TruncateTweet(content)
	tweetID, err := a.api.PostTweet(ctx, tw.AccessToken, text, "")
	if err != nil {
		return nil, mapTwitterError(err, "post tweet")
	}

	_, err = a.activities.Record(ctx, id.UserID, models.ActivityTwitter, "Tweet Posted", text, map[string]interface{}{
		"posted":  true,
		"tweetId": tweetID,
	})
	if err != nil {
		return nil, err
	}
	return &PostedTweet{ID: tweetID, Text: text}, nil
}

// PostThread posts tweets as a reply chain, strictly in order. The first
// failure stops the chain; tweets already posted are left in place. The
// chain runs detached from ctx cancellation once started.
func (a *TwitterAgent) PostThread(ctx context.Context, id *Identity, tweets []string) ([]PostedTweet, error) {
	if len(tweets) == 0 {
		return nil, Validation("Invalid thread format")
	}
	if len(tweets) > MaxThreadLength {
		return nil, Validation(fmt.Sprintf("Threads are limited to %d tweets", MaxThreadLength))
	}
	texts := make([]string, len(tweets))
	for i, t := range tweets {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, Validation(fmt.Sprintf("Tweet %d is empty", i+1))
		}
		texts[i] = TruncateTweet(t)
	}

	tw, err := a.vault.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	chainCtx := context.WithoutCancel(ctx)
	posted := make([]PostedTweet, 0, len(texts))
	ids := make([]string, 0, len(texts))
	replyTo := ""
	for i, text := range texts {
		tweetID, err := a.api.PostTweet(chainCtx, tw.AccessToken, text, replyTo)
		if err != nil {
			return nil, &ThreadPostError{
				Index:  i + 1,
				Total:  len(texts),
				Posted: ids,
				Err:    mapTwitterError(err, "post thread"),
			}
		}
		posted = append(posted, PostedTweet{ID: tweetID, Text: text})
		ids = append(ids, tweetID)
		replyTo = tweetID
	}

	_, err = a.activities.Record(chainCtx, id.UserID, models.ActivityTwitter, "Thread Posted", strings.Join(texts, "\n\n"), map[string]interface{}{
		"posted":   true,
		"tweetIds": ids,
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// Verify reports whether the user's delegated tokens are usable.
func (a *TwitterAgent) Verify(ctx context.Context, id *Identity) (*Verification, error) {
	tw, err := a.vault.Resolve(ctx, id)
	if err != nil {
		if KindOf(err) == KindNotConnected {
			return &Verification{Connected: false}, nil
		}
		return nil, err
	}

	me, err := a.api.Me(ctx, tw.AccessToken)
	if err != nil {
		return &Verification{Connected: false}, nil
	}
	return &Verification{Connected: true, Username: me.Username}, nil
}
