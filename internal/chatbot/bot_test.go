package chatbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/newsradar/backend/internal/matchquery"
)

type fakeMatchReader struct {
	overview *matchquery.Overview
	err      error
	lastReq  matchquery.Request
}

func (f *fakeMatchReader) GetArticleMatches(_ context.Context, _ uuid.UUID, req matchquery.Request) (*matchquery.Overview, error) {
	f.lastReq = req
	return f.overview, f.err
}

type fakeAnswerer struct {
	answer      string
	err         error
	lastContext string
}

func (f *fakeAnswerer) AnswerQuestion(_ context.Context, question, matchContext string) (string, error) {
	f.lastContext = matchContext
	return f.answer, f.err
}

func TestAnswer_GroundsInRecentMatches(t *testing.T) {
	reader := &fakeMatchReader{overview: &matchquery.Overview{
		Items: []matchquery.ArticleMatchView{{
			Title:       "Solar output hits record",
			Summary:     "Grid operators report record generation.",
			PublishedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			Score:       0.8,
		}},
		Total: 1,
	}}
	llm := &fakeAnswerer{answer: "Solar generation set a record in January."}
	bot := NewBot(reader, llm)

	answer, err := bot.Answer(context.Background(), uuid.New(), "what happened with solar?")

	assert.Equal(t, nil, err)
	assert.Equal(t, "Solar generation set a record in January.", answer)

	assert.Equal(t, matchquery.SortRelevance, reader.lastReq.Sort)
	assert.Equal(t, 10, reader.lastReq.Limit)
	if !strings.Contains(llm.lastContext, "Solar output hits record") {
		t.Fatalf("context missing article title: %q", llm.lastContext)
	}
	if !strings.Contains(llm.lastContext, "2026-01-15") {
		t.Fatalf("context missing publish date: %q", llm.lastContext)
	}
}

func TestAnswer_NoMatches(t *testing.T) {
	reader := &fakeMatchReader{overview: &matchquery.Overview{Items: []matchquery.ArticleMatchView{}}}
	llm := &fakeAnswerer{answer: "should not be called"}
	bot := NewBot(reader, llm)

	answer, err := bot.Answer(context.Background(), uuid.New(), "anything new?")

	assert.Equal(t, nil, err)
	if !strings.Contains(answer, "no matched articles") {
		t.Fatalf("unexpected canned reply: %q", answer)
	}
	assert.Equal(t, "", llm.lastContext)
}

func TestAnswer_ReaderError(t *testing.T) {
	reader := &fakeMatchReader{err: errors.New("db gone")}
	bot := NewBot(reader, &fakeAnswerer{})

	_, err := bot.Answer(context.Background(), uuid.New(), "anything new?")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswer_LLMError(t *testing.T) {
	reader := &fakeMatchReader{overview: &matchquery.Overview{
		Items: []matchquery.ArticleMatchView{{Title: "Solar output hits record"}},
	}}
	bot := NewBot(reader, &fakeAnswerer{err: errors.New("model overloaded")})

	_, err := bot.Answer(context.Background(), uuid.New(), "anything new?")
	if err == nil {
		t.Fatal("expected error")
	}
}
