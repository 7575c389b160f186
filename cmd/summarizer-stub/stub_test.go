package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/contentsnap/internal/apperr"
	"github.com/hyperifyio/contentsnap/internal/summarize"
)

const article = "The first sentence sets the scene. The second adds detail. The third explains why. The fourth is an aside. The fifth wraps up. The sixth is trivia."

func TestStub_SpeaksTheClientProtocol(t *testing.T) {
	srv := httptest.NewServer(newRouter())
	defer srv.Close()
	c := summarize.New(srv.URL)

	h := c.CheckHealth(context.Background())
	assert.True(t, h.Online)

	res, err := c.Summarize(context.Background(), summarize.Request{Text: article, Format: summarize.FormatBulletPoints, DetailLevel: summarize.DetailLow})
	require.NoError(t, err)
	assert.Equal(t, "• The first sentence sets the scene.", res.Summary)

	res, err = c.Summarize(context.Background(), summarize.Request{Text: article, Format: summarize.FormatParagraph, DetailLevel: summarize.DetailHigh})
	require.NoError(t, err)
	assert.Equal(t, "The first sentence sets the scene. The second adds detail. The third explains why. The fourth is an aside. The fifth wraps up.", res.Summary)
	assert.Greater(t, res.Stats().CompressionRatio, 0)
}

func TestStub_RejectsUnknownFormatWithDetail(t *testing.T) {
	srv := httptest.NewServer(newRouter())
	defer srv.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/summarize", strings.NewReader(`{"text":"`+article+`","format":"haiku","detail_level":"low"}`))
	newRouter().ServeHTTP(rec, req)
	assert.Equal(t, 422, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown format")

	var ae *apperr.Error
	_, err := summarize.New(srv.URL).Summarize(context.Background(), summarize.Request{Text: "short", Format: summarize.FormatParagraph})
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three without end"}, splitSentences("One.  Two!\nThree without end"))
	assert.Empty(t, splitSentences("   "))
}
