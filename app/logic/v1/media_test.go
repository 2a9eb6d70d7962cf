package v1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeVision struct {
	desc string
	err  error
}

func (f *fakeVision) DescribeImage(ctx context.Context, url string) (string, error) {
	return f.desc, f.err
}

func TestExtractImageURLs(t *testing.T) {
	urls := ExtractImageURLs("what is this https://cdn.example.com/cat.jpg and this https://x.io/dog.png?v=2")
	assert.Equal(t, []string{"https://cdn.example.com/cat.jpg", "https://x.io/dog.png?v=2"}, urls)

	assert.Empty(t, ExtractImageURLs("what is the capital of france"))
	assert.Empty(t, ExtractImageURLs("see https://example.com/page.html"))
}

func TestResolveMediaReplacesWithDescription(t *testing.T) {
	got := ResolveMedia(context.Background(), &fakeVision{desc: "an orange cat"}, "what breed is https://cdn.example.com/cat.jpg ?")
	assert.Equal(t, "what breed is [image: an orange cat] ?", got)
}

func TestResolveMediaKeepsLinkOnFailure(t *testing.T) {
	query := "what breed is https://cdn.example.com/cat.jpg ?"
	got := ResolveMedia(context.Background(), &fakeVision{err: assert.AnError}, query)
	assert.Equal(t, query, got)
}
