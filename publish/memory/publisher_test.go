package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	pub := New()
	ctx := context.Background()

	require.NoError(t, pub.Put(ctx, "yoga.ics", []byte("v1"), "text/calendar"))
	require.NoError(t, pub.Put(ctx, "yoga.xml", []byte("<x/>"), "application/calendar+xml"))
	require.NoError(t, pub.Put(ctx, "yoga.ics", []byte("v2"), "text/calendar"))

	doc, ok := pub.Get("yoga.ics")
	require.True(t, ok)
	assert.Equal(t, "v2", string(doc.Data))
	assert.Equal(t, "text/calendar", doc.ContentType)

	_, ok = pub.Get("missing.ics")
	assert.False(t, ok)

	assert.Equal(t, []string{"yoga.ics", "yoga.xml"}, pub.Keys())
}

func TestPutCopiesData(t *testing.T) {
	pub := New()
	data := []byte("original")
	require.NoError(t, pub.Put(context.Background(), "feed.ics", data, ""))

	data[0] = 'X'
	doc, ok := pub.Get("feed.ics")
	require.True(t, ok)
	assert.Equal(t, "original", string(doc.Data))

	doc.Data[0] = 'Y'
	again, _ := pub.Get("feed.ics")
	assert.Equal(t, "original", string(again.Data))
}

func TestPutRejectsEmptyKey(t *testing.T) {
	pub := New()
	assert.Error(t, pub.Put(context.Background(), "  ", []byte("data"), ""))
}
