package batch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/backend/backendtest"
	"github.com/walteh/twoslash/pkg/batch"
	"github.com/walteh/twoslash/pkg/directive"
	"github.com/walteh/twoslash/pkg/twoslash"
)

const hoverSource = "foo.bar()\n//   ^?"

func TestRun(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{Hovers: map[string]string{"bar": "(method) bar()"}}

	runner, err := batch.New(twoslash.NewProcessor(fake, twoslash.Options{}), batch.Options{Concurrency: 1})
	require.NoError(t, err)

	docs := []batch.Document{
		{Name: "a.fake", Source: hoverSource},
		{Name: "b.fake", Source: hoverSource},
		{Name: "c.fake", Source: "//  ^?\nlet a = 1;"},
		{Name: "d.fake", Source: "plain"},
	}

	outcomes, err := runner.Run(ctx, docs)
	require.Error(t, err)
	require.ErrorIs(t, err, directive.ErrMalformedDirective)
	assert.Contains(t, err.Error(), "c.fake")

	require.Len(t, outcomes, 4)
	for i, doc := range docs {
		assert.Equal(t, doc.Name, outcomes[i].Name)
	}

	require.NoError(t, outcomes[0].Err)
	assert.False(t, outcomes[0].Cached)
	assert.True(t, outcomes[1].Cached)
	assert.Same(t, outcomes[0].Result, outcomes[1].Result)
	require.NotNil(t, outcomes[0].Result.Queries[0].Text)
	assert.Equal(t, "(method) bar()", *outcomes[0].Result.Queries[0].Text)

	assert.Nil(t, outcomes[2].Result)
	require.ErrorIs(t, outcomes[2].Err, directive.ErrMalformedDirective)

	require.NoError(t, outcomes[3].Err)
	assert.Equal(t, "plain", outcomes[3].Result.Code)

	assert.Equal(t, 2, fake.Compiles())

	again, err := runner.Run(ctx, []batch.Document{docs[0], docs[3]})
	require.NoError(t, err)
	assert.True(t, again[0].Cached)
	assert.True(t, again[1].Cached)
	assert.Equal(t, 2, fake.Compiles(), "second run is served from the cache")
}

func TestRunWithoutCache(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{}

	runner, err := batch.New(twoslash.NewProcessor(fake, twoslash.Options{}), batch.Options{CacheSize: -1, Concurrency: 1})
	require.NoError(t, err)

	outcomes, err := runner.Run(ctx, []batch.Document{{Name: "a", Source: "x"}, {Name: "b", Source: "x"}})
	require.NoError(t, err)
	assert.False(t, outcomes[1].Cached)
	assert.Equal(t, 2, fake.Compiles())
}

func TestKey(t *testing.T) {
	assert.Equal(t, batch.Key("go", "x"), batch.Key("go", "x"))
	assert.NotEqual(t, batch.Key("go", "x"), batch.Key("protobuf", "x"))
	assert.NotEqual(t, batch.Key("go", "x"), batch.Key("go", "y"))
	assert.Len(t, batch.Key("go", "x"), 64)
}
