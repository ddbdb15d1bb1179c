package connector

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsynth/internal/model"
)

func TestFileSourceJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	content := `{"statusCode": 500, "url": "/a"}

not json
{"statusCode": 200}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src, err := NewFileSource(map[string]interface{}{"path": path})
	require.NoError(t, err)

	rec := newRecorder()
	require.NoError(t, src.Start(context.Background(), rec))
	rec.waitEnd(t)
	require.NoError(t, src.Stop(context.Background()))

	assert.Equal(t, []model.Event{
		map[string]interface{}{"statusCode": float64(500), "url": "/a"},
		map[string]interface{}{"statusCode": float64(200)},
	}, rec.Events())
	require.Len(t, rec.Errors(), 1)
	assert.Contains(t, rec.Errors()[0].Error(), "in.json:3: failed to parse line")
}

func TestFileSourceCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("\"name\", age ,active\nada,36,true\nbob,4.5,x\n"), 0644))

	src, err := NewFileSource(map[string]interface{}{"path": path})
	require.NoError(t, err)
	rec := newRecorder()
	require.NoError(t, src.Start(context.Background(), rec))
	rec.waitEnd(t)

	assert.Equal(t, []model.Event{
		map[string]interface{}{"name": "ada", "age": 36, "active": true},
		map[string]interface{}{"name": "bob", "age": 4.5, "active": "x"},
	}, rec.Events())
}

func TestFileSourceMissingFile(t *testing.T) {
	src, err := NewFileSource(map[string]interface{}{"path": filepath.Join(t.TempDir(), "nope.json")})
	require.NoError(t, err)
	assert.Error(t, src.Start(context.Background(), newRecorder()))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "result.json")
	sink, err := NewFileSink(map[string]interface{}{"path": path})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is created lazily")

	require.NoError(t, sink.Write(ctx, map[string]interface{}{"code": 404}))
	require.NoError(t, sink.Write(ctx, float64(30)))
	require.NoError(t, sink.Close(ctx))
	require.NoError(t, sink.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"code\":404}\n30\n", string(data))

	// appends on reopen
	sink, err = NewFileSink(map[string]interface{}{"path": path})
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, "x"))
	require.NoError(t, sink.Close(ctx))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"code\":404}\n30\n\"x\"\n", string(data))

	assert.Error(t, sink.Write(ctx, func() {}))

	_, err = NewFileSink(map[string]interface{}{})
	assert.Error(t, err)
}

func TestConsoleSink(t *testing.T) {
	ctx := context.Background()
	ev := map[string]interface{}{"a": 1}

	var buf bytes.Buffer
	sink, err := NewConsoleSinkWriter(&buf, "json")
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, ev))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())

	buf.Reset()
	sink, err = NewConsoleSinkWriter(&buf, "compact")
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, ev))
	assert.Equal(t, "{\"a\":1}\n", buf.String())

	buf.Reset()
	sink, err = NewConsoleSinkWriter(&buf, "raw")
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, "hello"))
	assert.Equal(t, "hello\n", buf.String())
	require.NoError(t, sink.Close(ctx))

	_, err = NewConsoleSink(map[string]interface{}{"format": "yaml"})
	assert.Error(t, err)
}
