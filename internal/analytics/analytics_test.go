package analytics

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
)

func TestLogSink_WritesEventAndProps(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	NewLogSink(l).Track(context.Background(), EventSyncCompleted, map[string]any{"uploaded": 3})

	out := buf.String()
	assert.Contains(t, out, "event=sync_completed")
	assert.Contains(t, out, "uploaded=3")
	assert.Contains(t, out, "module=analytics")
}

func TestRecorderAndMulti(t *testing.T) {
	r1, r2 := &Recorder{}, &Recorder{}
	sink := Multi{r1, Nop{}, r2}

	sink.Track(context.Background(), EventSignedIn, nil)
	sink.Track(context.Background(), EventSyncCompleted, map[string]any{"failed": 1})
	sink.Track(context.Background(), EventSyncCompleted, map[string]any{"failed": 0})

	require.Len(t, r1.Events(), 3)
	require.Len(t, r2.Events(), 3)

	last, ok := r1.Last(EventSyncCompleted)
	require.True(t, ok)
	assert.Equal(t, 0, last.Props["failed"])

	_, ok = r1.Last(EventRestoreCompleted)
	assert.False(t, ok)
}
