package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/inkwell/internal/apperr"
)

type recorder struct{ got []Notification }

func (r *recorder) Notify(_ context.Context, n Notification) { r.got = append(r.got, n) }

func TestFailure_SkipsSilentErrors(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	assert.False(t, Failure(ctx, rec, "scan", context.Canceled))
	assert.False(t, Failure(ctx, rec, "scan", fmt.Errorf("wrapped: %w", apperr.ErrSuperseded)))
	assert.False(t, Failure(ctx, rec, "scan", nil))
	assert.Empty(t, rec.got)

	assert.True(t, Failure(ctx, rec, "save failed", errors.New("disk full")))
	if assert.Len(t, rec.got, 1) {
		assert.Equal(t, "save failed: disk full", rec.got[0].Message)
		assert.Equal(t, Error, rec.got[0].Severity)
		assert.False(t, rec.got[0].Time.IsZero())
	}
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Send(context.Background(), Fanout{a, nil, b}, Success, "saved %s", "p.md")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, "saved p.md", b.got[0].Message)
	Send(context.Background(), nil, Info, "nobody listens")
}

func TestSeverityText(t *testing.T) {
	for sev, want := range map[Severity]string{Info: "info", Success: "success", Warning: "warning", Error: "error"} {
		text, err := sev.MarshalText()
		assert.NoError(t, err)
		assert.Equal(t, want, string(text))
	}
}
