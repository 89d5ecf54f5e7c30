package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestHandleSendEmailTaskSkipsBadPayload(t *testing.T) {
	handler := HandleSendEmailTask(&Mailer{})
	task := asynq.NewTask(TaskTypeSendEmail, []byte("not json"))

	err := handler(context.Background(), task)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSendEmailTaskDeliversThroughMailer(t *testing.T) {
	handler := HandleSendEmailTask(nil)
	task, err := NewSendEmailTask(SendEmailPayload{
		To:      "pharmacien@pharmaflow.local",
		Subject: "Alerte stock",
		Body:    "test",
	})
	require.NoError(t, err)

	// A nil mailer drops the message instead of dialing SMTP.
	require.NoError(t, handler(context.Background(), task))
}

func TestSendWithoutAddressLogsAndDrops(t *testing.T) {
	var buf bytes.Buffer
	mailer := &Mailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, mailer.Send("pharmacien@pharmaflow.local", "Alerte stock", "corps"))

	out := buf.String()
	require.Contains(t, out, "dropping email")
	require.Contains(t, out, "pharmacien@pharmaflow.local")
}

type fakeSnapshotEnqueuer struct {
	calls int
	err   error
}

func (f *fakeSnapshotEnqueuer) EnqueueStatsSnapshot(ctx context.Context) (*asynq.TaskInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func TestTriggerSnapshotQueuesTask(t *testing.T) {
	enqueuer := &fakeSnapshotEnqueuer{}
	h := NewHandler(nil, enqueuer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	h.MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/snapshot", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, enqueuer.calls)
	require.Contains(t, rec.Body.String(), `"queued":true`)
	require.Contains(t, rec.Body.String(), "task-1")
}

func TestTriggerSnapshotUnavailableWithoutQueue(t *testing.T) {
	h := NewHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := chi.NewRouter()
	h.MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/snapshot", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFormatLowStockAlert(t *testing.T) {
	body := formatLowStockAlert([]lowStockRow{
		{Name: "Azithromycine", Quantity: 8, MinQuantity: 20},
		{Name: "Oméprazole", Quantity: 5, MinQuantity: 15},
	})

	require.Contains(t, body, "Azithromycine: 8 en stock (seuil 20)")
	require.Contains(t, body, "Oméprazole: 5 en stock (seuil 15)")
}
