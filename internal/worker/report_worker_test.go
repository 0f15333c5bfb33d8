package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"comandapos/internal/infra"
	"comandapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmails struct {
	jobs []EmailJobPayload
	err  error
}

func (f *fakeEmails) EnqueueEmail(_ context.Context, p EmailJobPayload) error {
	f.jobs = append(f.jobs, p)
	return f.err
}

type fakeMailer struct {
	enabled bool
	sent    []string
	files   []string
	err     error
}

func (m *fakeMailer) Enabled() bool { return m.enabled }

func (m *fakeMailer) SendReport(to, _, _, fileName string, pdf []byte) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	m.files = append(m.files, fileName)
	return nil
}

func sampleReport(t *testing.T) json.RawMessage {
	t.Helper()
	sessionID := uuid.New()
	summary := &model.ReconciliationSummary{
		SessionID:       sessionID,
		CollaboratorID:  uuid.New(),
		OpenedAt:        time.Now().UTC().Add(-time.Hour),
		AsOf:            time.Now().UTC(),
		OpeningFloat:    decimal.RequireFromString("100"),
		ByPaymentMethod: map[string]decimal.Decimal{model.PaymentCash: decimal.RequireFromString("30")},
		NetCash:         decimal.RequireFromString("130"),
		GrandTotal:      decimal.RequireFromString("30"),
	}
	raw, err := json.Marshal(ReportJobPayload{SessionID: sessionID.String(), CollaboratorID: summary.CollaboratorID.String(), Summary: summary})
	require.NoError(t, err)
	return raw
}

func TestReportWorker_WritesPDFAndQueuesEmail(t *testing.T) {
	dir := t.TempDir()
	emails := &fakeEmails{}
	w := NewReportWorker(infra.NewLocalReportStore(dir), "Bar do Zé", "gerente@example.com", emails)

	require.NoError(t, w.Process(context.Background(), sampleReport(t)))

	files, err := filepath.Glob(filepath.Join(dir, "caixa-*.pdf"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data[:4]))

	require.Len(t, emails.jobs, 1)
	assert.Equal(t, "gerente@example.com", emails.jobs[0].ToEmail)
	assert.Equal(t, files[0], emails.jobs[0].ReportRef)
	assert.Contains(t, emails.jobs[0].Body, "R$ 130,00")
}

func TestReportWorker_NoRecipientNoEmail(t *testing.T) {
	emails := &fakeEmails{}
	w := NewReportWorker(infra.NewLocalReportStore(t.TempDir()), "Bar", "", emails)
	require.NoError(t, w.Process(context.Background(), sampleReport(t)))
	assert.Empty(t, emails.jobs)
}

func TestReportWorker_EnqueueFailureIsNotRetried(t *testing.T) {
	emails := &fakeEmails{err: errors.New("redis down")}
	w := NewReportWorker(infra.NewLocalReportStore(t.TempDir()), "Bar", "x@example.com", emails)
	assert.NoError(t, w.Process(context.Background(), sampleReport(t)))
}

func TestReportWorker_BadPayloadIsDropped(t *testing.T) {
	w := NewReportWorker(infra.NewLocalReportStore(t.TempDir()), "Bar", "", nil)
	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{`)))
	assert.NoError(t, w.Process(context.Background(), json.RawMessage(`{"session_id":"x"}`)))
}

func TestReportWorker_StorageFailureIsRetryable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	w := NewReportWorker(infra.NewLocalReportStore(filepath.Join(blocker, "reports")), "Bar", "", nil)
	assert.Error(t, w.Process(context.Background(), sampleReport(t)))
}

func TestEmailWorker(t *testing.T) {
	ctx := context.Background()
	pdfPath := filepath.Join(t.TempDir(), "caixa-1.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.3"), 0o644))
	job := func(to, path string) json.RawMessage {
		raw, _ := json.Marshal(EmailJobPayload{ToEmail: to, Subject: "s", Body: "b", ReportRef: path})
		return raw
	}

	m := &fakeMailer{enabled: true}
	store := infra.NewLocalReportStore(t.TempDir())
	w := NewEmailWorker(m, store)
	require.NoError(t, w.Process(ctx, job("a@example.com", pdfPath)))
	assert.Equal(t, []string{"a@example.com"}, m.sent)
	assert.Equal(t, []string{"caixa-1.pdf"}, m.files)

	assert.NoError(t, w.Process(ctx, job("", pdfPath)))
	assert.Error(t, w.Process(ctx, job("a@example.com", filepath.Join(t.TempDir(), "missing.pdf"))))

	m.err = errors.New("535 auth failed")
	assert.ErrorIs(t, w.Process(ctx, job("a@example.com", pdfPath)), m.err)

	disabled := &fakeMailer{}
	assert.NoError(t, NewEmailWorker(disabled, store).Process(ctx, job("a@example.com", pdfPath)))
	assert.Empty(t, disabled.sent)
}
