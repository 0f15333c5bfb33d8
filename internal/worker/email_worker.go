package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"comandapos/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail   string `json:"to_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	ReportRef string `json:"report_ref"` // as returned by infra.ReportStore.Save
}

// ReportMailer is satisfied by *infra.Mailer.
type ReportMailer interface {
	Enabled() bool
	SendReport(to, subject, body, fileName string, pdf []byte) error
}

// EmailWorker mails stored closing reports.
type EmailWorker struct {
	mailer ReportMailer
	store  infra.ReportStore
}

func NewEmailWorker(mailer ReportMailer, store infra.ReportStore) *EmailWorker {
	return &EmailWorker{mailer: mailer, store: store}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}
	if !w.mailer.Enabled() {
		log.Warn().Str("to", payload.ToEmail).Msg("email_worker: SMTP not configured, skipping")
		return nil
	}

	pdf, err := w.store.Load(ctx, payload.ReportRef)
	if err != nil {
		return fmt.Errorf("load attachment: %w", err)
	}
	if err := w.mailer.SendReport(payload.ToEmail, payload.Subject, payload.Body, path.Base(payload.ReportRef), pdf); err != nil {
		return fmt.Errorf("send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: report sent")
	return nil
}
