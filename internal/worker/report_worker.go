package worker

// Renders the closing report of a cash session to PDF, stores it and, when
// a report recipient is configured, queues it for mailing.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"comandapos/internal/infra"
	"comandapos/internal/model"

	"github.com/rs/zerolog/log"
)

// ReportJobPayload is the job envelope sent to QueueReports.
type ReportJobPayload struct {
	SessionID      string                       `json:"session_id"`
	CollaboratorID string                       `json:"collaborator_id"`
	ClosedAt       *time.Time                   `json:"closed_at,omitempty"`
	Summary        *model.ReconciliationSummary `json:"summary"`
}

// EmailEnqueuer is the part of the Dispatcher the report worker needs.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ReportWorker struct {
	store    infra.ReportStore
	business string
	reportTo string
	emails   EmailEnqueuer
}

// NewReportWorker wires the report worker. emails may be nil, and an empty
// reportTo disables mailing.
func NewReportWorker(store infra.ReportStore, business, reportTo string, emails EmailEnqueuer) *ReportWorker {
	return &ReportWorker{store: store, business: business, reportTo: reportTo, emails: emails}
}

// Process handles a single closing report job:
//  1. Parse ReportJobPayload
//  2. Render the PDF from the embedded summary
//  3. Save it as caixa-{session}.pdf in the report store
//  4. Optionally enqueue an email job
func (w *ReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReportJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A malformed payload will not get better on retry.
		log.Error().Err(err).Msg("report_worker: invalid payload")
		return nil
	}
	if payload.Summary == nil {
		log.Error().Str("session_id", payload.SessionID).Msg("report_worker: payload without summary")
		return nil
	}

	pdf, err := infra.RenderReconciliationPDF(payload.Summary, infra.ReportIdentity{
		Business:     w.business,
		Collaborator: payload.CollaboratorID,
	})
	if err != nil {
		return fmt.Errorf("render report %s: %w", payload.SessionID, err)
	}

	ref, err := w.store.Save(ctx, fmt.Sprintf("caixa-%s.pdf", payload.SessionID), pdf)
	if err != nil {
		return err
	}
	log.Info().Str("pdf", ref).Str("session_id", payload.SessionID).Msg("report_worker: report generated")

	if w.reportTo == "" || w.emails == nil {
		return nil
	}
	job := EmailJobPayload{
		ToEmail: w.reportTo,
		Subject: fmt.Sprintf("Fechamento de caixa %s", payload.SessionID),
		Body: fmt.Sprintf("Segue o relatório de fechamento.\nSaldo em dinheiro: %s\nTotal de vendas: %s",
			infra.FormatBRL(payload.Summary.NetCash), infra.FormatBRL(payload.Summary.GrandTotal)),
		ReportRef: ref,
	}
	// The PDF is already stored; a lost email must not re-render it.
	if err := w.emails.EnqueueEmail(ctx, job); err != nil {
		log.Warn().Err(err).Str("to", w.reportTo).Msg("report_worker: failed to enqueue email")
	}
	return nil
}
