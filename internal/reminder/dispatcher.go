package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/email"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/internal/sms"
	"github.com/whiskerwell/scheduling/internal/storage"
)

// gatewayTimeout bounds how long a reminder request waits on the SMS and
// email gateways before giving up on a channel.
const gatewayTimeout = 10 * time.Second

// store is the slice of the scheduling repository a dispatch touches.
type store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, id int64) (model.Appointment, error)
	UpdateReminderCounters(ctx context.Context, tx pgx.Tx, id int64, c model.ReminderCounters) error
}

type auditor interface {
	Record(ctx context.Context, tx pgx.Tx, e audit.Entry) error
}

type Dispatcher struct {
	repo    store
	gate    *Gate
	catalog catalog.Store
	sms     sms.Sender
	email   email.Sender
	audit   auditor
	logger  *slog.Logger
}

func NewDispatcher(repo *storage.Repository, gate *Gate, cat catalog.Store, smsSender sms.Sender, emailSender email.Sender, auditRepo *audit.Repository, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		gate:    gate,
		catalog: cat,
		sms:     smsSender,
		email:   emailSender,
		audit:   auditRepo,
		logger:  logger,
	}
}

// Result reports the per-channel outcome of one dispatch.
type Result struct {
	SMSSent      bool
	SMSReason    string
	EmailSent    bool
	EmailReason  string
	SMSSentToday int
	EmailToday   int
}

// Dispatch sends a reminder for the appointment over every channel the
// throttle admits. Both channels blocked is a conflict; one channel
// failing at the gateway while the other delivers is still a success.
func (d *Dispatcher) Dispatch(ctx context.Context, actor authz.Actor, appointmentID int64) (Result, error) {
	if !actor.IsStaff() {
		return Result{}, schederr.Forbidden("only staff may trigger reminders")
	}

	tx, err := d.repo.Begin(ctx)
	if err != nil {
		return Result{}, schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := d.repo.GetAppointmentForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if storage.IsNoRows(err) {
			return Result{}, schederr.NotFound("appointment", appointmentID)
		}
		return Result{}, schederr.Persistence("load appointment", err)
	}

	pet, err := d.catalog.Pet(ctx, appt.PetID)
	if err != nil {
		return Result{}, err
	}

	now := time.Now()
	counters := d.gate.Normalize(appt.Reminders, now)

	smsOK, smsReason := d.gate.AllowSMS(counters, now)
	emailOK, emailReason := d.gate.AllowEmail(counters, now)
	if !smsOK && !emailOK {
		return Result{}, schederr.Conflict("reminder throttled: sms %s, email %s", smsReason, emailReason)
	}

	text := fmt.Sprintf("Reminder: %s has an appointment at %s on %s.",
		pet.Name,
		appt.StartAt.Format("15:04"),
		appt.StartAt.Format("2006-01-02"))

	res := Result{SMSReason: smsReason, EmailReason: emailReason}

	// Gateways are slow and independent; hit them concurrently but keep
	// the request bounded by gatewayTimeout.
	sendCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	type outcome struct {
		channel string
		err     error
	}
	results := make(chan outcome, 2)
	inFlight := 0

	if smsOK {
		if pet.OwnerPhone == "" {
			res.SMSReason = "owner has no phone on file"
		} else {
			inFlight++
			go func() {
				results <- outcome{channel: "sms", err: d.sms.Send(sendCtx, pet.OwnerPhone, text)}
			}()
		}
	}
	if emailOK {
		if pet.OwnerEmail == "" {
			res.EmailReason = "owner has no email on file"
		} else {
			inFlight++
			go func() {
				results <- outcome{channel: "email", err: d.email.Send(sendCtx, pet.OwnerEmail, "Appointment reminder", text)}
			}()
		}
	}

	for i := 0; i < inFlight; i++ {
		out := <-results
		switch out.channel {
		case "sms":
			if out.err != nil {
				res.SMSReason = "sms gateway error"
				d.logger.Error("sms reminder failed", "appointment_id", appointmentID, "err", out.err)
				continue
			}
			res.SMSSent = true
			counters = d.gate.RecordSMS(counters, now)
		case "email":
			if out.err != nil {
				res.EmailReason = "email gateway error"
				d.logger.Error("email reminder failed", "appointment_id", appointmentID, "err", out.err)
				continue
			}
			res.EmailSent = true
			counters = d.gate.RecordEmail(counters, now)
		}
	}

	if !res.SMSSent && !res.EmailSent {
		if inFlight == 0 {
			// Nothing was even attempted: the owner has no reachable
			// contact for the admitted channels.
			return res, schederr.Conflict("no reminder sent: sms %s, email %s", res.SMSReason, res.EmailReason)
		}
		return res, schederr.Persistence("reminder dispatch", fmt.Errorf("no channel delivered"))
	}

	if err := d.repo.UpdateReminderCounters(ctx, tx, appointmentID, counters); err != nil {
		return res, schederr.Persistence("persist reminder counters", err)
	}
	if err := d.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "notify",
		Module:      "appointments",
		Description: fmt.Sprintf("reminder sent for appointment %d (sms=%t email=%t)", appointmentID, res.SMSSent, res.EmailSent),
		PerformedBy: actor.UserID,
	}); err != nil {
		return res, schederr.Persistence("record audit", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return res, schederr.Persistence("commit", err)
	}

	res.SMSSentToday = counters.SMSSentToday
	res.EmailToday = counters.EmailSentToday
	return res, nil
}
