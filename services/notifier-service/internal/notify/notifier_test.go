package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/events"
	"github.com/md-rashed-zaman/consultcrm/libs/kafkax"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/storage"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeMailer) ProviderID() string { return "fake" }

func message(t *testing.T, eventType string, payload any) kafka.Message {
	return kafka.Message{
		Topic: eventType,
		Value: mustJSON(t, payload),
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte("evt-1")},
			{Key: kafkax.HeaderEventType, Value: []byte(eventType)},
		},
	}
}

func newNotifier(mailer email.Sender) *Notifier {
	return New(storage.NewRepository(), mailer, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), "")
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, func() error) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, mock.ExpectationsWereMet
}

var scheduled = events.AppointmentPayload{
	AppointmentID: "a1", ClientID: "c1", ClientName: "Ana", ClientEmail: "ana@example.com",
	PlanType: "30min", Date: "2024-03-04", StartTime: "10:00", EndTime: "10:30", Status: "scheduled",
}

func TestHandleSendsAndLogs(t *testing.T) {
	mock, met := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO communication_logs").
		WithArgs("c1", "ana@example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), "sent", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mailer := &fakeMailer{}
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, newNotifier(mailer).Handle(context.Background(), tx, message(t, events.AppointmentScheduled, scheduled)))
	require.Len(t, mailer.sent, 1)
	require.NoError(t, met())
}

func TestHandleLogsFailedClientDelivery(t *testing.T) {
	mock, met := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO communication_logs").
		WithArgs("c1", "ana@example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), "failed", "smtp down", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mailer := &fakeMailer{err: errors.New("smtp down")}
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, newNotifier(mailer).Handle(context.Background(), tx, message(t, events.AppointmentScheduled, scheduled)))
	require.NoError(t, met())
}

func TestHandleRetriesFailedAccountEmail(t *testing.T) {
	mock, met := newMock(t)
	mock.ExpectBegin()

	mailer := &fakeMailer{err: errors.New("smtp down")}
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	err = newNotifier(mailer).Handle(context.Background(), tx, message(t, events.PasswordResetRequested, events.AuthActionPayload{
		UserID: "u1", Name: "Ana", Email: "ana@example.com", ActionURL: "https://x/reset?token=1", ExpiresAt: "2024-03-04T10:00:00Z",
	}))
	assert.Error(t, err)
	require.NoError(t, met())
}

func TestHandleSkipsUnusablePayloads(t *testing.T) {
	mock, met := newMock(t)
	mock.ExpectBegin()

	mailer := &fakeMailer{}
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	msg := message(t, events.AppointmentScheduled, scheduled)
	msg.Value = []byte("not json")
	assert.NoError(t, newNotifier(mailer).Handle(context.Background(), tx, msg))
	assert.Empty(t, mailer.sent)
	require.NoError(t, met())
}
