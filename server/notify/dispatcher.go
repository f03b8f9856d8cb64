package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Daskott/luna/colors"
	"github.com/Daskott/luna/server/mailer"
	"github.com/Daskott/luna/server/metrics"
	"github.com/Daskott/luna/server/registry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	REASON_MANUAL        = "manual"
	REASON_TIMER_EXPIRED = "timer_expired"

	AUTO_PANIC_SUBJECT  = "⚠️ LUNA Safety Alert: Timer expired"
	NO_LOCATION_LINK    = "No location saved"
	DefaultDeliveryTime = 10 * time.Second
)

var ErrNoLocation = registry.ErrNotFound

// EmailSender is the email delivery channel.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) mailer.Result
}

// SmsSender is the optional SMS delivery channel.
type SmsSender interface {
	SendMessage(to, msg string) error
}

// Registry is the read side of the location & contact registry.
type Registry interface {
	GetLocation(userID string) (*registry.Location, error)
	GetContacts(userID string) []registry.Contact
}

type Result struct {
	OK       bool               `json:"ok"`
	MapsLink string             `json:"maps_link,omitempty"`
	Contacts []registry.Contact `json:"contacts,omitempty"`
	Message  string             `json:"message,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type Dispatcher struct {
	registry        Registry
	email           EmailSender
	sms             SmsSender
	deliveryTimeout time.Duration
	logg            *zap.SugaredLogger
}

// NewDispatcher builds a dispatcher. sms may be nil to disable SMS alerts.
func NewDispatcher(
	reg Registry,
	email EmailSender,
	sms SmsSender,
	deliveryTimeout time.Duration,
	logg *zap.SugaredLogger) *Dispatcher {

	if deliveryTimeout <= 0 {
		deliveryTimeout = DefaultDeliveryTime
	}

	return &Dispatcher{
		registry:        reg,
		email:           email,
		sms:             sms,
		deliveryTimeout: deliveryTimeout,
		logg:            logg,
	}
}

// BuildAlertLink returns a Google Maps search link for the coordinates.
func BuildAlertLink(latitude, longitude float64) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%v,%v",
		strconv.FormatFloat(latitude, 'f', -1, 64),
		strconv.FormatFloat(longitude, 'f', -1, 64))
}

// SendSOS composes the alert for userID's last known location and logs it.
// It does not deliver anything to the contacts.
func (d *Dispatcher) SendSOS(userID, reason string) Result {
	location, err := d.registry.GetLocation(userID)
	if errors.Is(err, registry.ErrNotFound) {
		return Result{Error: ErrNoLocation.Error()}
	}
	if err != nil {
		return Result{Error: err.Error()}
	}

	link := BuildAlertLink(location.Latitude, location.Longitude)
	contacts := d.registry.GetContacts(userID)
	message := fmt.Sprintf("[SOS] (%v) Location: %v", reason, link)

	d.logInfof("user=%v -> %v", userID, message)
	for _, contact := range contacts {
		d.logInfof("notify: %v %v", contact.Name, contact.Email)
	}

	return Result{OK: true, MapsLink: link, Contacts: contacts, Message: message}
}

// AutoTriggerPanic alerts every contact of userID after their timer expired.
// Each delivery is attempted on its own; a failure or timeout for one contact
// does not stop the others.
func (d *Dispatcher) AutoTriggerPanic(userID string) {
	alertID := uuid.NewString()
	result := d.SendSOS(userID, REASON_TIMER_EXPIRED)

	link := result.MapsLink
	if link == "" {
		link = NO_LOCATION_LINK
	}
	body := alertBody(userID, link)

	for _, contact := range d.registry.GetContacts(userID) {
		if contact.Email != "" && d.email != nil {
			d.deliverEmail(alertID, contact.Email, body)
		}

		if contact.Phone != "" && d.sms != nil {
			d.deliverSms(alertID, contact.Phone, body)
		}
	}

	if !result.OK {
		d.logInfof("[AUTO PANIC] user=%v -> %v", userID, result.Error)
	}
}

func (d *Dispatcher) deliverEmail(alertID, to, body string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Deliveries.WithLabelValues("email", "failed").Inc()
			d.logErrorf("[EMAIL] alert=%v to=%v panic: %v", alertID, to, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.deliveryTimeout)
	defer cancel()

	result := d.email.SendEmail(ctx, to, AUTO_PANIC_SUBJECT, body)
	metrics.Deliveries.WithLabelValues("email", metrics.DeliveryResult(result.OK)).Inc()

	if !result.OK {
		d.logErrorf("[EMAIL] alert=%v to=%v error=%v", alertID, to, result.Error)
		return
	}
	d.logInfof("[EMAIL] alert=%v to=%v ok", alertID, to)
}

func (d *Dispatcher) deliverSms(alertID, to, body string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Deliveries.WithLabelValues("sms", "failed").Inc()
			d.logErrorf("[SMS] alert=%v to=%v panic: %v", alertID, to, r)
		}
	}()

	err := d.sms.SendMessage(to, body)
	metrics.Deliveries.WithLabelValues("sms", metrics.DeliveryResult(err == nil)).Inc()

	if err != nil {
		d.logErrorf("[SMS] alert=%v to=%v error=%v", alertID, to, err)
		return
	}
	d.logInfof("[SMS] alert=%v to=%v ok", alertID, to)
}

func alertBody(userID, link string) string {
	return "This is an automated safety alert from LUNA.\n\n" +
		fmt.Sprintf("User: %v\n", userID) +
		"Reason: Timer expired (no check-in)\n" +
		fmt.Sprintf("Last known location: %v\n", link)
}

func (d *Dispatcher) logInfof(template string, args ...interface{}) {
	d.logg.Infof(colors.Cyan("[dispatcher] ")+template, args...)
}

func (d *Dispatcher) logErrorf(template string, args ...interface{}) {
	d.logg.Errorf(colors.Red("[dispatcher] ")+template, args...)
}
