package provisioning

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
	"github.com/lcalzada-xor/wprov/internal/telemetry"
)

// Replies of the provisioning protocol.
const (
	ReplyStored = "Stored. Switching to client mode...\n"
	ReplyError  = "ERROR\r\n"
)

// MaxPayload bounds the bytes read for one request.
const MaxPayload = 512

// ParsePayload reads "<ssid>,<password>". Empty fields are skipped and
// anything after the password is ignored, so ",,home,,pw,x" names the
// network "home" with password "pw".
func ParsePayload(payload string) (domain.NetworkCredentials, error) {
	line := strings.TrimRight(payload, "\r\n")

	fields := make([]string, 0, 2)
	for _, f := range strings.Split(line, ",") {
		if f == "" {
			continue
		}
		fields = append(fields, f)
		if len(fields) == 2 {
			break
		}
	}
	if len(fields) < 2 {
		return domain.NetworkCredentials{}, fmt.Errorf("%w: want <ssid>,<password>", domain.ErrInvalidPayload)
	}

	creds := domain.NetworkCredentials{
		SSID:     fields[0],
		Password: fields[1],
		Security: domain.SecurityWPA2,
	}
	if err := creds.Validate(); err != nil {
		return domain.NetworkCredentials{}, fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}
	return creds, nil
}

// Handler persists credentials received on the provisioning channel and
// hands them to the board.
type Handler struct {
	store  ports.CredentialStore
	sink   ports.EventSink
	label  string
	log    logr.Logger
	tracer trace.Tracer
}

var _ ports.ProvisioningHandler = (*Handler)(nil)

// NewHandler returns a handler saving under label and posting to sink.
func NewHandler(store ports.CredentialStore, sink ports.EventSink, label string, log logr.Logger) *Handler {
	return &Handler{
		store:  store,
		sink:   sink,
		label:  label,
		log:    log.WithName("provisioning"),
		tracer: telemetry.Tracer("provisioning"),
	}
}

// Handle validates and saves one request. Nothing is saved unless accepted
// is true.
func (h *Handler) Handle(ctx context.Context, payload string) (string, domain.NetworkCredentials, bool) {
	ctx, span := h.tracer.Start(ctx, "provisioning.exchange",
		trace.WithAttributes(attribute.Int("provisioning.payload_bytes", len(payload))))
	defer span.End()

	creds, err := ParsePayload(payload)
	if err != nil {
		h.log.Info("Invalid format", "error", err.Error())
		telemetry.ProvisioningRequests.WithLabelValues("rejected").Inc()
		span.SetStatus(codes.Error, err.Error())
		return ReplyError, domain.NetworkCredentials{}, false
	}

	if err := h.store.Save(ctx, h.label, creds); err != nil {
		h.log.Error(err, "Saving credentials failed", "ssid", creds.SSID)
		telemetry.ProvisioningRequests.WithLabelValues("store_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ReplyError, domain.NetworkCredentials{}, false
	}

	h.log.Info("Credentials stored", "ssid", creds.SSID, "security", creds.Security)
	telemetry.ProvisioningRequests.WithLabelValues("stored").Inc()
	span.SetAttributes(attribute.String("provisioning.ssid", creds.SSID))
	return ReplyStored, creds, true
}

// Attach sets the sink Commit posts to. The board is built after its
// listener, so the sink is wired late.
func (h *Handler) Attach(sink ports.EventSink) {
	h.sink = sink
}

// Commit asks the board to switch to the stored network.
func (h *Handler) Commit(creds domain.NetworkCredentials) bool {
	if h.sink == nil {
		return false
	}
	return h.sink.Post(domain.CredentialsEvent(creds))
}
