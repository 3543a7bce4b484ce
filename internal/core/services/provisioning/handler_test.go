package provisioning

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

// MockStore implements ports.CredentialStore for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context, label string) (domain.NetworkCredentials, error) {
	args := m.Called(ctx, label)
	return args.Get(0).(domain.NetworkCredentials), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, label string, creds domain.NetworkCredentials) error {
	args := m.Called(ctx, label, creds)
	return args.Error(0)
}

func (m *MockStore) Reset(ctx context.Context, label string) error {
	args := m.Called(ctx, label)
	return args.Error(0)
}

func (m *MockStore) Close() error { return nil }

type sinkRecorder struct {
	events []domain.BoardEvent
}

func (s *sinkRecorder) Post(ev domain.BoardEvent) bool {
	s.events = append(s.events, ev)
	return true
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		ssid     string
		password string
		wantErr  bool
	}{
		{"simple", "myssid,mypass", "myssid", "mypass", false},
		{"trailing newline", "myssid,mypass\r\n", "myssid", "mypass", false},
		{"extra fields ignored", "myssid,mypass,extra", "myssid", "mypass", false},
		{"empty fields skipped", ",,myssid,,mypass", "myssid", "mypass", false},
		{"spaces kept", "my ssid, pass", "my ssid", " pass", false},
		{"no separator", "noseparator", "", "", true},
		{"empty password", "myssid,", "", "", true},
		{"empty", "", "", "", true},
		{"ssid too long", strings.Repeat("s", domain.MaxSSIDLength+1) + ",pw", "", "", true},
		{"password too long", "ssid," + strings.Repeat("p", domain.MaxPasswordLength+1), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := ParsePayload(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ssid, creds.SSID)
			assert.Equal(t, tt.password, creds.Password)
			assert.Equal(t, domain.SecurityWPA2, creds.Security)
		})
	}
}

func TestHandler_StoresValidPayload(t *testing.T) {
	store := new(MockStore)
	sink := &sinkRecorder{}
	h := NewHandler(store, sink, "wifi", logr.Discard())

	want := domain.NetworkCredentials{SSID: "myssid", Password: "mypass", Security: domain.SecurityWPA2}
	store.On("Save", mock.Anything, "wifi", want).Return(nil).Once()

	reply, creds, ok := h.Handle(context.Background(), "myssid,mypass")
	assert.True(t, ok)
	assert.Equal(t, ReplyStored, reply)
	assert.Equal(t, want, creds)
	assert.Empty(t, sink.events, "nothing posted before commit")

	require.True(t, h.Commit(creds))
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventCredentialsReceived, sink.events[0].Kind)
	assert.Equal(t, want, sink.events[0].Credentials)

	store.AssertExpectations(t)
}

func TestHandler_RejectsMissingSeparator(t *testing.T) {
	store := new(MockStore)
	h := NewHandler(store, &sinkRecorder{}, "wifi", logr.Discard())

	reply, _, ok := h.Handle(context.Background(), "noseparator")
	assert.False(t, ok)
	assert.Equal(t, ReplyError, reply)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_StoreFailure(t *testing.T) {
	store := new(MockStore)
	h := NewHandler(store, &sinkRecorder{}, "wifi", logr.Discard())
	store.On("Save", mock.Anything, "wifi", mock.Anything).Return(errors.New("disk full"))

	reply, _, ok := h.Handle(context.Background(), "myssid,mypass")
	assert.False(t, ok)
	assert.Equal(t, ReplyError, reply)
}
