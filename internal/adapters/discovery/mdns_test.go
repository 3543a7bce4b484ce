package discovery

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	shutdowns int
}

func (f *fakeServer) Shutdown() { f.shutdowns++ }

type registration struct {
	instance, service, domain string
	port                      int
	txt                       []string
	srv                       *fakeServer
}

func mockRegister(t *testing.T, fail error) *[]registration {
	regs := &[]registration{}
	original := registerService
	registerService = func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (server, error) {
		if fail != nil {
			return nil, fail
		}
		srv := &fakeServer{}
		*regs = append(*regs, registration{instance, service, domain, port, txt, srv})
		return srv, nil
	}
	t.Cleanup(func() { registerService = original })
	return regs
}

func TestAnnounce_Defaults(t *testing.T) {
	regs := mockRegister(t, nil)
	a := NewMDNSAnnouncer("", "", "", logr.Discard())

	require.NoError(t, a.Announce(context.Background(), 10001))
	require.Len(t, *regs, 1)

	r := (*regs)[0]
	assert.Equal(t, "low_level_microcontroller", r.instance)
	assert.Equal(t, "_provision._tcp", r.service)
	assert.Equal(t, "local.", r.domain)
	assert.Equal(t, 10001, r.port)
	assert.Contains(t, r.txt, "proto=ssid,password")

	a.Shutdown()
	assert.Equal(t, 1, r.srv.shutdowns)

	a.Shutdown()
	assert.Equal(t, 1, r.srv.shutdowns, "second shutdown is a no-op")
}

func TestAnnounce_ReplacesPrevious(t *testing.T) {
	regs := mockRegister(t, nil)
	a := NewMDNSAnnouncer("board", "_prov._tcp", "", logr.Discard())

	require.NoError(t, a.Announce(context.Background(), 1000))
	require.NoError(t, a.Announce(context.Background(), 2000))

	require.Len(t, *regs, 2)
	assert.Equal(t, 1, (*regs)[0].srv.shutdowns)
	assert.Equal(t, 0, (*regs)[1].srv.shutdowns)
}

func TestAnnounce_Errors(t *testing.T) {
	mockRegister(t, errors.New("no multicast"))

	err := NewMDNSAnnouncer("", "", "", logr.Discard()).Announce(context.Background(), 10001)
	assert.ErrorContains(t, err, "no multicast")

	err = NewMDNSAnnouncer("", "", "does-not-exist0", logr.Discard()).Announce(context.Background(), 10001)
	assert.ErrorContains(t, err, "does-not-exist0")
}
