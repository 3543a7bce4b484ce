package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestWPSCheck(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want string
	}{
		{"push button", "0050F204 104A0001 10 1012 0002 0004", "wps=true device_password_id=0x0004 method=PBC\n"},
		{"no password id", "0050F204104A000110", "wps=true device_password_id=0xFFFF method=none\n"},
		{"wrong oui", "0050F304101200020004", "wps=false\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "wps", "check", tt.hex)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := execute(t, "wps", "check", "zz")
	assert.Error(t, err)
}

func TestCreds_SetShowReset(t *testing.T) {
	db := filepath.Join(t.TempDir(), "wprov.db")

	_, err := execute(t, "creds", "set", "home", "secret", "--store.path", db)
	require.NoError(t, err)

	out, err := execute(t, "creds", "show", "--store.path", db)
	require.NoError(t, err)
	var shown domain.NetworkCredentials
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "home", shown.SSID)
	assert.Equal(t, "********", shown.Password)
	assert.Equal(t, domain.SecurityWPA2, shown.Security)

	out, err = execute(t, "creds", "show", "--reveal", "--store.path", db)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "secret", shown.Password)

	_, err = execute(t, "creds", "reset", "--store.path", db)
	require.NoError(t, err)

	_, err = execute(t, "creds", "show", "--store.path", db)
	assert.Error(t, err)
}

func TestCreds_SetRejectsLongSSID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "wprov.db")
	_, err := execute(t, "creds", "set", "0123456789012345678901234567890123", "--store.path", db)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--link.driver", "wext")
	assert.Error(t, err)
}

func TestWPSScan_InvalidBSSID(t *testing.T) {
	_, err := execute(t, "wps", "scan", "capture.pcap", "--bssid", "nope")
	assert.Error(t, err)
}
