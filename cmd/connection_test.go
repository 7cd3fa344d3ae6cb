// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setLinkFlags sets the connection flags for one test and restores them after
func setLinkFlags(t *testing.T, port, ws string, stdin bool) {
	t.Helper()
	oldPort, oldURL, oldStdin := portName, wsURL, useStdin
	t.Cleanup(func() { portName, wsURL, useStdin = oldPort, oldURL, oldStdin })
	portName, wsURL, useStdin = port, ws, stdin
}

func TestLinkFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		url     string
		stdin   bool
		want    linkKind
		info    string
		wantErr bool
	}{
		{name: "serial", port: "/dev/ttyUSB0", want: linkSerial, info: "Serial: /dev/ttyUSB0 @ 115200 baud"},
		{name: "websocket", url: "ws://bridge/arm", want: linkWebSocket, info: "WebSocket: ws://bridge/arm"},
		{name: "stdin", stdin: true, want: linkStdio, info: "stdin"},
		{name: "none", wantErr: true},
		{name: "port and url", port: "/dev/ttyUSB0", url: "ws://bridge/arm", wantErr: true},
		{name: "url and stdin", url: "ws://bridge/arm", stdin: true, wantErr: true},
	}

	oldBaud := baudRate
	t.Cleanup(func() { baudRate = oldBaud })
	baudRate = 115200

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLinkFlags(t, tt.port, tt.url, tt.stdin)

			l, err := linkFromFlags()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.kind)
			assert.Equal(t, tt.info, l.String())
		})
	}
}

func TestOpenConnection_Stdio(t *testing.T) {
	setLinkFlags(t, "", "", true)

	conn, info, err := OpenConnection()
	require.NoError(t, err)
	assert.Equal(t, "stdin", info)
	assert.IsType(t, stdioConn{}, conn)
}

func TestWSDialer(t *testing.T) {
	u, _ := url.Parse("wss://bridge/arm")
	d, err := wsDialer(u, true)
	require.NoError(t, err)
	require.NotNil(t, d.TLSClientConfig)
	assert.True(t, d.TLSClientConfig.InsecureSkipVerify)

	u, _ = url.Parse("ws://bridge/arm")
	d, err = wsDialer(u, false)
	require.NoError(t, err)
	assert.Nil(t, d.TLSClientConfig)

	u, _ = url.Parse("http://bridge/arm")
	_, err = wsDialer(u, false)
	assert.Error(t, err)
}

func TestBasicAuthHeader(t *testing.T) {
	// "arm:secret"
	assert.Equal(t, "Basic YXJtOnNlY3JldA==", basicAuthHeader("arm", "secret").Get("Authorization"))
	assert.Empty(t, basicAuthHeader("arm", "").Get("Authorization"))
	assert.Empty(t, basicAuthHeader("", "").Get("Authorization"))
}
