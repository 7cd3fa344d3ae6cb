// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection carries the arm byte stream. The receiver reads frames from it
// and the host commands write frames to it.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrConnectionClosed is returned once a WebSocket link has failed
var ErrConnectionClosed = errors.New("websocket connection closed")

// serialConn is a UART link to the arm. Frames are plain bytes on the wire.
type serialConn struct {
	serial.Port
}

// wsConn tunnels the byte stream through binary WebSocket messages. Message
// boundaries carry no meaning: a frame may span messages and the decoder
// resynchronizes on its own.
type wsConn struct {
	conn   *websocket.Conn
	msg    io.Reader // current binary message, nil between messages
	closed bool
}

func (w *wsConn) Read(p []byte) (int, error) {
	for !w.closed {
		if w.msg == nil {
			kind, r, err := w.conn.NextReader()
			if err != nil {
				w.closed = true
				return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			w.msg = r
		}

		n, err := w.msg.Read(p)
		if errors.Is(err, io.EOF) {
			w.msg = nil
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, ErrConnectionClosed
}

// Write sends p as one binary message, so a frame written in one call
// arrives in one piece
func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

// stdioConn reads the byte stream from stdin and writes frames to stdout, so
// `armlink send --stdin ... | armlink run --stdin` works without hardware
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

// Close closes stdin so a blocked Read returns
func (stdioConn) Close() error { return os.Stdin.Close() }

// linkKind names the transport selected on the command line
type linkKind int

const (
	linkSerial linkKind = iota
	linkWebSocket
	linkStdio
)

// link describes where the byte stream comes from
type link struct {
	kind       linkKind
	addr       string // serial device or WebSocket URL
	baud       int
	username   string
	skipVerify bool
}

// linkFromFlags picks the transport from --port, --url and --stdin.
// Exactly one of them must be given.
func linkFromFlags() (link, error) {
	var chosen []link
	if useStdin {
		chosen = append(chosen, link{kind: linkStdio})
	}
	if wsURL != "" {
		chosen = append(chosen, link{kind: linkWebSocket, addr: wsURL, username: wsUsername, skipVerify: wsNoSSLVerify})
	}
	if portName != "" {
		chosen = append(chosen, link{kind: linkSerial, addr: portName, baud: baudRate})
	}

	switch len(chosen) {
	case 0:
		return link{}, errors.New("one of --port, --url or --stdin must be specified")
	case 1:
		return chosen[0], nil
	default:
		return link{}, errors.New("--port, --url and --stdin are mutually exclusive")
	}
}

// String describes the link for status lines
func (l link) String() string {
	switch l.kind {
	case linkSerial:
		return fmt.Sprintf("Serial: %s @ %d baud", l.addr, l.baud)
	case linkWebSocket:
		return fmt.Sprintf("WebSocket: %s", l.addr)
	default:
		return "stdin"
	}
}

// open connects the link. password is only used for WebSocket basic auth.
func (l link) open(password string) (Connection, error) {
	switch l.kind {
	case linkSerial:
		return openSerial(l.addr, l.baud)
	case linkWebSocket:
		return openWebSocket(l.addr, l.username, password, l.skipVerify)
	default:
		return stdioConn{}, nil
	}
}

func openSerial(device string, baud int) (Connection, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return serialConn{port}, nil
}

// wsDialer builds the dialer for a ws:// or wss:// URL
func wsDialer(u *url.URL, skipVerify bool) (*websocket.Dialer, error) {
	d := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	switch u.Scheme {
	case "ws":
	case "wss":
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}
	return d, nil
}

// basicAuthHeader returns the request headers for HTTP Basic auth, or none
// without full credentials
func basicAuthHeader(username, password string) http.Header {
	h := http.Header{}
	if username != "" && password != "" {
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+password)))
	}
	return h
}

func openWebSocket(rawURL, username, password string, skipVerify bool) (Connection, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	dialer, err := wsDialer(u, skipVerify)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, basicAuthHeader(username, password))
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

// GetPassword reads the WebSocket password from ARMLINK_PASSWORD, or
// prompts for it on the terminal
func GetPassword() (string, error) {
	if pw := os.Getenv("ARMLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	pw, err := term.ReadPassword(int(syscall.Stdin))
	if err == nil {
		return string(pw), nil
	}

	// Not a terminal, read a line instead
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Prompted once; reconnects reuse it
var (
	wsPassword    string
	wsPasswordSet bool
)

// OpenConnection opens the link selected by the connection flags and
// returns it with a description for status output
func OpenConnection() (Connection, string, error) {
	l, err := linkFromFlags()
	if err != nil {
		return nil, "", err
	}

	if l.kind == linkWebSocket && l.username != "" && !wsPasswordSet {
		pw, err := GetPassword()
		if err != nil {
			return nil, "", err
		}
		wsPassword, wsPasswordSet = pw, true
	}

	conn, err := l.open(wsPassword)
	if err != nil {
		return nil, "", err
	}
	return conn, l.String(), nil
}
