// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/armlink/pkg/actuator"
	"github.com/Thermoquad/armlink/pkg/actuator/pca9685"
	"github.com/Thermoquad/armlink/pkg/arm"
	"github.com/Thermoquad/armlink/pkg/armproto"
	"github.com/Thermoquad/armlink/pkg/telemetry"
)

var (
	runBackend       string
	runI2CBus        string
	runI2CAddr       uint16
	runI2CChannel    int
	runRecordPath    string
	runMQTTURL       string
	runTUI           bool
	runStatsInterval int
	runSleepOnExit   bool
	calibrationPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Receive frames and drive the arm",
	Long: `Decode frames from the connection and commit each one to the servos.

Before the first byte is read, all four channels are set to the boot position
(base 90, shoulder 90, elbow 90, claw 0). Every valid frame then replaces the
whole position at once. Malformed frames are dropped silently; the decoder
resynchronizes on the next header byte.

Backends:
  sim      In-memory timer registers (default)
  pca9685  PCA9685 PWM controller on an I2C bus

Optional outputs:
  --record file   Append every committed position to a CBOR log (see replay)
  --mqtt url      Publish positions to mqtt://[user:pass@]host:port/prefix
  --tui           Live monitor with joint positions and decoder statistics`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runBackend, "backend", "sim", "Actuator backend (sim, pca9685)")
	runCmd.Flags().StringVar(&runI2CBus, "i2c-bus", "", "I2C bus name (pca9685 only, empty for the first bus)")
	runCmd.Flags().Uint16Var(&runI2CAddr, "i2c-addr", pca9685.DefaultAddr, "I2C address (pca9685 only)")
	runCmd.Flags().IntVar(&runI2CChannel, "i2c-channel", 0, "PCA9685 output wired to the base servo (pca9685 only)")
	runCmd.Flags().StringVar(&runRecordPath, "record", "", "Record committed positions to a CBOR file")
	runCmd.Flags().StringVar(&runMQTTURL, "mqtt", "", "Publish committed positions to an MQTT broker")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live monitor")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 0, "Print statistics every N seconds (0 disables, text mode only)")
	runCmd.Flags().BoolVar(&runSleepOnExit, "sleep-on-exit", false, "Turn the PCA9685 outputs off on exit (pca9685 only)")
	runCmd.Flags().StringVar(&calibrationPath, "calibration", "", "YAML calibration file")
}

// loadCalibration returns the calibration from --calibration or the defaults
func loadCalibration() (actuator.Config, error) {
	if calibrationPath == "" {
		return actuator.DefaultConfig(), nil
	}
	return actuator.LoadConfig(calibrationPath)
}

// openBackend builds the actuator backend selected by --backend.
// The returned closer releases the hardware.
func openBackend(cfg actuator.Config) (actuator.Hardware, func(), error) {
	switch runBackend {
	case "sim":
		return actuator.NewBank(), func() {}, nil

	case "pca9685":
		drv, bus, err := pca9685.Open(runI2CBus, runI2CAddr, pca9685.Options{
			FirstChannel: runI2CChannel,
			PeriodTicks:  cfg.PeriodTicks,
		})
		if err != nil {
			return nil, nil, err
		}
		return drv, func() {
			if err := drv.Err(); err != nil {
				glog.Warningf("pca9685: last error: %v", err)
			}
			if runSleepOnExit {
				if err := drv.Sleep(); err != nil {
					glog.Warningf("pca9685: sleep failed: %v", err)
				}
			}
			bus.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q (use sim or pca9685)", runBackend)
	}
}

// recorder appends committed positions to a CBOR log
type recorder struct {
	file *os.File
	buf  *bufio.Writer
	w    *armproto.RecordWriter
}

func openRecorder(path string) (*recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &recorder{file: f, buf: buf, w: armproto.NewRecordWriter(buf)}, nil
}

func (r *recorder) observe(a armproto.JointAngles) {
	if err := r.w.Write(armproto.Record{Time: time.Now(), Angles: a}); err != nil {
		glog.Errorf("record: %v", err)
	}
}

func (r *recorder) Close() error {
	if err := r.buf.Flush(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// statsHandler wraps the controller and reports statistics from the
// receiving goroutine, so the decoder state is never shared
type statsHandler struct {
	c        *arm.Controller
	interval time.Duration
	last     time.Time
	feed     *monitorFeed

	footerErrors uint64
	frames       uint64
}

func (h *statsHandler) HandleByte(b byte) {
	h.c.HandleByte(b)

	stats := h.c.Stats()
	if stats.FooterErrors != h.footerErrors {
		h.footerErrors = stats.FooterErrors
		glog.V(1).Infof("dropped frame with bad footer: % X", h.c.Decoder().GetRawBytes())
		if h.feed != nil {
			h.feed.event(fmt.Sprintf("Dropped frame (bad footer): %s",
				armproto.FormatRawBytes(h.c.Decoder().GetRawBytes())), true)
		}
	}

	if h.feed != nil && (stats.FramesDecoded != h.frames || stats.BytesReceived%32 == 0) {
		h.frames = stats.FramesDecoded
		h.feed.push(h.c)
	}

	if h.interval > 0 && time.Since(h.last) >= h.interval {
		h.last = time.Now()
		fmt.Println()
		fmt.Print(stats.String())
		fmt.Println()
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if runTUI && useStdin {
		return errors.New("--tui cannot be combined with --stdin")
	}

	cfg, err := loadCalibration()
	if err != nil {
		return err
	}

	hw, closeHW, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeHW()

	var opts []arm.Option
	opts = append(opts, arm.WithObserver(func(a armproto.JointAngles) {
		glog.V(1).Infof("commit %s", a)
	}))

	if runRecordPath != "" {
		rec, err := openRecorder(runRecordPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				glog.Errorf("record: %v", err)
			}
		}()
		opts = append(opts, arm.WithObserver(rec.observe))
	}

	if runMQTTURL != "" {
		pub, err := telemetry.Dial(runMQTTURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		glog.Infof("publishing positions to %s", pub.Topic())
		opts = append(opts, arm.WithObserver(pub.Publish))
	}

	var feed *monitorFeed
	if runTUI {
		feed = newMonitorFeed()
	}

	// Open connection (serial, WebSocket or stdin)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	controller := arm.New(hw, cfg, opts...)
	controller.Boot()
	glog.Infof("booted at %s on %s backend", controller.Position(), runBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Closing the connection unblocks a pending Read
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	handler := &statsHandler{
		c:        controller,
		interval: time.Duration(runStatsInterval) * time.Second,
		last:     time.Now(),
		feed:     feed,
	}

	if runTUI {
		return runMonitor(ctx, stop, conn, connInfo, handler, feed)
	}

	fmt.Printf("Armlink - Receiver\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Backend: %s\n", runBackend)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- arm.Pump(ctx, conn, handler)
	}()

	select {
	case err = <-pumpErr:
	case <-ctx.Done():
		select {
		case err = <-pumpErr:
		case <-time.After(time.Second):
			// Still blocked in Read, the decoder is not ours to inspect
			glog.Warningf("connection did not close, exiting without statistics")
			return nil
		}
	}

	fmt.Println()
	fmt.Print(controller.Stats().String())
	fmt.Printf("Final position: %s\n", controller.Position())

	if err != nil && ctx.Err() == nil && !errors.Is(err, ErrConnectionClosed) {
		return err
	}
	return nil
}

// runMonitor pumps the connection in the background and shows the live monitor
func runMonitor(ctx context.Context, stop context.CancelFunc, conn io.Reader, connInfo string, handler *statsHandler, feed *monitorFeed) error {
	m := initialMonitorModel(connInfo, runBackend, handler.c.Config())
	p := tea.NewProgram(m, tea.WithAltScreen())

	feed.push(handler.c)

	pumpErr := make(chan error, 1)
	go func() {
		err := arm.Pump(ctx, conn, handler)
		feed.push(handler.c)
		pumpErr <- err
		if err != nil && ctx.Err() == nil {
			p.Send(connectionLostMsg{err: err})
		}
	}()

	go feed.forward(ctx, p)

	if _, err := p.Run(); err != nil {
		stop()
		return fmt.Errorf("TUI error: %w", err)
	}
	stop()

	select {
	case err := <-pumpErr:
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrConnectionClosed) {
			return err
		}
	case <-time.After(time.Second):
	}
	return nil
}
