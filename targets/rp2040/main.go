//go:build rp2040

package main

import (
	_ "embed"
	"machine"
	"time"

	"p600/core"
	"p600/firmware"
	"p600/firmware/config"
	"p600/protocol"
	"p600/storage"
	"p600/synth"
)

// EEPROM bus: I2C1 on GP26 (SDA) and GP27 (SCL).
const (
	eepromSDA  = machine.GPIO26
	eepromSCL  = machine.GPIO27
	eepromFreq = 400 * machine.KHz
)

// configJSON is the board configuration; fields it leaves out keep the
// stock values.
//
//go:embed config.json
var configJSON []byte

// heartbeatUS toggles the on-board LED, slowly enough to read and fast
// enough to show a pass is still yielding.
const heartbeatUS = 250000

var (
	manager *firmware.Manager
	rx      *protocol.FifoBuffer

	// Debug counters
	msgerrors uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32

	heartbeat = core.Timer{Handler: heartbeatEvent}
	ledOn     bool
)

func main() {
	// Disable the watchdog left running by a previous reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitClock()
	InitDebugUART()
	core.SetDebugWriter(DebugPrintln)

	cfg, err := config.LoadConfig(configJSON)
	if err != nil {
		DebugPrintln("[BOOT] config: " + err.Error() + ", using stock values")
		cfg = config.DefaultConfig()
	}

	bus := NewPIOBus(0, 0)
	if err := bus.Init(); err != nil {
		DebugPrintln("[BOOT] bus: " + err.Error())
		return
	}
	core.SetBusDriver(bus)

	cvs := synth.NewCVBank(bus)
	panel := synth.NewPanel(bus)
	core.SetCVDriver(cvs)

	var store firmware.Store
	if s, err := initStore(cfg.Storage); err != nil {
		DebugPrintln("[BOOT] eeprom: " + err.Error())
	} else {
		store = s
	}

	manager = firmware.NewManager(cfg)
	if err := manager.Initialize(core.MustBus(), core.MustCV(), panel, store); err != nil {
		DebugPrintln("[BOOT] manager: " + err.Error())
		return
	}
	if err := manager.LoadError(); err != nil {
		DebugPrintln("[BOOT] running on the default ramp: " + err.Error())
	}

	// Hold every CV at its boot code before anything listens
	cvs.Update()
	panel.Update()

	// A pass holds the main loop; keep the clock and timers alive from its
	// yield points.
	manager.Session().OnYield = func() {
		UpdateSystemTime()
		core.ProcessTimers()
	}

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	heartbeat.WakeTime = core.GetTime() + core.TimerFromUS(heartbeatUS)
	core.ScheduleTimer(&heartbeat)

	rx = protocol.NewFifoBuffer(256)
	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					rx.Reset()
					// an access may have stopped half way through the FIFO
					bus.Reset()
				}
			}()

			UpdateSystemTime()

			if rx.Available() > 0 {
				data := rx.Data()
				if err := manager.ProcessBytes(data); err != nil {
					msgerrors++
				}
				rx.Pop(len(data))
			}

			writeUSB()
			core.ProcessTimers()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

func initStore(cfg storage.Config) (*storage.EEPROMStore, error) {
	err := machine.I2C1.Configure(machine.I2CConfig{
		Frequency: eepromFreq,
		SDA:       eepromSDA,
		SCL:       eepromSCL,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewEEPROMStore(machine.I2C1, cfg)
}

func heartbeatEvent(t *core.Timer) uint8 {
	ledOn = !ledOn
	machine.LED.Set(ledOn)
	t.WakeTime += core.TimerFromUS(heartbeatUS)
	return core.SF_RESCHEDULE
}

// usbReaderLoop moves USB bytes into rx for the main loop
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			if usbWasDisconnected {
				usbWasDisconnected = false
				consecutiveWriteFailures = 0
				rx.Reset()
			}

			if rx.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB sends pending responses and keeps whatever a short or failed
// write leaves behind. After repeated failures the host is taken as gone
// and stale output is dropped.
func writeUSB() {
	for {
		pending := manager.PendingOutput()
		if len(pending) == 0 {
			consecutiveWriteFailures = 0
			return
		}

		n, err := USBWriteBytes(pending)
		if n > 0 {
			manager.ConsumeOutput(n)
		}
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				manager.DropOutput()
				rx.Reset()
			}
			return
		}
	}
}
