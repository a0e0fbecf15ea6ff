//go:build rp2040

package main

import (
	"machine"
	"time"

	"quadtrack/core"
	"quadtrack/protocol"
)

// Phase inputs of the on-board quadrature encoder
const (
	encoderPinA = core.GPIOPin(2)
	encoderPinB = core.GPIOPin(3)
)

// Counter IDs the host uses in config_encoder
const (
	counterQuadrature = core.CounterID(0)
	counterAS5600     = core.CounterID(1)
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgErrors uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear a watchdog left armed by the reset command
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	initDebugUART()
	InitClock()
	core.TimerInit()
	core.SetUptimeSource(GetHardwareUptime)

	core.InitCoreCommands()
	registerRP2040Pins()

	gpio := NewRPGPIODriver()
	core.SetGPIODriver(gpio)
	if err := registerQuadrature(gpio); err != nil {
		core.DebugPrintln("[BOOT] quadrature: " + err.Error())
	}
	if err := registerAS5600(); err != nil {
		core.DebugPrintln("[BOOT] as5600: " + err.Error())
	}

	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		// Watchdog reset re-enumerates USB cleanly
		if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
			return
		}
		if err := machine.Watchdog.Start(); err != nil {
			return
		}
		for {
			time.Sleep(time.Millisecond)
		}
	})

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgErrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()
			pollAS5600()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				in := protocol.NewSliceInputBuffer(data)
				transport.Receive(in)
				if consumed := len(data) - in.Available(); consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			core.ProcessTimers()
			core.EncoderTask()

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
			// Only after the ack has gone out
			core.CheckPendingReset()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop moves USB bytes into inputBuffer
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgErrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				msgErrors++
				time.Sleep(time.Millisecond)
				continue
			}

			// First byte after a disconnect starts a fresh session
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{b}) == 0 {
				msgErrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// initDebugUART sends debug messages to UART0 (TX=GP0) so they stay off
// the protocol link.
func initDebugUART() {
	uart := machine.UART0
	if err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	}); err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		_, _ = uart.Write([]byte(s + "\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
}

// registerRP2040Pins exposes gpio0..gpio29 as the "pin" enumeration
func registerRP2040Pins() {
	pinNames := make([]string, 30)
	for i := range pinNames {
		pinNames[i] = "gpio" + itoa(i)
	}
	core.RegisterEnumeration("pin", pinNames)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// writeUSB sends outputBuffer. Repeated failures mark the host as gone
// and drop stale data.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
