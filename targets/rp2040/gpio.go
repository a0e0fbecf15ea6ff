//go:build rp2040

package main

import (
	"errors"
	"machine"

	"quadtrack/core"
)

var errInvalidPin = errors.New("gpio: pin out of range")

const numGPIO = 30

// RPGPIODriver implements core.GPIODriver on machine.Pin
type RPGPIODriver struct {
	configured [numGPIO]bool
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	if pin >= numGPIO {
		return errInvalidPin
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	d.configured[pin] = true
	return nil
}

func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

// SetEdgeHandler runs handler from the GPIO interrupt on both edges
func (d *RPGPIODriver) SetEdgeHandler(pin core.GPIOPin, handler func(core.GPIOPin)) error {
	if pin >= numGPIO || !d.configured[pin] {
		return errInvalidPin
	}
	return machine.Pin(pin).SetInterrupt(machine.PinToggle, func(p machine.Pin) {
		handler(core.GPIOPin(p))
	})
}

// registerQuadrature decodes the on-board encoder in software as counter 0
func registerQuadrature(gpio *RPGPIODriver) error {
	if err := gpio.ConfigureInputPullUp(encoderPinA); err != nil {
		return err
	}
	if err := gpio.ConfigureInputPullUp(encoderPinB); err != nil {
		return err
	}

	dec := core.NewQuadratureDecoder(encoderPinA, encoderPinB, 16)
	dec.Init(gpio.ReadPin(encoderPinA), gpio.ReadPin(encoderPinB))
	if err := core.RegisterCounter(counterQuadrature, dec, dec.Period()); err != nil {
		return err
	}

	onEdge := func(core.GPIOPin) { dec.Sample(gpio) }
	if err := gpio.SetEdgeHandler(encoderPinA, onEdge); err != nil {
		return err
	}
	return gpio.SetEdgeHandler(encoderPinB, onEdge)
}
