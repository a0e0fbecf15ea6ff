//go:build rp2040

package main

import (
	"machine"
	"sync/atomic"

	"tinygo.org/x/drivers/as560x"

	"quadtrack/core"
)

// as5600Period is the 12-bit raw angle range
const as5600Period = 4096

var (
	as5600      as560x.AS5600Device
	as5600Ready bool
	as5600Raw   uint32 // atomic, last good raw angle
	as5600Errs  uint32
)

// registerAS5600 exposes an AS5600 on I2C0 (SDA=GP4, SCL=GP5) as
// counter 1. A missing sensor leaves the counter unregistered.
func registerAS5600() error {
	if err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	}); err != nil {
		return err
	}

	as5600 = as560x.NewAS5600(machine.I2C0)
	if err := as5600.Configure(as560x.Config{}); err != nil {
		return err
	}
	raw, _, err := as5600.RawAngle(as560x.ANGLE_NATIVE)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&as5600Raw, uint32(raw))
	as5600Ready = true

	return core.RegisterCounter(counterAS5600, core.CounterFunc(func() uint32 {
		return atomic.LoadUint32(&as5600Raw)
	}), as5600Period)
}

// pollAS5600 refreshes the cached angle from the main loop. I2C is too
// slow to run with interrupts masked inside an encoder sample.
func pollAS5600() {
	if !as5600Ready {
		return
	}
	raw, _, err := as5600.RawAngle(as560x.ANGLE_NATIVE)
	if err != nil {
		as5600Errs++
		return
	}
	atomic.StoreUint32(&as5600Raw, uint32(raw)%as5600Period)
}
