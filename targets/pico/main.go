//go:build rp2040 || rp2350

// On-hardware runner for the demo suites.  Drives the kernel clock from
// the millisecond timer, blinks the onboard LED as a heartbeat and shows
// per-suite status bars on an SSD1306 OLED on I2C0 (SDA=GP4, SCL=GP5).
package main

import (
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"

	"gortos/demo/countsem"
	"gortos/demo/dynamic"
	"gortos/demo/intsem"
	"gortos/demo/recmutex"
	"gortos/demo/timerdemo"
	"gortos/kernel"
)

const (
	tickPeriod  = time.Millisecond
	checkPeriod = 1000 // ticks between suite checks

	displayWidth  = 128
	displayHeight = 64
	barWidth      = 20
	barGap        = 4
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
)

func main() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400000,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	display := ssd1306.NewI2C(machine.I2C0)
	display.Configure(ssd1306.Config{Width: displayWidth, Height: displayHeight, Address: 0x3C})
	display.ClearDisplay()

	k := kernel.New(kernel.Config{Clock: kernel.ClockExternal})

	suites := []struct {
		name  string
		check func() bool
	}{
		{"countsem", countsem.Start(k, 0).StillRunning},
		{"recmutex", recmutex.Start(k).StillRunning},
		{"intsem", intsem.Start(k).StillRunning},
		{"dynamic", dynamic.Start(k).StillRunning},
		{"timerdemo", timerdemo.Start(k, 10, k.MaxPriority()).StillRunning},
	}

	kernel.SetDebugWriter(func(msg string) { println(msg) })

	k.Start(2)
	stop := k.StartTicker(tickPeriod)
	defer stop()

	for {
		k.Delay(checkPeriod)
		led.Set(!led.Get())

		allOK := true
		for i, s := range suites {
			ok := s.check()
			if !ok {
				allOK = false
				println("FAIL", s.name, "tick", uint(k.TickCount()))
			}
			drawBar(&display, i, ok)
		}
		if allOK {
			println("PASS tick", uint(k.TickCount()))
		}
		display.Display()
	}
}

// drawBar paints one suite's status column: filled while the suite keeps
// passing, hollow once it stalls.
func drawBar(d *ssd1306.Device, slot int, ok bool) {
	x0 := int16(slot * (barWidth + barGap))
	for x := x0; x < x0+barWidth && x < displayWidth; x++ {
		for y := int16(0); y < displayHeight; y++ {
			on := ok || y == 0 || y == displayHeight-1 || x == x0 || x == x0+barWidth-1
			if on {
				d.SetPixel(x, y, white)
			} else {
				d.SetPixel(x, y, black)
			}
		}
	}
}
