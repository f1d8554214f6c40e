package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/labcam/chameleon/ccd"
	"github.com/labcam/chameleon/dc1394"
	"github.com/labcam/chameleon/generichttp/camera"
	"github.com/labcam/chameleon/pgrey"

	"github.com/sirupsen/logrus"
	"github.com/theckman/yacspin"
)

func main() {
	var (
		texp  = flag.Float64("t", 0.1, "exposure time, seconds")
		n     = flag.Int("n", 1, "number of frames")
		gain  = flag.Float64("gain", pgrey.GainDefault, "gain, dB")
		out   = flag.String("o", "tmp.fits", "output file")
		mock  = flag.Bool("mock", false, "use a simulated camera")
		debug = flag.Bool("v", false, "verbose driver output")
	)
	flag.Parse()

	log := logrus.New()
	if !*debug {
		log.SetLevel(logrus.WarnLevel)
	}
	open := dc1394.Opener(dc1394.New)
	if *mock {
		open = dc1394.NewMock(dc1394.NewMockCamera(0x00b09d0100000001)).Opener()
	}
	h, err := ccd.NewHost(ccd.Config{Logger: log, Debug: *debug}, pgrey.Factory(open, pgrey.Options{}))
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	err = h.Connect(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	err = h.WriteNumber(ctx, pgrey.GainProperty, map[string]float64{"GAIN_VALUE": *gain})
	if err != nil {
		fmt.Println(err)
		return
	}
	tv, err := h.Property(ctx, pgrey.TemperatureProperty)
	if err == nil && tv.State == ccd.OK {
		fmt.Printf("sensor at %.2f C\n", tv.Numbers[0].Value)
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	spinner.Start()
	frames := make([]ccd.Frame, 0, *n)
	start := time.Now()
	for i := 0; i < *n; i++ {
		spinner.Message(fmt.Sprintf("exposing frame %d of %d (%.3f s)", i+1, *n, *texp))
		f, err := h.Expose(ctx, *texp)
		if err != nil {
			spinner.StopFailMessage(err.Error())
			spinner.StopFail()
			return
		}
		frames = append(frames, f)
	}
	spinner.StopMessage(fmt.Sprintf("%d frames in %s", *n, time.Since(start).Round(time.Millisecond)))
	spinner.Stop()

	fid, err := os.Create(*out)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer fid.Close()
	err = camera.WriteFits(fid, camera.FrameCards(frames[0]), frames)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("wrote", *out)
}
