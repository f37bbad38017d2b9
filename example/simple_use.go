package main

import (
	"fmt"
	"time"

	"github.com/WeebLabs/DSPi-Console/internal/logger"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
	"github.com/WeebLabs/DSPi-Console/sdk/dspi"
)

func main() {
	log := logger.NewZapLogger()

	client, err := dspi.NewConsoleClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithSampleRate(48000),
		contracts.WithPollInterval(time.Second),
	)
	if err != nil {
		log.Error("Failed to initialize DSP client", log.Field().Error("error", err))
		return
	}
	defer client.Close()

	if err := client.Connect(); err != nil {
		log.Error("Failed to start discovery", log.Field().Error("error", err))
		return
	}

	// Wait for the first hot-plug match, then cut 6 dB around 1 kHz on the
	// first input channel and render its response curve.
	for state := range client.StateChanges() {
		if state != contracts.Connected {
			fmt.Println("Device disconnected, waiting for hot-plug...")
			continue
		}
		fmt.Println("Device connected")

		err := client.SetFilter(contracts.ChannelInputA, 0, contracts.FilterParams{
			Type:      contracts.FilterPeaking,
			Frequency: 1000,
			Q:         0.707,
			Gain:      -6,
		})
		if err != nil {
			log.Error("Failed to set filter", log.Field().Error("error", err))
			continue
		}

		for _, pt := range client.ResponseCurve(contracts.ChannelInputA, 16, 20, 20000) {
			fmt.Printf("%8.1f Hz: %+6.2f dB\n", pt.Frequency, pt.Magnitude)
		}

		snap := client.Snapshot()
		fmt.Printf("Preamp %.1f dB, bypass %v, core load %d%%/%d%%\n",
			snap.Global.PreampDB, snap.Global.Bypass,
			snap.Status.Load[0], snap.Status.Load[1])

		if result := client.Save(); result != contracts.FlashOK {
			fmt.Println("Flash save failed:", result)
		}
	}
}
