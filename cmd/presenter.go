package main

import (
	"fmt"
	"log/slog"

	"github.com/gookit/color"
)

// pairingBanner is the terminal presentation of pairing codes. QR
// rendering belongs to a richer presentation layer; the core only needs
// somewhere to republish the payload.
type pairingBanner struct {
	log *slog.Logger
}

func (b pairingBanner) ShowPairingCode(code string) {
	header := color.New(color.BgBlack, color.FgGreen).Render(" PAIRING CODE ")
	fmt.Printf("\n%s  %s\n\nLink the device from your phone to continue.\n\n", header, code)
	b.log.Info("Pairing code republished")
}
