package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xx25/go-xymodem"
	"github.com/xx25/go-xymodem/transport/serial"
)

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Send a file over the configured serial port",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(_ *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	ch, err := serial.Open(serial.Config{Port: portName, BaudRate: baudRate, ReadTimeout: 3 * time.Second})
	if err != nil {
		return err
	}
	defer ch.Close()

	ctx := context.Background()
	switch protocol {
	case "xmodem":
		return xymodem.XModemSend(ctx, ch, f, nil)
	case "ymodem":
		return xymodem.YModemSend(ctx, ch, f, info.Name(), info.Size(), nil)
	default:
		return fmt.Errorf("unknown protocol %q", protocol)
	}
}
