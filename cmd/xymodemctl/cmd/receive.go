package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xx25/go-xymodem"
	"github.com/xx25/go-xymodem/transport/serial"
)

var outDir string

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive a file over the configured serial port",
	Args:  cobra.NoArgs,
	RunE:  runReceive,
}

func init() {
	receiveCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the received file into")
	rootCmd.AddCommand(receiveCmd)
}

func runReceive(_ *cobra.Command, _ []string) error {
	ch, err := serial.Open(serial.Config{Port: portName, BaudRate: baudRate, ReadTimeout: 3 * time.Second})
	if err != nil {
		return err
	}
	defer ch.Close()

	ctx := context.Background()
	switch protocol {
	case "xmodem":
		out, err := os.Create(outDir + "/xmodem.out")
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
		return xymodem.XModemReceive(ctx, ch, out, xymodem.ChecksumCRC16, nil)
	case "ymodem":
		tmp, err := os.CreateTemp(outDir, "xymodemctl-*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmpPath := tmp.Name()
		name, _, recvErr := xymodem.YModemReceive(ctx, ch, tmp, nil)
		tmp.Close()
		if recvErr != nil {
			os.Remove(tmpPath)
			return recvErr
		}
		if name == "" {
			os.Remove(tmpPath)
			return nil
		}
		// name comes from the peer's header packet; never trust it as a
		// path component.
		safeName := filepath.Base(filepath.Clean(name))
		if safeName == "." || safeName == string(filepath.Separator) {
			os.Remove(tmpPath)
			return fmt.Errorf("ymodem: peer sent an unusable filename %q", name)
		}
		return os.Rename(tmpPath, filepath.Join(outDir, safeName))
	default:
		return fmt.Errorf("unknown protocol %q", protocol)
	}
}
