package cmd

import (
	"github.com/spf13/cobra"
)

var (
	portName string
	baudRate int
	protocol string
)

var rootCmd = &cobra.Command{
	Use:   "xymodemctl",
	Short: "XMODEM/YMODEM file transfer over a serial port",
	Long: `xymodemctl drives the xymodem protocol engine against a serial port.

It is a thin demo harness: send and receive a file with XMODEM or
YMODEM framing, useful for interop testing against another
implementation on the other end of the line.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port device (required)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "baud rate")
	rootCmd.PersistentFlags().StringVar(&protocol, "protocol", "ymodem", "protocol: xmodem or ymodem")
	_ = rootCmd.MarkPersistentFlagRequired("port")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
