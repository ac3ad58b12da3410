package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/backkem/ptt/pkg/audio"
	"github.com/backkem/ptt/pkg/bitcodec"
	"github.com/backkem/ptt/pkg/packet"
	"github.com/spf13/cobra"
)

func decodeCmd() *cobra.Command {
	var (
		audioDatagram bool
		bits          bool
	)

	cmd := &cobra.Command{
		Use:   "decode <hex>...",
		Short: "Decode a captured datagram",
		Long: `Decode a hex-encoded datagram and print its header and fields.

Arguments are concatenated, so output copied from a packet capture can be
pasted with its spacing intact. Use --audio for audio-port datagrams.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args)
			if err != nil {
				return err
			}
			out, err := describeDatagram(data, audioDatagram)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			if bits {
				fmt.Fprintln(cmd.OutOrStdout(), bitcodec.FormatBits(data))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&audioDatagram, "audio", false, "Decode as an audio datagram")
	cmd.Flags().BoolVar(&bits, "bits", false, "Also print the raw bit string")

	return cmd
}

func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "0x", "").Replace(s)
	if s == "" {
		return nil, errors.New("no data")
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func describeDatagram(data []byte, audioDatagram bool) (string, error) {
	if audioDatagram {
		p, err := audio.Parse(data)
		if err != nil {
			return "", err
		}
		return p.String(), nil
	}

	f, err := packet.Parse(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n%T %+v", f.Header.String(), f.Packet, f.Packet), nil
}
