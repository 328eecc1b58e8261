package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/internal/pcapio"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/protocols"
)

var (
	decodeFile   string
	decodeStart  string
	decodeOutput string
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode the packets of a pcap file",
	Long: `Decode every packet of a pcap file into a layer stack and print it.

The first layer is chosen by the file's link type unless --start names a
protocol. --start pcapfile decodes the whole file as a single stack.`,
	Example: `  pktcraft decode -f capture.pcap
  pktcraft decode -f erspan.pcap --start ether -o json`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := decodeOptions{
			File:   decodeFile,
			Start:  cfg.Decode.Start,
			Output: cfg.Decode.Output,
		}
		if cmd.Flags().Changed("start") {
			opts.Start = decodeStart
		}
		if cmd.Flags().Changed("output") {
			opts.Output = decodeOutput
		}
		if err := runDecode(cmd.Context(), opts, os.Stdout); err != nil {
			exitWithError("decode failed", err)
		}
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "pcap file to decode (required)")
	decodeCmd.Flags().StringVar(&decodeStart, "start", "", "protocol of the first layer (default: by link type)")
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", config.OutputText, "output format: text, json or yaml")
	decodeCmd.MarkFlagRequired("file")
}

type decodeOptions struct {
	File   string
	Start  string
	Output string
}

// decodedPacket is the printed form of one record.
type decodedPacket struct {
	Index  int          `json:"index" yaml:"index"`
	Time   time.Time    `json:"time" yaml:"time"`
	Length int          `json:"length" yaml:"length"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
	Layers *layer.Stack `json:"layers" yaml:"layers"`
}

// packetPrinter writes decoded packets in one output format.
type packetPrinter struct {
	out  io.Writer
	json *json.Encoder
	yaml *yaml.Encoder
}

func newPacketPrinter(format string, out io.Writer) (*packetPrinter, error) {
	p := &packetPrinter{out: out}
	switch format {
	case config.OutputText:
	case config.OutputJSON:
		p.json = json.NewEncoder(out)
	case config.OutputYAML:
		p.yaml = yaml.NewEncoder(out)
		p.yaml.SetIndent(2)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return p, nil
}

func (p *packetPrinter) print(d decodedPacket) error {
	switch {
	case p.json != nil:
		return p.json.Encode(d)
	case p.yaml != nil:
		return p.yaml.Encode(d)
	}
	line := fmt.Sprintf("%d %s %d %s", d.Index, d.Time.UTC().Format(time.RFC3339Nano), d.Length, d.Layers)
	if d.Error != "" {
		line += " (" + d.Error + ")"
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func (p *packetPrinter) close() error {
	if p.yaml != nil {
		return p.yaml.Close()
	}
	return nil
}

func runDecode(ctx context.Context, opts decodeOptions, out io.Writer) error {
	printer, err := newPacketPrinter(opts.Output, out)
	if err != nil {
		return err
	}

	if strings.EqualFold(opts.Start, "pcapfile") {
		if err := decodeWholeFile(opts.File, printer); err != nil {
			return err
		}
		return printer.close()
	}

	var start func() layer.Layer
	if opts.Start != "" {
		if _, err := protocols.ByName(opts.Start); err != nil {
			return err
		}
		start = func() layer.Layer {
			l, _ := protocols.ByName(opts.Start)
			return l
		}
	}

	r, err := pcapio.Open(opts.File)
	if err != nil {
		return err
	}
	defer r.Close()

	n := 0
	err = r.Decode(ctx, start, func(p pcapio.Packet) error {
		n++
		d := decodedPacket{
			Index:  p.Index,
			Time:   p.Info.Timestamp.UTC(),
			Length: p.Info.Length,
			Layers: p.Stack,
		}
		if p.Err != nil {
			d.Error = p.Err.Error()
		}
		return printer.print(d)
	})
	if err != nil {
		return err
	}
	log.GetLogger().WithField("file", opts.File).WithField("packets", n).Info("decode finished")
	return printer.close()
}

// decodeWholeFile decodes the file as one PcapFile layer.
func decodeWholeFile(path string, printer *packetPrinter) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	s, _, err := layer.Decode(data, &protocols.PcapFile{})
	if err != nil {
		return err
	}
	return printer.print(decodedPacket{Length: len(data), Layers: s})
}
