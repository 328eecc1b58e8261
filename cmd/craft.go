package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/internal/pcapio"
	"firestige.xyz/pktcraft/pkg/value"
)

var (
	craftBatchFile string
	craftOutput    string
	craftWrite     string
	craftSeed      uint64
	craftCount     int
	craftLinkType  uint32
	craftSnapLen   uint32
)

var craftCmd = &cobra.Command{
	Use:   "craft [stack...]",
	Short: "Build packets from stack descriptions",
	Long: `Fill and encode one packet per stack description, or every packet of a
batch file given with -f.

Hex output prints one packet per line. Pcap output writes a capture file,
timestamping packets from the batch start in steps of its interval.`,
	Example: `  pktcraft craft 'ether()/ip(dst=10.0.0.1)/udp(dport=53)/"hello"'
  pktcraft craft --seed 7 -n 3 'ip(id=random)/tcp(dport=80, flags=0x02)'
  pktcraft craft -f batch.yaml -o pcap -w out.pcap`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := craftOptions{
			Stacks:    args,
			BatchFile: craftBatchFile,
			Output:    cfg.Craft.Output,
			Write:     craftWrite,
			Seed:      cfg.Craft.Seed,
			Count:     craftCount,
			LinkType:  cfg.Craft.LinkType,
			SnapLen:   cfg.Craft.SnapLen,
		}
		if cmd.Flags().Changed("output") {
			opts.Output = craftOutput
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = craftSeed
		}
		if cmd.Flags().Changed("linktype") {
			opts.LinkType = craftLinkType
		}
		if cmd.Flags().Changed("snaplen") {
			opts.SnapLen = craftSnapLen
		}
		if err := runCraft(opts, os.Stdout); err != nil {
			exitWithError("craft failed", err)
		}
	},
}

func init() {
	craftCmd.Flags().StringVarP(&craftBatchFile, "file", "f", "", "batch file (YAML or JSON)")
	craftCmd.Flags().StringVarP(&craftOutput, "output", "o", config.OutputHex, "output format: hex or pcap")
	craftCmd.Flags().StringVarP(&craftWrite, "write", "w", "", "pcap file to write (required with -o pcap)")
	craftCmd.Flags().Uint64Var(&craftSeed, "seed", 0, "seed for random fields, 0 for a nondeterministic source")
	craftCmd.Flags().IntVarP(&craftCount, "count", "n", 1, "packets per stack")
	craftCmd.Flags().Uint32Var(&craftLinkType, "linktype", 1, "pcap link type")
	craftCmd.Flags().Uint32Var(&craftSnapLen, "snaplen", 65535, "pcap snap length")
}

type craftOptions struct {
	Stacks    []string
	BatchFile string
	Output    string
	Write     string
	Seed      uint64
	Count     int
	LinkType  uint32
	SnapLen   uint32
}

// batch turns the options into a validated batch. Values from a batch file
// win over the command line, except for a zero seed.
func (o craftOptions) batch() (*config.Batch, error) {
	if o.BatchFile != "" {
		if len(o.Stacks) > 0 {
			return nil, fmt.Errorf("stack arguments cannot be combined with a batch file")
		}
		data, err := os.ReadFile(o.BatchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch file: %w", err)
		}
		b, err := config.ParseBatch(data)
		if err != nil {
			return nil, err
		}
		if b.Seed == 0 {
			b.Seed = o.Seed
		}
		return b, nil
	}

	if len(o.Stacks) == 0 {
		return nil, fmt.Errorf("no stack given")
	}
	b := &config.Batch{
		LinkType: o.LinkType,
		SnapLen:  o.SnapLen,
		Seed:     o.Seed,
	}
	for _, s := range o.Stacks {
		b.Packets = append(b.Packets, config.BatchPacket{Stack: s, Count: o.Count})
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func runCraft(opts craftOptions, out io.Writer) error {
	b, err := opts.batch()
	if err != nil {
		return err
	}

	var r value.Rand = value.DefaultRand()
	if b.Seed != 0 {
		r = value.NewRand(b.Seed)
	}

	// emit is called once per packet, in batch order.
	var emit func(i int, data []byte) error
	var finish func() error

	switch opts.Output {
	case config.OutputHex:
		emit = func(_ int, data []byte) error {
			_, err := fmt.Fprintln(out, hex.EncodeToString(data))
			return err
		}
		finish = func() error { return nil }
	case config.OutputPcap:
		if opts.Write == "" {
			return fmt.Errorf("pcap output needs a file, use -w")
		}
		w, err := pcapio.Create(opts.Write, b.SnapLen, b.LinkType)
		if err != nil {
			return err
		}
		defer w.Close()
		emit = func(i int, data []byte) error {
			return w.WritePacket(b.Start.Add(time.Duration(i)*b.Step()), data)
		}
		finish = func() error {
			if err := w.Close(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "wrote %d packets to %s\n", w.Count(), opts.Write)
			return err
		}
	default:
		return fmt.Errorf("unsupported output format %q", opts.Output)
	}

	i := 0
	for _, p := range b.Packets {
		for range p.Count {
			if err := emit(i, p.Parsed().EncodeWith(r)); err != nil {
				return err
			}
			i++
		}
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"packets": i,
		"output":  opts.Output,
		"seeded":  b.Seed != 0,
	}).Info("craft finished")
	return finish()
}
