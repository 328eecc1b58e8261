package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/pkg/layer"
	"firestige.xyz/pktcraft/pkg/protocols"
)

var (
	registryOutput    string
	registryProtocols bool
)

var registryCmd = &cobra.Command{
	Use:   "registry [table...]",
	Short: "List the dispatch tables used by decode",
	Long: `List the registries that map next-protocol keys (ethertypes, IP protocol
numbers, UDP ports, ...) to layers. With --protocols, list the protocol names
accepted in stack descriptions instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRegistry(args, registryProtocols, registryOutput, os.Stdout); err != nil {
			exitWithError("registry failed", err)
		}
	},
}

func init() {
	registryCmd.Flags().StringVarP(&registryOutput, "output", "o", config.OutputText, "output format: text, json or yaml")
	registryCmd.Flags().BoolVar(&registryProtocols, "protocols", false, "list protocol names")
}

func runRegistry(tables []string, listProtocols bool, format string, out io.Writer) error {
	if listProtocols {
		return printList(protocols.Names(), format, out)
	}

	regs := protocols.Registries()
	if len(tables) == 0 {
		tables = regs.Names()
	}
	var entries []layer.Entry
	for _, name := range tables {
		e, err := regs.Entries(name)
		if err != nil {
			return err
		}
		entries = append(entries, e...)
	}

	switch format {
	case config.OutputJSON:
		return writeJSON(out, entries)
	case config.OutputYAML:
		return yaml.NewEncoder(out).Encode(entries)
	case config.OutputText:
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	current := ""
	for _, e := range entries {
		if e.Registry != current {
			current = e.Registry
			if _, err := fmt.Fprintln(out, current); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(out, "  %#06x  %s\n", e.Key, e.Type); err != nil {
			return err
		}
	}
	return nil
}

func printList(names []string, format string, out io.Writer) error {
	switch format {
	case config.OutputJSON:
		return writeJSON(out, names)
	case config.OutputYAML:
		return yaml.NewEncoder(out).Encode(names)
	case config.OutputText:
		_, err := fmt.Fprintln(out, strings.Join(names, "\n"))
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
