/*
Copyright © 2024-2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/machorw/internal/colors"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var subranges = []string{"local", "extdef", "undef"}

func init() {
	symsCmd.Flags().String("subrange", "", fmt.Sprintf("Only list one dysymtab subrange: %v", subranges))
	viper.BindPFlag("syms.subrange", symsCmd.Flags().Lookup("subrange"))
	symsCmd.RegisterFlagCompletionFunc("subrange", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return subranges, cobra.ShellCompDirectiveNoFileComp
	})
}

// symsCmd represents the syms command
var symsCmd = &cobra.Command{
	Use:   "syms <FILE> [-- <CONTAINER ARGS>...]",
	Short: "List the symbols of a Mach-O",
	Example: heredoc.Doc(`
		# List every symbol of a thin binary
		❯ machorw syms libfoo.dylib

		# Pick the arm64 slice of a universal binary
		❯ machorw syms /usr/bin/file -- fat --arch arm64e macho

		# Only the undefined symbols
		❯ machorw syms --subrange undef libfoo.dylib`),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := setup()
		if err != nil {
			return err
		}
		path := filepath.Clean(args[0])

		_, m, err := openMachO(path, args[1:], conf, fileWarnings(path))
		if err != nil {
			return err
		}

		var syms iter.Seq[exec.Symbol]
		switch sub := viper.GetString("syms.subrange"); sub {
		case "":
			if conf.Symbols.SkipRedacted {
				syms = m.DecodeRange(0, uint32(m.NumSymbols()), true)
			} else if syms, err = m.Symbols(exec.SourceAll); err != nil {
				return err
			}
		case "local":
			syms = m.SubrangeSymbols(m.Dysymtab.Local)
		case "extdef":
			syms = m.SubrangeSymbols(m.Dysymtab.ExtDef)
		case "undef":
			syms = m.SubrangeSymbols(m.Dysymtab.Undef)
		default:
			return fmt.Errorf("invalid --subrange %q; must be one of: %v", sub, subranges)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
		for sym := range syms {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", sym.Index, colors.Addr(sym.Value), colors.Flags(symFlags(sym)), colors.Symbol(sym.Name))
		}
		return w.Flush()
	},
}

func symFlags(sym exec.Symbol) string {
	flags := []byte("--")
	if sym.Public {
		flags[0] = 'E'
	}
	if sym.Weak {
		flags[1] = 'W'
	}
	return string(flags)
}
