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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/machorw/internal/magic"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func init() {
	lipoCmd.Flags().StringP("arch", "a", "", "Which architecture to extract from a fat/universal MachO")
	lipoCmd.Flags().IntP("slice", "s", -1, "Which slice index to extract")
	lipoCmd.Flags().StringP("output", "o", "", "Directory to extract the MachO")
	lipoCmd.MarkFlagsMutuallyExclusive("arch", "slice")
	viper.BindPFlag("lipo.arch", lipoCmd.Flags().Lookup("arch"))
	viper.BindPFlag("lipo.slice", lipoCmd.Flags().Lookup("slice"))
	viper.BindPFlag("lipo.output", lipoCmd.Flags().Lookup("output"))
}

// lipoCmd represents the lipo command
var lipoCmd = &cobra.Command{
	Use:     "lipo <FAT_MACHO>",
	Aliases: []string{"l"},
	Short:   "Extract single MachO out of a universal/fat MachO",
	Example: heredoc.Doc(`
		# Extract the x86_64 slice next to the input
		❯ machorw lipo --arch x86_64 /usr/bin/file

		# Extract the second slice into /tmp
		❯ machorw lipo --slice 1 -o /tmp /usr/bin/file

		# Pick the slice interactively
		❯ machorw lipo /usr/bin/file`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := setup()
		if err != nil {
			return err
		}

		// flags
		selectedArch := viper.GetString("lipo.arch")
		selectedSlice := viper.GetInt("lipo.slice")
		extractPath := viper.GetString("lipo.output")

		machoPath := filepath.Clean(args[0])

		if k, err := magic.Sniff(machoPath); err != nil {
			return err
		} else if k != magic.Fat {
			return fmt.Errorf("input file is not a universal/fat MachO")
		}
		arena, err := mapInput(machoPath, conf)
		if err != nil {
			return err
		}
		defer arena.Region().KeepAlive()

		slices, ok := macho.FatSlices(arena.Region(), fileWarnings(machoPath))
		if !ok {
			return fmt.Errorf("failed to parse fat header of %s", machoPath)
		}

		if len(slices) == 0 {
			return fmt.Errorf("%s has no usable slices", machoPath)
		}
		names := make([]string, len(slices))
		for i, s := range slices {
			names[i] = sliceName(s)
		}

		var found *macho.FatSlice
		switch {
		case cmd.Flags().Changed("slice") || selectedArch != "":
			for i, s := range slices {
				if (cmd.Flags().Changed("slice") && s.Index == selectedSlice) || names[i] == selectedArch {
					found = &slices[i]
					break
				}
			}
			if found == nil {
				return fmt.Errorf("no slice matches --arch '%s' / --slice %d; have: %s", selectedArch, selectedSlice, strings.Join(names, ", "))
			}
		case term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())):
			var options []string
			for i, s := range slices {
				options = append(options, fmt.Sprintf("%s (%s at %#x)", names[i], humanize.Bytes(uint64(s.Size)), s.Offset))
			}
			choice := 0
			prompt := &survey.Select{
				Message: "Detected a universal MachO file, please select an architecture to extract:",
				Options: options,
			}
			if err := survey.AskOne(prompt, &choice); err != nil {
				if err == terminal.InterruptErr {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}
			found = &slices[choice]
		default:
			return exec.Errorf(exec.ErrUsage, "one of --arch or --slice is required; have: %s", strings.Join(names, ", "))
		}

		name := sliceName(*found)
		folder := filepath.Dir(machoPath)
		if len(extractPath) > 0 {
			folder = extractPath
		}
		fname := filepath.Join(folder, fmt.Sprintf("%s.%s", filepath.Base(machoPath), name))
		if err := os.WriteFile(fname, found.Buf.Bytes(), 0660); err != nil {
			return fmt.Errorf("failed to create file %s: %v", fname, err)
		}
		log.Infof("Extracted %s slice (%s) as %s", name, humanize.Bytes(uint64(found.Size)), fname)

		return nil
	},
}

func sliceName(s macho.FatSlice) string {
	if name, ok := s.ArchName(); ok {
		return name
	}
	return "slice" + strconv.Itoa(s.Index)
}
