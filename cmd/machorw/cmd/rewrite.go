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
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/aymanbagabas/go-udiff"
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func init() {
	rewriteCmd.Flags().StringSlice("rename-seg", nil, "Rename a segment (OLD=NEW, repeatable)")
	rewriteCmd.Flags().StringP("output", "o", "", "Path of the rewritten file (default <FILE>.patched)")
	rewriteCmd.Flags().BoolP("overwrite", "f", false, "Overwrite the input file")
	rewriteCmd.Flags().Bool("check", false, "Re-parse the result and compare segments before writing")
	rewriteCmd.Flags().Bool("diff", false, "Print a hex diff of the old and new load commands")
	rewriteCmd.MarkFlagsMutuallyExclusive("output", "overwrite")
	viper.BindPFlag("rewrite.rename-seg", rewriteCmd.Flags().Lookup("rename-seg"))
	viper.BindPFlag("rewrite.output", rewriteCmd.Flags().Lookup("output"))
	viper.BindPFlag("rewrite.overwrite", rewriteCmd.Flags().Lookup("overwrite"))
	viper.BindPFlag("rewrite.check", rewriteCmd.Flags().Lookup("check"))
	viper.BindPFlag("rewrite.diff", rewriteCmd.Flags().Lookup("diff"))
}

// rewriteCmd represents the rewrite command
var rewriteCmd = &cobra.Command{
	Use:   "rewrite <FILE> [-- <CONTAINER ARGS>...]",
	Short: "Regenerate the load commands of a Mach-O",
	Long: heredoc.Doc(`
		Rebuild the load command area from the parsed segments, sections and
		link-edit tables, keeping every table at its original file offset.
		Commands the tool does not model are copied through unchanged.`),
	Example: heredoc.Doc(`
		# Round-trip the load commands of a dylib
		❯ machorw rewrite --check libfoo.dylib

		# Show what changes when a segment is renamed
		❯ machorw rewrite --diff --rename-seg __LINKEDIT=__LINKINFO libfoo.dylib

		# Rename a segment in the arm64 slice of a universal binary
		❯ machorw rewrite --rename-seg __DATA_CONST=__RODATA -o out.bin app -- fat --arch arm64 macho`),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := setup()
		if err != nil {
			return err
		}
		path := filepath.Clean(args[0])

		outPath := path + ".patched"
		if viper.GetBool("rewrite.overwrite") {
			outPath = path
		} else if o := viper.GetString("rewrite.output"); o != "" {
			outPath = o
		}

		warn := fileWarnings(path)
		arena, m, err := openMachO(path, args[1:], conf, warn)
		if err != nil {
			return err
		}
		defer arena.Region().KeepAlive()

		for _, r := range viper.GetStringSlice("rewrite.rename-seg") {
			from, to, ok := strings.Cut(r, "=")
			if !ok || from == "" || to == "" {
				return exec.Errorf(exec.ErrUsage, "invalid --rename-seg %q; want OLD=NEW", r)
			}
			idx, ok := m.Segment(from)
			if !ok {
				return fmt.Errorf("segment %s not found", from)
			}
			log.WithFields(log.Fields{"from": from, "to": to}).Debug("Renaming segment")
			m.Segments[idx].Name = to
		}

		alloc := m.Allocation()
		patched, err := m.Patch(alloc)
		if err != nil {
			return err
		}

		if viper.GetBool("rewrite.diff") {
			cmds, err := m.Rewrite(alloc)
			if err != nil {
				return err
			}
			var before [][]byte
			for _, l := range m.Loads {
				before = append(before, l.Bytes())
			}
			if d := udiff.Unified(path, outPath, dumpCommands(m, before), dumpCommands(m, cmds)); d != "" {
				fmt.Print(d)
			}
		}

		if viper.GetBool("rewrite.check") {
			if err := checkRewrite(m, patched, warn); err != nil {
				return err
			}
			log.Info("Rewritten load commands parse back to the same segments")
		}

		out := splice(arena.Region(), m.Buf, patched)
		if bytes.Equal(out, arena.Region().Bytes()) {
			log.Info("Load commands unchanged")
		}
		if _, err := os.Stat(outPath); err == nil && !confirm(outPath, viper.GetBool("rewrite.overwrite")) {
			log.Warn("Exiting...")
			return nil
		}
		if err := os.WriteFile(outPath, out, 0660); err != nil {
			return fmt.Errorf("failed to write %s: %v", outPath, err)
		}
		log.WithFields(log.Fields{
			"size":     humanize.Bytes(uint64(len(out))),
			"warnings": warn.Len(),
		}).Infof("Wrote %s", outPath)

		return nil
	},
}

// confirm asks before replacing an existing file. Without a terminal the
// answer is no unless overwrite is set.
func confirm(path string, overwrite bool) bool {
	if overwrite {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Errorf("%s already exists (use --overwrite or --output)", path)
		return false
	}
	yes := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("You are about to overwrite %s. Continue?", filepath.Base(path)),
	}
	survey.AskOne(prompt, &yes)
	return yes
}

// dumpCommands renders load commands one hex dump per command for diffing.
func dumpCommands(m *macho.File, cmds [][]byte) string {
	var sb strings.Builder
	for i, c := range cmds {
		var cmd types.LoadCmd
		if len(c) >= 4 {
			cmd = types.LoadCmd(m.Header.Order.Uint32(c))
		}
		fmt.Fprintf(&sb, "#%d %s (%#x bytes)\n%s", i, cmd, len(c), hex.Dump(c))
	}
	return sb.String()
}

// splice copies a patched container back into the file it was sliced from.
func splice(file, container buffer.Region, patched []byte) []byte {
	off, ok := container.OffsetIn(file)
	if !ok || (off == 0 && container.Len() == file.Len()) {
		return patched
	}
	out := bytes.Clone(file.Bytes())
	copy(out[off:], patched)
	return out
}

// checkRewrite parses the patched container again and compares its
// segments and sections with the model they were generated from.
func checkRewrite(m *macho.File, patched []byte, warn *macho.Warnings) error {
	again, err := macho.NewFile(buffer.NewArena(patched).Region(), &macho.Options{
		HeaderOffset: m.Header.Offset,
		Warnings:     warn,
	})
	if err != nil {
		return fmt.Errorf("rewritten file does not parse: %w", err)
	}
	strip := func(segs []exec.Segment) []exec.Segment {
		out := slices.Clone(segs)
		for i := range out {
			out[i].Origin = exec.Origin{}
		}
		return out
	}
	if !slices.Equal(strip(m.Segments), strip(again.Segments)) {
		return fmt.Errorf("rewritten file has different segments")
	}
	if !slices.Equal(strip(m.Sections), strip(again.Sections)) {
		return fmt.Errorf("rewritten file has different sections")
	}
	return nil
}
