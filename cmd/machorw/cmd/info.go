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
	"runtime"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machorw/internal/colors"
	"github.com/blacktop/machorw/internal/config"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho"
	"github.com/blacktop/machorw/pkg/macho/header"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

func init() {
	infoCmd.Flags().BoolP("segments", "s", true, "Print segments and sections of likely containers")
	infoCmd.Flags().Bool("yaml", false, "Output as YAML documents")
	viper.BindPFlag("info.segments", infoCmd.Flags().Lookup("segments"))
	viper.BindPFlag("info.yaml", infoCmd.Flags().Lookup("yaml"))
}

type segmentReport struct {
	Name     string          `yaml:"name"`
	Addr     uint64          `yaml:"addr"`
	Size     uint64          `yaml:"size"`
	FileOff  uint64          `yaml:"fileoff"`
	FileSize uint64          `yaml:"filesize"`
	Prot     string          `yaml:"prot"`
	Sections []segmentReport `yaml:"sections,omitempty"`
}

type containerReport struct {
	Desc     string          `yaml:"desc"`
	Arch     string          `yaml:"arch"`
	Likely   bool            `yaml:"likely"`
	Cmd      []string        `yaml:"cmd,flow"`
	UUID     string          `yaml:"uuid,omitempty"`
	Flags    string          `yaml:"flags,omitempty"`
	NCmds    uint32          `yaml:"ncmds,omitempty"`
	CmdSize  uint32          `yaml:"sizeofcmds,omitempty"`
	Segments []segmentReport `yaml:"segments,omitempty"`
	Error    string          `yaml:"error,omitempty"`
}

type fileReport struct {
	Path       string            `yaml:"path"`
	Size       uint64            `yaml:"size"`
	Containers []containerReport `yaml:"containers"`
	Warnings   []string          `yaml:"warnings,omitempty"`
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:     "info <FILE>...",
	Aliases: []string{"i"},
	Short:   "Probe files and describe every container found",
	Example: heredoc.Doc(`
		# Describe a thin or universal binary
		❯ machorw info /usr/bin/file

		# Describe several files at once, without the segment listing
		❯ machorw info --segments=false libfoo.dylib libbar.dylib

		# Machine readable
		❯ machorw info --yaml libfoo.dylib`),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := setup()
		if err != nil {
			return err
		}
		segments := viper.GetBool("info.segments")

		reports := make([]*fileReport, len(args))

		var g errgroup.Group
		g.SetLimit(runtime.NumCPU())
		for i, path := range args {
			g.Go(func() error {
				r, err := describe(filepath.Clean(path), conf, segments)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				reports[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if viper.GetBool("info.yaml") {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			for _, r := range reports {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return enc.Close()
		}
		for i, r := range reports {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(r.String())
		}
		return nil
	},
}

// describe probes one file and opens every likely container. Each file gets
// its own registry and warning list; warnings are reported rather than logged.
func describe(path string, conf *config.Config, segments bool) (*fileReport, error) {
	arena, err := mapInput(path, conf)
	if err != nil {
		return nil, err
	}
	warn := &macho.Warnings{}
	probers := macho.Probers(warn)

	rep := &fileReport{Path: path, Size: uint64(arena.Len())}
	for _, r := range exec.ProbeAll(probers, arena.Region()) {
		c := containerReport{
			Desc:   r.Desc,
			Arch:   r.Arch.String(),
			Likely: r.Likely,
			Cmd:    r.Cmd,
		}
		if segments && r.Likely {
			if e, _, err := exec.Create(probers, arena.Region(), r.Cmd); err != nil {
				c.Error = err.Error()
			} else {
				c.fill(e)
			}
		}
		rep.Containers = append(rep.Containers, c)
	}
	rep.Warnings = warn.List()
	return rep, nil
}

func (c *containerReport) fill(e exec.Exec) {
	base := e.ExecBase()
	m, _ := e.(*macho.File)
	if m != nil {
		c.UUID = uuidOf(m)
		c.Flags = header.Flags(m.Header.Flags)
		c.NCmds = m.Header.NCmd
		c.CmdSize = m.Header.SizeOf
	}
	for i, seg := range base.Segments {
		sr := newSegmentReport(seg)
		if m != nil {
			for _, si := range m.SectionsOf(i) {
				sr.Sections = append(sr.Sections, newSegmentReport(base.Sections[si]))
			}
		}
		c.Segments = append(c.Segments, sr)
	}
}

func newSegmentReport(s exec.Segment) segmentReport {
	return segmentReport{
		Name:     s.Name,
		Addr:     s.VMAddr,
		Size:     s.VMSize,
		FileOff:  s.FileOff,
		FileSize: s.FileSize,
		Prot:     s.Prot.String(),
	}
}

// uuidOf returns the LC_UUID of m, if it has one.
func uuidOf(m *macho.File) string {
	for _, l := range m.Loads {
		if l.Cmd != types.LC_UUID || l.Raw.Len() < 24 {
			continue
		}
		if u, err := uuid.FromBytes(l.Bytes()[8:24]); err == nil {
			return u.String()
		}
	}
	return ""
}

func (r *fileReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", colors.File(r.Path), humanize.Bytes(r.Size))
	if len(r.Containers) == 0 {
		sb.WriteString("  no known container format\n")
	}
	for _, c := range r.Containers {
		likely := ""
		if !c.Likely {
			likely = " (unlikely)"
		}
		fmt.Fprintf(&sb, "  %s%s\n", colors.Desc(c.Desc), likely)
		fmt.Fprintf(&sb, "    arch: %s\n", c.Arch)
		fmt.Fprintf(&sb, "    open: %s\n", colors.Command(strings.Join(c.Cmd, " ")))
		if c.Error != "" {
			fmt.Fprintf(&sb, "    %s\n", colors.Warn("failed to open: "+c.Error))
			continue
		}
		if c.UUID != "" {
			fmt.Fprintf(&sb, "    uuid: %s\n", c.UUID)
		}
		if c.Flags != "" {
			fmt.Fprintf(&sb, "    flags: %s  commands: %d (%s)\n", c.Flags, c.NCmds, humanize.Bytes(uint64(c.CmdSize)))
		}
		for _, seg := range c.Segments {
			fmt.Fprintf(&sb, "    %-16s %s-%s %s off=%#x %s\n",
				colors.Segment(seg.Name),
				colors.Addr(fmt.Sprintf("%#016x", seg.Addr)),
				colors.Addr(fmt.Sprintf("%#016x", seg.Addr+seg.Size)),
				seg.Prot,
				seg.FileOff,
				humanize.Bytes(seg.FileSize))
			for _, sect := range seg.Sections {
				fmt.Fprintf(&sb, "      %-14s %s size=%s\n",
					colors.Section(sect.Name),
					colors.Addr(fmt.Sprintf("%#016x", sect.Addr)),
					humanize.Bytes(sect.Size))
			}
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("  warnings:\n")
		for _, msg := range r.Warnings {
			fmt.Fprintf(&sb, "    %s\n", colors.Warn(msg))
		}
	}
	return sb.String()
}
