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

	"github.com/apex/log"
	"github.com/blacktop/machorw/internal/config"
	"github.com/blacktop/machorw/internal/magic"
	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/blacktop/machorw/pkg/macho"
	"github.com/dustin/go-humanize"
)

// mapInput checks path against the configured size limit and maps it.
func mapInput(path string, conf *config.Config) (*buffer.Arena, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %s does not exist", path)
	} else if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if uint64(info.Size()) > conf.MaxBytes() {
		return nil, fmt.Errorf("%s is %s; larger than parse.max-size (%s)",
			path, humanize.Bytes(uint64(info.Size())), conf.Parse.MaxSize)
	}
	return buffer.MapFile(path)
}

// fileWarnings logs warnings tagged with the file they came from.
func fileWarnings(path string) *macho.Warnings {
	return macho.NewWarnings(log.WithField("file", filepath.Base(path)))
}

// defaultCmd picks the prober command line for a file when the user gave
// none: the configured header offset, else the single likely probe result.
func defaultCmd(probers []exec.Prober, buf buffer.Region, conf *config.Config) ([]string, error) {
	if conf.Parse.HeaderOffset != 0 {
		return []string{"macho", "--header-offset", strconv.Itoa(conf.Parse.HeaderOffset)}, nil
	}
	var likely []exec.ProbeResult
	for _, r := range exec.ProbeAll(probers, buf) {
		if r.Likely {
			likely = append(likely, r)
		}
	}
	switch len(likely) {
	case 0:
		return nil, exec.Errorf(exec.ErrBadFormat, "no known container format")
	case 1:
		return likely[0].Cmd, nil
	}
	var choices []string
	for _, r := range likely {
		choices = append(choices, fmt.Sprintf("\t%s\t-- %s", r.Desc, strings.Join(r.Cmd, " ")))
	}
	return nil, exec.Errorf(exec.ErrUsage, "file holds %d containers, pick one:\n%s", len(likely), strings.Join(choices, "\n"))
}

// openMachO maps path and opens it as a thin Mach-O through the prober
// registry. args is a prober command line; an empty one is probed for.
func openMachO(path string, args []string, conf *config.Config, w *macho.Warnings) (*buffer.Arena, *macho.File, error) {
	if k, err := magic.Sniff(path); err != nil {
		return nil, nil, err
	} else if k == magic.Other && len(args) == 0 && conf.Parse.HeaderOffset == 0 {
		return nil, nil, fmt.Errorf("%s is not a Mach-O file", path)
	}
	arena, err := mapInput(path, conf)
	if err != nil {
		return nil, nil, err
	}
	probers := macho.Probers(w)
	if len(args) == 0 {
		if args, err = defaultCmd(probers, arena.Region(), conf); err != nil {
			return nil, nil, err
		}
		log.Debugf("opening %s with: %s", path, strings.Join(args, " "))
	}
	e, rest, err := exec.Create(probers, arena.Region(), args)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) > 0 {
		return nil, nil, exec.Errorf(exec.ErrUsage, "unexpected arguments: %s", strings.Join(rest, " "))
	}
	m, ok := e.(*macho.File)
	if !ok {
		return nil, nil, exec.Errorf(exec.ErrUnsupported, "%s is not a Mach-O container", path)
	}
	return arena, m, nil
}
