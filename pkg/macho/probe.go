package macho

import (
	"fmt"
	"io"
	"strconv"

	"github.com/blacktop/machorw/pkg/buffer"
	"github.com/blacktop/machorw/pkg/exec"
	"github.com/spf13/pflag"
)

// Prober recognises thin Mach-O files.
type Prober struct {
	Warnings *Warnings
}

// FatProber recognises universal files and recurses into their slices.
type FatProber struct {
	Warnings *Warnings
}

// Probers returns the Mach-O prober registry, thin first.
func Probers(w *Warnings) []exec.Prober {
	return []exec.Prober{&Prober{Warnings: w}, &FatProber{Warnings: w}}
}

func (p *Prober) Name() string { return "macho" }

// Probe parses only the header.
func (p *Prober) Probe(_ []exec.Prober, buf buffer.Region) []exec.ProbeResult {
	f, err := NewFile(buf, &Options{SkipLoadCommands: true, Warnings: p.Warnings})
	if err != nil {
		return nil
	}
	return []exec.ProbeResult{{
		Desc:   f.Desc(),
		Arch:   f.Arch,
		Likely: true,
		Cmd:    []string{p.Name()},
	}}
}

func (p *Prober) Create(_ []exec.Prober, buf buffer.Region, args []string) (exec.Exec, []string, error) {
	fs := pflag.NewFlagSet(p.Name(), pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	offset := fs.Int("header-offset", 0, "offset of the Mach-O header in the buffer")
	if err := fs.Parse(args); err != nil {
		return nil, nil, exec.Errorf(exec.ErrUsage, "macho: %v", err)
	}
	f, err := NewFile(buf, &Options{HeaderOffset: *offset, Warnings: p.Warnings})
	if err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

func (p *FatProber) Name() string { return "fat" }

// sliceProbers drops fat probers from the registry; slices of a universal
// file are never universal themselves.
func sliceProbers(probers []exec.Prober) []exec.Prober {
	out := make([]exec.Prober, 0, len(probers))
	for _, pr := range probers {
		if _, fat := pr.(*FatProber); !fat {
			out = append(out, pr)
		}
	}
	return out
}

func (p *FatProber) Probe(probers []exec.Prober, buf buffer.Region) []exec.ProbeResult {
	slices, ok := FatSlices(buf, p.Warnings)
	if !ok {
		return nil
	}
	inner := sliceProbers(probers)
	var results []exec.ProbeResult
	for _, s := range slices {
		sel := []string{p.Name(), "--slice", strconv.Itoa(s.Index)}
		if name, ok := s.ArchName(); ok {
			sel = []string{p.Name(), "--arch", name}
		}
		for _, r := range exec.ProbeAll(inner, s.Buf) {
			r.Desc = fmt.Sprintf("(slice #%d) %s", s.Index, r.Desc)
			r.Cmd = append(append([]string{}, sel...), r.Cmd...)
			results = append(results, r)
		}
	}
	return results
}

// Create selects one slice with exactly one of --arch NAME or --slice N and
// hands the remaining arguments to the registry to open it.
func (p *FatProber) Create(probers []exec.Prober, buf buffer.Region, args []string) (exec.Exec, []string, error) {
	fs := pflag.NewFlagSet(p.Name(), pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	arch := fs.String("arch", "", "select the slice with this architecture")
	index := fs.IntP("slice", "s", -1, "select the slice with this index")
	if err := fs.Parse(args); err != nil {
		return nil, nil, exec.Errorf(exec.ErrUsage, "fat: %v", err)
	}
	byArch, byIndex := fs.Changed("arch"), fs.Changed("slice")
	if byArch == byIndex {
		return nil, nil, exec.Errorf(exec.ErrUsage, "fat: exactly one of --arch or --slice is required")
	}

	slices, ok := FatSlices(buf, p.Warnings)
	if !ok {
		return nil, nil, &exec.FormatError{Kind: exec.ErrBadFormat, Msg: "not a valid fat file"}
	}
	for _, s := range slices {
		if byIndex && s.Index != *index {
			continue
		}
		if byArch {
			if name, ok := s.ArchName(); !ok || name != *arch {
				continue
			}
		}
		return exec.Create(sliceProbers(probers), s.Buf, fs.Args())
	}
	return nil, nil, exec.Errorf(exec.ErrUsage, "fat arch matching command line not found")
}
