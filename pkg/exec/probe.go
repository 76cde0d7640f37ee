package exec

import (
	"github.com/blacktop/machorw/pkg/buffer"
)

// ProbeResult is one way a buffer could be opened.
type ProbeResult struct {
	Desc   string
	Arch   Arch
	Likely bool
	// Cmd is the argument list that, passed to Create, opens this result.
	Cmd []string
}

// Prober recognises and opens one container format. Probers receive the full
// registry so wrapper formats can recurse into their payloads.
type Prober interface {
	Name() string
	Probe(probers []Prober, buf buffer.Region) []ProbeResult
	Create(probers []Prober, buf buffer.Region, args []string) (Exec, []string, error)
}

// ProbeAll collects the results of every prober in the registry.
func ProbeAll(probers []Prober, buf buffer.Region) []ProbeResult {
	var results []ProbeResult
	for _, p := range probers {
		results = append(results, p.Probe(probers, buf)...)
	}
	return results
}

// Create opens buf with the prober named by args[0] and returns the
// arguments it left unconsumed.
func Create(probers []Prober, buf buffer.Region, args []string) (Exec, []string, error) {
	if len(args) == 0 {
		return nil, nil, Errorf(ErrUsage, "no container format given")
	}
	for _, p := range probers {
		if p.Name() == args[0] {
			return p.Create(probers, buf, args[1:])
		}
	}
	return nil, nil, Errorf(ErrUsage, "unknown container format %q", args[0])
}
