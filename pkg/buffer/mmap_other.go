//go:build !unix

package buffer

import (
	"os"

	"github.com/pkg/errors"
)

// MapFile reads path into a new Arena.
func MapFile(path string) (*Arena, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return &Arena{data: data, name: path}, nil
}
