package registry

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
)

//go:embed rules
var embeddedRules embed.FS

// EmbedSource serves the rule set compiled into the binary. It is the
// default source when no rules directory is configured.
type EmbedSource struct{}

func (EmbedSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	b, err := embeddedRules.ReadFile("rules/" + name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, err
}
