package main

import (
	"fmt"
	"strings"

	"github.com/archivum/archivum/internal/types"
)

// parseSourceType maps the --type flag onto a SourceType.
func parseSourceType(s string) (types.SourceType, error) {
	switch t := types.SourceType(strings.ToUpper(s)); t {
	case types.SourceDisk, types.SourcePartition, types.SourceCloud,
		types.SourceNetwork, types.SourceArchive:
		return t, nil
	default:
		return "", fmt.Errorf("unknown source type %q", s)
	}
}
