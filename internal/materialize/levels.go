package materialize

import (
	"fmt"
	"strings"
)

// Environment variables read by the materializer function.
const (
	EnvQueryLevels = "VIEW_QUERY_LEVELS"
	EnvDataBucket  = "S3_DATA_BUCKET"
	EnvWorkgroup   = "ATHENA_WORKGROUP"
	EnvLogLevel    = "LOG_LEVEL"
)

// OutputPrefix is the key prefix for query results in the data bucket.
const OutputPrefix = "temp/"

const (
	waveSeparator  = ";"
	querySeparator = ","
)

// FormatLevels encodes named query id waves for the function environment:
// waves are separated by semicolons and ids within a wave by commas.
func FormatLevels(levels [][]string) string {
	waves := make([]string, len(levels))
	for i, level := range levels {
		waves[i] = strings.Join(level, querySeparator)
	}
	return strings.Join(waves, waveSeparator)
}

// ParseLevels decodes the output of FormatLevels.
func ParseLevels(s string) ([][]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%s is empty", EnvQueryLevels)
	}
	var levels [][]string
	for i, wave := range strings.Split(s, waveSeparator) {
		var ids []string
		for _, id := range strings.Split(wave, querySeparator) {
			id = strings.TrimSpace(id)
			if id == "" {
				return nil, fmt.Errorf("%s: empty query id in wave %d", EnvQueryLevels, i)
			}
			ids = append(ids, id)
		}
		levels = append(levels, ids)
	}
	return levels, nil
}
