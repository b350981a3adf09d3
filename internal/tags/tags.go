// Package tags reads key/value pairs from a TOML file for inclusion in
// published status messages.
package tags

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/pelletier/go-toml"
)

type errorTag struct {
	invalid map[string]interface{}
}

func (e *errorTag) Error() string {
	return fmt.Sprintf("invalid tag values: %v", e.invalid)
}

func (e *errorTag) Is(o error) bool {
	return reflect.TypeOf(e) == reflect.TypeOf(o)
}

// ReadTags parses data as a TOML document and converts each top-level value
// to its string representation. Only scalar values can be represented as
// tags; an error is returned if the document contains tables or arrays.
func ReadTags(data io.Reader) (map[string]string, error) {
	tree, err := toml.LoadReader(data)
	if err != nil {
		return nil, fmt.Errorf("cannot load TOML data: %w", err)
	}

	tags := make(map[string]string)
	invalid := make(map[string]interface{})
	for _, key := range tree.Keys() {
		switch value := tree.Get(key).(type) {
		case *toml.Tree, []*toml.Tree, []interface{}:
			invalid[key] = value
		case time.Time:
			tags[key] = value.Format(time.RFC3339)
		default:
			tags[key] = fmt.Sprintf("%v", value)
		}
	}

	if len(invalid) > 0 {
		return nil, &errorTag{invalid}
	}

	return tags, nil
}
