package feed

import (
	"fmt"
	"strconv"
	"time"
)

// entryTimeFormat renders timestamps with second precision, UTC, trailing Z.
const entryTimeFormat = "2006-01-02T15:04:05Z"

// Flatten collapses a nested entry value into single-level dotted keys:
// map keys append ".key", list elements append ".index" (zero based).
// Booleans and nils are kept as-is, timestamps are rendered via
// entryTimeFormat, every other leaf is stringified. Empty maps and lists
// contribute no keys. Pass a nil flat map to allocate one.
func Flatten(value any, flat map[string]any, name string) map[string]any {
	if flat == nil {
		flat = make(map[string]any)
	}

	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			Flatten(child, flat, joinKey(name, key))
		}
	case []any:
		for i, child := range v {
			Flatten(child, flat, joinKey(name, strconv.Itoa(i)))
		}
	case bool:
		flat[name] = v
	case nil:
		flat[name] = nil
	case time.Time:
		flat[name] = v.UTC().Format(entryTimeFormat)
	default:
		flat[name] = fmt.Sprint(v)
	}

	return flat
}

func joinKey(name, key string) string {
	if name == "" {
		return key
	}
	return name + "." + key
}
