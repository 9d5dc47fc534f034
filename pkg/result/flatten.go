package result

import "sort"

// flattenPaths walks an already-converted plain value and extracts every
// non-empty string it contains, depth first. Map entries are visited in
// sorted key order so the same value always flattens to the same list.
// Non-string scalars carry no path information and are skipped.
func flattenPaths(value interface{}) []string {
	var out []string
	visitPaths(value, &out)
	return out
}

func visitPaths(value interface{}, out *[]string) {
	switch v := value.(type) {
	case nil:
	case string:
		if v != "" {
			*out = append(*out, v)
		}
	case []interface{}:
		for _, item := range v {
			visitPaths(item, out)
		}
	case []string:
		for _, item := range v {
			visitPaths(item, out)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			visitPaths(v[k], out)
		}
	}
}
