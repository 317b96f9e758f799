package pagestore

// Flatten converts nested JSON objects into a single-level map with
// dot-joined keys (e.g. {"repo":{"id":1}} becomes {"repo.id":1}).
// Arrays and scalars are kept as-is.
func Flatten(row map[string]any) map[string]any {
	flat := make(map[string]any, len(row))
	flattenInto(flat, "", row)
	return flat
}

func flattenInto(flat map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(flat, key, nested)
			continue
		}
		flat[key] = v
	}
}

// FlattenAll flattens every row of a row set.
func FlattenAll(rows []map[string]any) []map[string]any {
	flat := make([]map[string]any, len(rows))
	for i, r := range rows {
		flat[i] = Flatten(r)
	}
	return flat
}
