package norm

// IsBlank reports whether a value counts as missing for merging purposes
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Merge merges src into dst in place. A non-blank value always wins over a
// blank one; a blank value only fills a gap. When both sides are non-blank the
// value already in dst is kept, so merge order decides precedence.
func Merge(src, dst map[string]any) {
	for k, v := range src {
		if v == nil {
			continue
		}
		if !IsBlank(v) {
			if existing, ok := dst[k]; ok && !IsBlank(existing) {
				continue
			}
			dst[k] = v
			continue
		}
		if IsBlank(dst[k]) {
			dst[k] = v
		}
	}
}
