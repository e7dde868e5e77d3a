package differ

// Option is a functional option for configuring a Differ.
type Option func(*differ)

// WithIgnoredFields excludes synced attributes from comparison. Mirrors
// without location support use this to ignore FieldLocationID.
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}
