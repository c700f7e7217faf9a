package source

// NewWintab would read a Wacom tablet through the Wintab driver API on
// Windows. Binding the vendor driver is out of scope; the variant keeps
// its place in the closed set so configuration selecting it fails with
// a clear error instead of a typo-style "unknown source".
func NewWintab() (Source, error) {
	return nil, ErrUnsupported
}
