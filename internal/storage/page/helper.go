package page

// CreateTestPage builds a page of the given size pre-filled with data,
// truncating data that overruns the page and zero-filling any remainder.
func CreateTestPage(size int, data []byte) Page {
	p := New(size)
	n := copy(p, data)
	p.ZeroFrom(n)
	return p
}
